package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"taskforge-sync-server/internal/domain"
)

// Manager fans conflict lifecycle events out to subscribed devices. Inbound
// traffic is limited to ping/ack; decisions travel over the HTTP API.
type Manager struct {
	clients          map[string]*Client
	deviceIndex      map[string]map[string]bool
	clientsMutex     sync.RWMutex
	Register         chan *Client
	Unregister       chan *Client
	maxConnPerDevice int
	writeWait        time.Duration
	pongWait         time.Duration
	pingPeriod       time.Duration
}

func NewManager(maxConnPerDevice int, writeWait, pongWait, pingPeriod time.Duration) *Manager {
	return &Manager{
		clients:          make(map[string]*Client),
		deviceIndex:      make(map[string]map[string]bool),
		Register:         make(chan *Client),
		Unregister:       make(chan *Client),
		maxConnPerDevice: maxConnPerDevice,
		writeWait:        writeWait,
		pongWait:         pongWait,
		pingPeriod:       pingPeriod,
	}
}

func (m *Manager) Run() {
	for {
		select {
		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.deviceIndex[client.DeviceID] == nil {
		m.deviceIndex[client.DeviceID] = make(map[string]bool)
	}

	if len(m.deviceIndex[client.DeviceID]) >= m.maxConnPerDevice {
		log.Printf("max connections reached for device %s", client.DeviceID)
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.deviceIndex[client.DeviceID][client.ID] = true

	log.Printf("subscriber registered: %s (device: %s)", client.ID, client.DeviceID)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.deviceIndex[client.DeviceID], client.ID)

		if len(m.deviceIndex[client.DeviceID]) == 0 {
			delete(m.deviceIndex, client.DeviceID)
		}

		close(client.Send)
		log.Printf("subscriber unregistered: %s", client.ID)
	}
}

func (m *Manager) broadcast(message *Message) {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	messageBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("error marshaling event: %v", err)
		return
	}

	for clientID, client := range m.clients {
		select {
		case client.Send <- messageBytes:
		default:
			log.Printf("subscriber %s send buffer full, dropping connection", clientID)
			go func(c *Client) { m.Unregister <- c }(client)
		}
	}
}

// ConflictDetected implements the engine's event sink.
func (m *Manager) ConflictDetected(c *domain.Conflict) {
	devices := []string{}
	if c.Local != nil {
		devices = append(devices, c.Local.DeviceID)
	}
	if c.Remote != nil {
		devices = append(devices, c.Remote.DeviceID)
	}

	msg, err := newMessage(TypeConflictDetected, ConflictDetectedPayload{
		ConflictID:        c.ID,
		DocumentID:        c.DocumentID,
		Type:              c.Type,
		Severity:          c.Severity,
		ConflictingFields: c.ConflictingFields,
		AutoResolvable:    c.AutoResolvable,
		Devices:           devices,
	})
	if err != nil {
		log.Printf("error building conflict_detected event: %v", err)
		return
	}
	m.broadcast(msg)
}

func (m *Manager) ConflictResolved(record *domain.ResolutionRecord) {
	msg, err := newMessage(TypeConflictResolved, ConflictResolvedPayload{
		ResolutionID:          record.ID,
		DocumentID:            record.DocumentID,
		Strategy:              record.Strategy,
		ResolvedBy:            record.ResolvedBy,
		SupersededRevisionIDs: record.SupersededRevisionIDs,
	})
	if err != nil {
		log.Printf("error building conflict_resolved event: %v", err)
		return
	}
	m.broadcast(msg)
}

func (m *Manager) ResolutionUndone(documentID, resolutionID string) {
	msg, err := newMessage(TypeResolutionUndone, ResolutionUndonePayload{
		ResolutionID: resolutionID,
		DocumentID:   documentID,
	})
	if err != nil {
		log.Printf("error building resolution_undone event: %v", err)
		return
	}
	m.broadcast(msg)
}
