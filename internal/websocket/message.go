package websocket

import (
	"encoding/json"
	"time"

	"taskforge-sync-server/internal/domain"
)

type MessageType string

const (
	TypeConflictDetected MessageType = "conflict_detected"
	TypeConflictResolved MessageType = "conflict_resolved"
	TypeResolutionUndone MessageType = "resolution_undone"
	TypeAck              MessageType = "ack"
	TypePing             MessageType = "ping"
	TypePong             MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type ConflictDetectedPayload struct {
	ConflictID        string              `json:"conflict_id"`
	DocumentID        string              `json:"document_id"`
	Type              domain.ConflictType `json:"conflict_type"`
	Severity          domain.Severity     `json:"severity"`
	ConflictingFields []string            `json:"conflicting_fields"`
	AutoResolvable    bool                `json:"auto_resolvable"`
	Devices           []string            `json:"devices"`
}

type ConflictResolvedPayload struct {
	ResolutionID          string                    `json:"resolution_id"`
	DocumentID            string                    `json:"document_id"`
	Strategy              domain.ResolutionStrategy `json:"strategy"`
	ResolvedBy            string                    `json:"resolved_by"`
	SupersededRevisionIDs []string                  `json:"superseded_revision_ids"`
}

type ResolutionUndonePayload struct {
	ResolutionID string `json:"resolution_id"`
	DocumentID   string `json:"document_id"`
}

func newMessage(msgType MessageType, payload interface{}) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   raw,
	}, nil
}
