package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

type Client struct {
	ID       string
	DeviceID string
	Conn     *websocket.Conn
	Manager  *Manager
	Send     chan []byte
}

func NewClient(id, deviceID string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:       id,
		DeviceID: deviceID,
		Conn:     conn,
		Manager:  manager,
		Send:     make(chan []byte, 256),
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Manager.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("error unmarshaling message from %s: %v", c.ID, err)
			continue
		}

		switch msg.Type {
		case TypePing:
			pong, err := newMessage(TypePong, nil)
			if err != nil {
				continue
			}
			if data, err := json.Marshal(pong); err == nil {
				c.Send <- data
			}
		case TypeAck:
			// nothing to do; acks exist for client-side bookkeeping
		default:
			log.Printf("ignoring inbound message type %q from %s", msg.Type, c.ID)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Manager.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
