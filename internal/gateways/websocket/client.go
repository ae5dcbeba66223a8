package websocket

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"

	"backend/internal/eventbus"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendBufferSize = 64
)

const (
	frameTypePing    = "ping"
	frameTypePong    = "pong"
	frameTypeTyping  = "typing"
	frameTypeReceipt = "receipt"
	frameTypeError   = "error"
)

type clientFrame struct {
	Type      string `json:"type"`
	MessageID uint64 `json:"message_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	ID           string
	ThreadID     uint64
	UserID       uint64
	send         chan []byte
	unsubscribes []func()
}

func newClient(hub *Hub, conn *websocket.Conn, threadID, userID uint64) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		ID:       generateClientID(),
		ThreadID: threadID,
		UserID:   userID,
		send:     make(chan []byte, sendBufferSize),
	}
}

func generateClientID() string {
	bytes := make([]byte, 6)
	if _, err := rand.Read(bytes); err != nil {
		return "xxxxx"
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// enqueue never blocks the bus: a slow socket drops frames rather than
// stalling fan-out.
func (c *Client) enqueue(data []byte) {
	if data == nil {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warnw("Client send buffer full, dropping frame",
			"client_id", c.ID,
			"thread_id", c.ThreadID,
		)
	}
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		// A live socket keeps its presence flag from expiring.
		if err := c.hub.presence.MarkOnline(context.Background(), c.ThreadID, c.UserID); err != nil {
			c.hub.logger.Warnw("Failed to refresh presence", "client_id", c.ID, "error", err)
		}
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	ctx := context.Background()

	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.sendError("malformed frame")
		return
	}

	switch frame.Type {
	case frameTypePing:
		pong, _ := json.Marshal(map[string]string{"type": frameTypePong})
		c.enqueue(pong)

	case frameTypeTyping:
		expiresAt, err := c.hub.presence.SetTyping(ctx, c.ThreadID, c.UserID)
		if err != nil {
			c.hub.logger.Warnw("Failed to set typing state", "client_id", c.ID, "error", err)
			return
		}
		c.hub.eventBus.Publish(ctx, eventbus.NewEvent(
			eventbus.EventParticipantTyping, c.ThreadID, c.UserID,
			map[string]interface{}{"expires_at": expiresAt},
		))

	case frameTypeReceipt:
		// Relay only: durable acknowledgement goes through the receipts
		// endpoint, keeping the wire format decoupled from storage.
		if frame.MessageID == 0 || !validReceiptStatus(frame.Status) {
			c.sendError("invalid receipt frame")
			return
		}
		c.hub.eventBus.Publish(ctx, eventbus.NewEvent(
			eventbus.EventMessageReceipt, c.ThreadID, c.UserID,
			map[string]interface{}{
				"message_id": frame.MessageID,
				"status":     frame.Status,
			},
		))

	default:
		c.sendError("unknown frame type")
	}
}

func validReceiptStatus(status string) bool {
	return status == "SENT" || status == "DELIVERED" || status == "READ"
}

func (c *Client) sendError(message string) {
	data, _ := json.Marshal(map[string]string{
		"type":    frameTypeError,
		"message": message,
	})
	c.enqueue(data)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
