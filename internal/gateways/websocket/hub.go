package websocket

import (
	"encoding/json"

	"backend/internal/app/presence"
	"backend/internal/app/session"
	"backend/internal/app/thread"
	"backend/internal/eventbus"

	"go.uber.org/zap"
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	logger     *zap.SugaredLogger

	resolver  session.Resolver
	threadSvc thread.Service
	presence  presence.Tracker
	eventBus  eventbus.Bus
}

func NewHub(
	logger *zap.Logger,
	resolver session.Resolver,
	threadSvc thread.Service,
	presenceT presence.Tracker,
	eventBus eventbus.Bus,
) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.Sugar(),
		resolver:   resolver,
		threadSvc:  threadSvc,
		presence:   presenceT,
		eventBus:   eventBus,
	}
}

func (h *Hub) Run() {
	h.logger.Info("WebSocket Hub started")

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Infow("Client connected",
				"client_id", client.ID,
				"thread_id", client.ThreadID,
				"user_id", client.UserID,
				"clients_count", len(h.clients),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.logger.Infow("Client disconnected",
					"client_id", client.ID,
					"thread_id", client.ThreadID,
					"user_id", client.UserID,
					"clients_count", len(h.clients),
				)
			}
		}
	}
}

var relayedEventTypes = []string{
	eventbus.EventThreadUpdated,
	eventbus.EventMessageCreated,
	eventbus.EventMessageReceipt,
	eventbus.EventParticipantTyping,
	eventbus.EventParticipantPresence,
}

// subscribeClient wires the socket into the bus. Events are filtered to
// the connection's thread, and a client never sees its own typing or
// presence echoes.
func (h *Hub) subscribeClient(client *Client) {
	for _, eventType := range relayedEventTypes {
		unsub := h.eventBus.Subscribe(eventType, func(e eventbus.Event) {
			if e.ThreadID != client.ThreadID {
				return
			}
			if isSelfScoped(e.Type) && e.UserID == client.UserID {
				return
			}
			client.enqueue(h.frameFor(e))
		})
		client.unsubscribes = append(client.unsubscribes, unsub)
	}
}

func isSelfScoped(eventType string) bool {
	return eventType == eventbus.EventParticipantTyping ||
		eventType == eventbus.EventParticipantPresence
}

func (h *Hub) frameFor(e eventbus.Event) []byte {
	frame := map[string]interface{}{
		"type":      e.Type,
		"thread_id": e.ThreadID,
	}
	switch e.Type {
	case eventbus.EventMessageReceipt, eventbus.EventParticipantTyping, eventbus.EventParticipantPresence:
		frame["user_id"] = e.UserID
	}
	for k, v := range e.Payload {
		frame[k] = v
	}

	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Errorw("Failed to marshal outbound frame", "event_type", e.Type, "error", err)
		return nil
	}
	return data
}
