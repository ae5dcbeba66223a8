package eventbus

import (
	"context"

	"github.com/google/uuid"
)

const (
	EventThreadUpdated       = "thread.updated"
	EventMessageCreated      = "message.created"
	EventMessageReceipt      = "message.receipt"
	EventParticipantTyping   = "participant.typing"
	EventParticipantPresence = "participant.presence"
)

type Event struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	ThreadID uint64                 `json:"thread_id,omitempty"`
	UserID   uint64                 `json:"user_id,omitempty"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

type Handler func(event Event)

// Bus fans domain events out to subscribers. Implementations deliver
// at-least-once and must not reorder a single publisher's thread-scoped
// sequence.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType string, handler Handler) (unsubscribe func())
}

func NewEvent(eventType string, threadID, userID uint64, payload map[string]interface{}) Event {
	return Event{
		ID:       uuid.New().String(),
		Type:     eventType,
		ThreadID: threadID,
		UserID:   userID,
		Payload:  payload,
	}
}
