package eventbus

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryBus is the single-process implementation: publishing fans out
// synchronously to every subscriber of the event type. It also serves as
// the local leg of the RedisBus.
type MemoryBus struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers map[string]map[uint64]Handler
	logger      *zap.SugaredLogger
}

func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	return &MemoryBus{
		subscribers: make(map[string]map[uint64]Handler),
		logger:      logger.Sugar(),
	}
}

func (b *MemoryBus) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[event.Type]))
	for _, h := range b.subscribers[event.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(h, event)
	}
	return nil
}

func (b *MemoryBus) dispatch(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("Event handler panicked",
				"event_type", event.Type,
				"event_id", event.ID,
				"panic", r,
			)
		}
	}()
	h(event)
}

func (b *MemoryBus) Subscribe(eventType string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[uint64]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subscribers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers[eventType], id)
	}
}
