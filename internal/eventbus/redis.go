package eventbus

import (
	"context"
	"encoding/json"

	redisprovider "backend/internal/providers/redis"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type envelope struct {
	InstanceID string `json:"instance_id"`
	Event      Event  `json:"event"`
}

// RedisBus extends MemoryBus across process boundaries: every publish is
// dispatched locally and broadcast on a shared redis channel so sibling
// instances converge on the same event stream. Self-echoes are dropped by
// instance id since the local dispatch already happened.
type RedisBus struct {
	local      *MemoryBus
	redisP     *redisprovider.RedisProvider
	channel    string
	instanceID string
	logger     *zap.SugaredLogger
}

func NewRedisBus(redisP *redisprovider.RedisProvider, channel string, logger *zap.Logger) *RedisBus {
	return &RedisBus{
		local:      NewMemoryBus(logger),
		redisP:     redisP,
		channel:    channel,
		instanceID: uuid.New().String(),
		logger:     logger.Sugar(),
	}
}

func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	if err := b.local.Publish(ctx, event); err != nil {
		return err
	}

	data, err := json.Marshal(envelope{InstanceID: b.instanceID, Event: event})
	if err != nil {
		return err
	}

	if err := b.redisP.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Errorw("Failed to broadcast event",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err,
		)
		return err
	}
	return nil
}

func (b *RedisBus) Subscribe(eventType string, handler Handler) func() {
	return b.local.Subscribe(eventType, handler)
}

// Run consumes the shared channel and dispatches events published by
// sibling instances into the local bus. Blocks until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) {
	pubsub := b.redisP.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	b.logger.Infow("Event bus bridge started",
		"channel", b.channel,
		"instance_id", b.instanceID,
	)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warnw("Dropping malformed bus envelope", "error", err)
				continue
			}
			if env.InstanceID == b.instanceID {
				continue
			}
			if err := b.local.Publish(ctx, env.Event); err != nil {
				b.logger.Errorw("Failed to dispatch remote event", "error", err)
			}
		}
	}
}
