package presence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Tracker interface {
	MarkOnline(ctx context.Context, threadID, userID uint64) error
	MarkOffline(ctx context.Context, threadID, userID uint64) error
	IsOnline(ctx context.Context, threadID, userID uint64) (bool, error)
	SetTyping(ctx context.Context, threadID, userID uint64) (time.Time, error)
	IsTyping(ctx context.Context, threadID, userID uint64) (bool, error)
}

type tracker struct {
	store     Store
	onlineTTL time.Duration
	typingTTL time.Duration
	logger    *zap.SugaredLogger
}

func NewTracker(store Store, onlineTTL, typingTTL time.Duration, logger *zap.Logger) Tracker {
	return &tracker{
		store:     store,
		onlineTTL: onlineTTL,
		typingTTL: typingTTL,
		logger:    logger.Sugar(),
	}
}

func onlineKey(threadID, userID uint64) string {
	return fmt.Sprintf("presence:online:%d:%d", threadID, userID)
}

func typingKey(threadID, userID uint64) string {
	return fmt.Sprintf("presence:typing:%d:%d", threadID, userID)
}

// MarkOnline refreshes the online flag; the gateway calls it on connect
// and on every heartbeat so a dead connection self-heals via TTL expiry.
func (t *tracker) MarkOnline(ctx context.Context, threadID, userID uint64) error {
	return t.store.Set(ctx, onlineKey(threadID, userID), "1", t.onlineTTL)
}

func (t *tracker) MarkOffline(ctx context.Context, threadID, userID uint64) error {
	return t.store.Del(ctx, onlineKey(threadID, userID), typingKey(threadID, userID))
}

func (t *tracker) IsOnline(ctx context.Context, threadID, userID uint64) (bool, error) {
	return t.store.Exists(ctx, onlineKey(threadID, userID))
}

// SetTyping arms the typing flag and returns when it expires. There is no
// explicit stop event; consumers treat the state as gone once the TTL
// lapses.
func (t *tracker) SetTyping(ctx context.Context, threadID, userID uint64) (time.Time, error) {
	expiresAt := time.Now().UTC().Add(t.typingTTL)
	if err := t.store.Set(ctx, typingKey(threadID, userID), "1", t.typingTTL); err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

func (t *tracker) IsTyping(ctx context.Context, threadID, userID uint64) (bool, error) {
	return t.store.Exists(ctx, typingKey(threadID, userID))
}
