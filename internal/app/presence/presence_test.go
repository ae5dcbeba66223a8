package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTracker(onlineTTL, typingTTL time.Duration) Tracker {
	return NewTracker(NewMemoryStore(), onlineTTL, typingTTL, zap.NewNop())
}

func TestMarkOnlineAndOffline(t *testing.T) {
	tracker := newTestTracker(time.Minute, 10*time.Second)
	ctx := context.Background()

	online, err := tracker.IsOnline(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, tracker.MarkOnline(ctx, 1, 42))

	online, err = tracker.IsOnline(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, tracker.MarkOffline(ctx, 1, 42))

	online, err = tracker.IsOnline(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestPresenceIsThreadScoped(t *testing.T) {
	tracker := newTestTracker(time.Minute, 10*time.Second)
	ctx := context.Background()

	require.NoError(t, tracker.MarkOnline(ctx, 1, 42))

	online, err := tracker.IsOnline(ctx, 2, 42)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestTypingExpiresAfterTTL(t *testing.T) {
	tracker := newTestTracker(time.Minute, 30*time.Millisecond)
	ctx := context.Background()

	expiresAt, err := tracker.SetTyping(ctx, 1, 42)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(30*time.Millisecond), expiresAt, 20*time.Millisecond)

	typing, err := tracker.IsTyping(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, typing)

	// No explicit stop event: the flag self-heals once the TTL lapses.
	time.Sleep(60 * time.Millisecond)

	typing, err = tracker.IsTyping(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, typing)
}

func TestMarkOfflineClearsTyping(t *testing.T) {
	tracker := newTestTracker(time.Minute, time.Minute)
	ctx := context.Background()

	require.NoError(t, tracker.MarkOnline(ctx, 1, 42))
	_, err := tracker.SetTyping(ctx, 1, 42)
	require.NoError(t, err)

	require.NoError(t, tracker.MarkOffline(ctx, 1, 42))

	typing, err := tracker.IsTyping(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, typing)
}
