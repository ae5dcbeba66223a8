package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryBusPublishFansOutToSubscribers(t *testing.T) {
	bus := NewMemoryBus(zap.NewNop())

	var got []Event
	bus.Subscribe(EventMessageCreated, func(e Event) {
		got = append(got, e)
	})

	event := NewEvent(EventMessageCreated, 7, 1, map[string]interface{}{"k": "v"})
	require.NoError(t, bus.Publish(context.Background(), event))

	require.Len(t, got, 1)
	assert.Equal(t, EventMessageCreated, got[0].Type)
	assert.Equal(t, uint64(7), got[0].ThreadID)
	assert.NotEmpty(t, got[0].ID)
}

func TestMemoryBusSubscriptionIsTypeScoped(t *testing.T) {
	bus := NewMemoryBus(zap.NewNop())

	var typingCount, receiptCount int
	bus.Subscribe(EventParticipantTyping, func(Event) { typingCount++ })
	bus.Subscribe(EventMessageReceipt, func(Event) { receiptCount++ })

	bus.Publish(context.Background(), NewEvent(EventParticipantTyping, 1, 2, nil))
	bus.Publish(context.Background(), NewEvent(EventParticipantTyping, 1, 2, nil))
	bus.Publish(context.Background(), NewEvent(EventMessageReceipt, 1, 2, nil))

	assert.Equal(t, 2, typingCount)
	assert.Equal(t, 1, receiptCount)
}

func TestMemoryBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewMemoryBus(zap.NewNop())

	var count int
	unsubscribe := bus.Subscribe(EventThreadUpdated, func(Event) { count++ })

	bus.Publish(context.Background(), NewEvent(EventThreadUpdated, 1, 0, nil))
	unsubscribe()
	bus.Publish(context.Background(), NewEvent(EventThreadUpdated, 1, 0, nil))

	assert.Equal(t, 1, count)
}

func TestMemoryBusPreservesPublishOrder(t *testing.T) {
	bus := NewMemoryBus(zap.NewNop())

	var order []string
	bus.Subscribe(EventMessageCreated, func(e Event) {
		order = append(order, e.Payload["seq"].(string))
	})

	for _, seq := range []string{"a", "b", "c"} {
		bus.Publish(context.Background(), NewEvent(EventMessageCreated, 1, 0, map[string]interface{}{"seq": seq}))
	}

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestMemoryBusRecoversFromHandlerPanic(t *testing.T) {
	bus := NewMemoryBus(zap.NewNop())

	var delivered bool
	bus.Subscribe(EventMessageCreated, func(Event) { panic("boom") })
	bus.Subscribe(EventMessageCreated, func(Event) { delivered = true })

	require.NoError(t, bus.Publish(context.Background(), NewEvent(EventMessageCreated, 1, 0, nil)))

	assert.True(t, delivered)
}
