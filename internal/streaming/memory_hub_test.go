package streaming

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{ChatID: "c1", EventType: "agentFlow"}))

	event := <-ch
	assert.Equal(t, "c1", event.ChatID)
	assert.Equal(t, "agentFlow", event.EventType)
}

func TestSubscribeFiltersByChatID(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{ChatID: "c1"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{ChatID: "other", EventType: "agentFlow"}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{ChatID: "c1", EventType: "agentFlow"}))

	event := <-ch
	assert.Equal(t, "c1", event.ChatID)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event: %+v", extra)
	default:
	}
}

func TestSubscribeFiltersByEventType(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{EventTypes: []string{"action"}})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{ChatID: "c1", EventType: "agentFlow"}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{ChatID: "c1", EventType: "action"}))

	event := <-ch
	assert.Equal(t, "action", event.EventType)
}

func TestSlowSubscriberDropsEventsWithoutBlocking(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	_, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	// Publish past the channel buffer; Publish must never block.
	for i := 0; i < defaultChannelBuffer*2; i++ {
		require.NoError(t, hub.Publish(ctx, StreamEvent{ChatID: "c1", EventType: "agentFlowExecutedData"}))
	}
}

func TestCancelledSubscriptionStopsDelivery(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{ChatID: "c1", EventType: "agentFlow"}))
	select {
	case e := <-ch:
		t.Fatalf("event delivered after cancel: %+v", e)
	default:
	}
}
