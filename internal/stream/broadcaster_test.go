package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabflow/collabflow/internal/logging"
)

func TestPublishReachesCurrentSubscribers(t *testing.T) {
	ctx := context.Background()
	b := NewBroadcaster(4, logging.NewLogger())

	b.Publish(ctx, "wf-1", Event{Type: EventMessage, Data: "before"})

	sub := b.Subscribe("wf-1", "alice")
	defer sub.Close()

	b.Publish(ctx, "wf-1", Event{Type: EventMessage, Data: "after"})

	// no replay: only the event published while connected arrives
	ev := <-sub.Events()
	assert.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, "after", ev.Data)
	assert.Empty(t, len(sub.Events()))
}

func TestPublishIsScopedPerWorkflow(t *testing.T) {
	ctx := context.Background()
	b := NewBroadcaster(4, logging.NewLogger())

	subA := b.Subscribe("wf-a", "alice")
	defer subA.Close()
	subB := b.Subscribe("wf-b", "alice")
	defer subB.Close()

	b.Publish(ctx, "wf-a", Event{Type: EventMessage, Data: "for a"})

	ev := <-subA.Events()
	assert.Equal(t, "for a", ev.Data)
	assert.Empty(t, len(subB.Events()))
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	ctx := context.Background()
	b := NewBroadcaster(1, logging.NewLogger())

	sub := b.Subscribe("wf-1", "alice")

	b.Publish(ctx, "wf-1", Event{Type: EventMessage, Data: "one"})
	// the buffer is full, so this delivery fails and drops the subscriber
	b.Publish(ctx, "wf-1", Event{Type: EventMessage, Data: "two"})

	ev, ok := <-sub.Events()
	require.True(t, ok)
	assert.Equal(t, "one", ev.Data)

	// channel closed without an EventClosed: abnormal drop
	_, ok = <-sub.Events()
	assert.False(t, ok)
	assert.False(t, b.Viewing("wf-1", "alice"))
}

func TestCloseStreamSendsTerminalEvent(t *testing.T) {
	ctx := context.Background()
	b := NewBroadcaster(4, logging.NewLogger())

	sub := b.Subscribe("wf-1", "alice")

	b.CloseStream(ctx, "wf-1", CloseCompleted)

	ev, ok := <-sub.Events()
	require.True(t, ok)
	assert.Equal(t, EventClosed, ev.Type)
	assert.Equal(t, CloseCompleted, ev.Data)

	_, ok = <-sub.Events()
	assert.False(t, ok)

	// a late subscriber to a closed workflow just never hears anything
	assert.False(t, b.Viewing("wf-1", "alice"))
}

func TestViewing(t *testing.T) {
	b := NewBroadcaster(4, logging.NewLogger())

	assert.False(t, b.Viewing("wf-1", "alice"))

	sub := b.Subscribe("wf-1", "alice")
	assert.True(t, b.Viewing("wf-1", "alice"))
	assert.False(t, b.Viewing("wf-1", "bob"))

	sub.Close()
	assert.False(t, b.Viewing("wf-1", "alice"))
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := NewBroadcaster(4, logging.NewLogger())

	sub := b.Subscribe("wf-1", "alice")
	sub.Close()
	sub.Close()

	b.CloseStream(ctx, "wf-1", CloseTerminated)
}
