// Package stream fans out workflow events to connected viewers.
//
// One logical channel exists per workflow, multiplexed to every subscriber
// of that workflow. Delivery is at-most-once per event per
// currently-connected subscriber and there is no replay buffer: a viewer
// that connects after an event was published must fetch current state via
// the static message list instead. Consumers should reconnect with a fixed
// backoff on transport errors and dedup by message ID, since priming reads
// after a resubscribe may re-observe the most recent message.
package stream

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/collabflow/collabflow/internal/logging"
)

// EventType identifies a live stream event.
type EventType string

const (
	EventMessage           EventType = "message"
	EventStatusUpdate      EventType = "status_update"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	// EventClosed is the explicit terminal event of a stream. Subscribers
	// receive it exactly once before their channel closes when the
	// workflow leaves the active status; a channel that closes without it
	// signals an abnormal drop and the consumer should resubscribe.
	EventClosed EventType = "closed"
)

// CloseReason says why a stream terminated normally.
type CloseReason string

const (
	CloseCompleted  CloseReason = "completed"
	CloseTerminated CloseReason = "terminated"
)

// Event is the wire shape pushed to subscribers.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// Subscription is one viewer's attachment to a workflow stream.
type Subscription struct {
	workflowID string
	userID     string
	events     chan Event

	b    *Broadcaster
	once sync.Once
}

// Events returns the subscriber's event channel. The channel is closed
// after an EventClosed on normal stream termination, or without one if the
// subscriber was dropped for failing to keep up.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// UserID returns the viewer this subscription belongs to.
func (s *Subscription) UserID() string {
	return s.userID
}

// Close detaches the subscription. Safe to call more than once and after
// the stream has already terminated.
func (s *Subscription) Close() {
	s.b.unsubscribe(s)
}

// Broadcaster multiplexes per-workflow event channels to their connected
// viewers. Publishing never blocks on a slow subscriber: a full buffer
// counts as a failed delivery, the subscriber is dropped and the failure is
// logged, never surfaced to the sender of the triggering message.
type Broadcaster struct {
	mu   sync.Mutex
	hubs map[string]map[*Subscription]struct{}

	buffer int
	logger *logging.Logger

	published metric.Int64Counter
	dropped   metric.Int64Counter
}

// NewBroadcaster creates a Broadcaster with the given per-subscriber
// buffer size.
func NewBroadcaster(buffer int, logger *logging.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	meter := otel.Meter("github.com/collabflow/collabflow/internal/stream")
	published, _ := meter.Int64Counter("stream.events.published",
		metric.WithDescription("Events published to workflow streams"))
	dropped, _ := meter.Int64Counter("stream.deliveries.dropped",
		metric.WithDescription("Subscribers dropped for failing to keep up"))

	return &Broadcaster{
		hubs:      make(map[string]map[*Subscription]struct{}),
		buffer:    buffer,
		logger:    logger,
		published: published,
		dropped:   dropped,
	}
}

// Subscribe attaches a viewer to a workflow's stream. Callers must verify
// the workflow is active first; the broadcaster itself only tracks
// connections.
func (b *Broadcaster) Subscribe(workflowID, userID string) *Subscription {
	sub := &Subscription{
		workflowID: workflowID,
		userID:     userID,
		events:     make(chan Event, b.buffer),
		b:          b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	hub, ok := b.hubs[workflowID]
	if !ok {
		hub = make(map[*Subscription]struct{})
		b.hubs[workflowID] = hub
	}
	hub[sub] = struct{}{}
	return sub
}

func (b *Broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Broadcaster) removeLocked(sub *Subscription) {
	hub, ok := b.hubs[sub.workflowID]
	if ok {
		delete(hub, sub)
		if len(hub) == 0 {
			delete(b.hubs, sub.workflowID)
		}
	}
	sub.once.Do(func() { close(sub.events) })
}

// Publish delivers the event to every current subscriber of the workflow.
// Best-effort: delivery failures drop the unlucky subscriber and are
// invisible to the caller. All channel sends are non-blocking, so holding
// the lock across the fan-out is cheap and keeps per-subscriber event
// order consistent with publish order.
func (b *Broadcaster) Publish(ctx context.Context, workflowID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published.Add(ctx, 1)
	for sub := range b.hubs[workflowID] {
		b.sendLocked(ctx, sub, ev)
	}
}

// CloseStream terminates the workflow's channel: every subscriber receives
// one EventClosed carrying the reason, then its channel is closed. Used
// when a workflow completes or terminates; no further pushes are
// meaningful once non-active.
func (b *Broadcaster) CloseStream(ctx context.Context, workflowID string, reason CloseReason) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hub := b.hubs[workflowID]
	delete(b.hubs, workflowID)
	for sub := range hub {
		select {
		case sub.events <- Event{Type: EventClosed, Data: reason}:
		default:
			b.dropped.Add(ctx, 1)
			b.logger.Warn("subscriber missed terminal event",
				"workflow_id", workflowID, "user_id", sub.userID)
		}
		sub.once.Do(func() { close(sub.events) })
	}
}

// Viewing reports whether the user currently has a live subscription to
// the workflow. The lifecycle coordinator uses it to decide who gets a
// pending notification instead of a stream delivery.
func (b *Broadcaster) Viewing(workflowID, userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.hubs[workflowID] {
		if sub.userID == userID {
			return true
		}
	}
	return false
}

func (b *Broadcaster) sendLocked(ctx context.Context, sub *Subscription, ev Event) {
	select {
	case sub.events <- ev:
	default:
		// Slow consumer. Drop the connection rather than block the
		// publisher; the viewer falls back to polling and resubscribes.
		b.dropped.Add(ctx, 1)
		b.logger.Warn("dropping slow stream subscriber",
			"workflow_id", sub.workflowID, "user_id", sub.userID, "event", ev.Type)
		b.removeLocked(sub)
	}
}
