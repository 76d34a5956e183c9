package notify

import (
	"context"
	"sync"

	"github.com/collabflow/collabflow/internal/logging"
	"github.com/collabflow/collabflow/internal/repository"
	"github.com/collabflow/collabflow/pkg/models"
)

// DefaultMaxPending caps each user's stored notification set.
const DefaultMaxPending = 100

// Registry addresses notification actors by user identity, spawning each
// user's actor on first use.
type Registry struct {
	mu     sync.Mutex
	actors map[string]*Actor

	store  repository.NotificationStore
	max    int
	buffer int
	logger *logging.Logger
}

// NewRegistry creates a Registry. max caps each user's stored set; buffer
// sizes each push connection's channel.
func NewRegistry(store repository.NotificationStore, max, buffer int, logger *logging.Logger) *Registry {
	if max <= 0 {
		max = DefaultMaxPending
	}
	if buffer <= 0 {
		buffer = 16
	}
	return &Registry{
		actors: make(map[string]*Actor),
		store:  store,
		max:    max,
		buffer: buffer,
		logger: logger,
	}
}

// Actor returns the user's actor, starting it if needed.
func (r *Registry) Actor(userID string) *Actor {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[userID]
	if !ok {
		a = newActor(userID, r.store, r.max, r.logger)
		r.actors[userID] = a
	}
	return a
}

// Notify routes a notification to its recipient's actor.
func (r *Registry) Notify(ctx context.Context, n *models.Notification) error {
	return r.Actor(n.UserID).Notify(ctx, n)
}

// Check returns the user's current unread set.
func (r *Registry) Check(ctx context.Context, userID string) (CheckResult, error) {
	return r.Actor(userID).Check(ctx)
}

// Clear empties the user's stored set.
func (r *Registry) Clear(ctx context.Context, userID string) error {
	return r.Actor(userID).Clear(ctx)
}

// Subscribe accepts a push connection for the user.
func (r *Registry) Subscribe(ctx context.Context, userID string) (*Conn, error) {
	return r.Actor(userID).Subscribe(ctx, r.buffer)
}

// Shutdown stops every actor and closes their connections.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	actors := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	r.actors = make(map[string]*Actor)
	r.mu.Unlock()

	for _, a := range actors {
		a.stop()
	}
}
