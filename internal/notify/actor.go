// Package notify implements the per-user pending-notification actor.
//
// Each user is served by one actor: a single goroutine owning that user's
// notification state, processing notify/check/clear/subscribe operations
// one at a time. State is durable through a NotificationStore and is
// independent of any workflow's lifetime; it survives workflow deletion
// until explicitly cleared.
package notify

import (
	"context"

	"github.com/collabflow/collabflow/internal/logging"
	"github.com/collabflow/collabflow/internal/repository"
	"github.com/collabflow/collabflow/pkg/models"
)

// CheckResult is the current unread set, returned without mutating it.
type CheckResult struct {
	Count         int                    `json:"count"`
	Notifications []*models.Notification `json:"notifications"`
}

// Conn is one live push connection of a user. The actor drops its
// reference on transport close and never pushes to a dropped connection.
type Conn struct {
	userID string
	ch     chan *models.Notification
	actor  *Actor
}

// Notifications returns the push channel. It closes when the connection
// is detached or the registry shuts down. Historical notifications are not
// replayed here; use Check for those.
func (c *Conn) Notifications() <-chan *models.Notification {
	return c.ch
}

// UserID returns the user this connection was accepted for.
func (c *Conn) UserID() string {
	return c.userID
}

// Close detaches the connection from the actor.
func (c *Conn) Close() {
	c.actor.detach(c)
}

// Actor serializes all notification operations for a single user.
type Actor struct {
	userID string
	ops    chan func()
	quit   chan struct{}
	done   chan struct{}

	store  repository.NotificationStore
	max    int
	conns  map[*Conn]struct{}
	logger *logging.Logger
}

func newActor(userID string, store repository.NotificationStore, max int, logger *logging.Logger) *Actor {
	a := &Actor{
		userID: userID,
		ops:    make(chan func(), 32),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		store:  store,
		max:    max,
		conns:  make(map[*Conn]struct{}),
		logger: logger,
	}
	go a.loop()
	return a
}

func (a *Actor) loop() {
	defer close(a.done)
	for {
		select {
		case op := <-a.ops:
			op()
		case <-a.quit:
			for conn := range a.conns {
				close(conn.ch)
			}
			return
		}
	}
}

// do runs fn on the actor goroutine and waits for it, respecting ctx.
func (a *Actor) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	select {
	case a.ops <- func() { fn(); close(ran) }:
	case <-a.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-a.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify appends a notification, evicting the oldest entries beyond the
// cap, then pushes it to every live connection. A push delivery consumes
// the stored entry; a failed push never returns an error, the connection
// is dropped and the failure logged.
func (a *Actor) Notify(ctx context.Context, n *models.Notification) error {
	var storeErr error
	err := a.do(ctx, func() {
		storeErr = a.store.AppendNotification(ctx, n, a.max)
		if storeErr != nil {
			return
		}
		delivered := false
		for conn := range a.conns {
			select {
			case conn.ch <- n:
				delivered = true
			default:
				a.logger.Warn("dropping stalled notification connection", "user_id", a.userID)
				delete(a.conns, conn)
				close(conn.ch)
			}
		}
		if delivered {
			if err := a.store.RemoveNotification(ctx, a.userID, n.ID); err != nil {
				a.logger.Warn("failed to consume delivered notification",
					"user_id", a.userID, "error", err)
			}
		}
	})
	if err != nil {
		return err
	}
	return storeErr
}

// Check returns the current unread set without mutating it.
func (a *Actor) Check(ctx context.Context) (CheckResult, error) {
	var result CheckResult
	var storeErr error
	err := a.do(ctx, func() {
		var pending []*models.Notification
		pending, storeErr = a.store.ListNotifications(ctx, a.userID)
		if storeErr != nil {
			return
		}
		result = CheckResult{Count: len(pending), Notifications: pending}
	})
	if err != nil {
		return CheckResult{}, err
	}
	return result, storeErr
}

// Clear empties the stored set, typically when the user marks their
// notifications read.
func (a *Actor) Clear(ctx context.Context) error {
	var storeErr error
	err := a.do(ctx, func() {
		storeErr = a.store.ClearNotifications(ctx, a.userID)
	})
	if err != nil {
		return err
	}
	return storeErr
}

// Subscribe accepts a push connection for the user. Nothing is replayed on
// accept; the caller issues a Check for history.
func (a *Actor) Subscribe(ctx context.Context, buffer int) (*Conn, error) {
	conn := &Conn{
		userID: a.userID,
		ch:     make(chan *models.Notification, buffer),
		actor:  a,
	}
	err := a.do(ctx, func() {
		a.conns[conn] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (a *Actor) detach(conn *Conn) {
	_ = a.do(context.Background(), func() {
		if _, ok := a.conns[conn]; ok {
			delete(a.conns, conn)
			close(conn.ch)
		}
	})
}

func (a *Actor) stop() {
	close(a.quit)
	<-a.done
}
