package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabflow/collabflow/internal/logging"
	"github.com/collabflow/collabflow/internal/repository"
	"github.com/collabflow/collabflow/pkg/models"
)

func notification(userID, excerpt string) *models.Notification {
	return &models.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Excerpt:   excerpt,
		CreatedAt: time.Now().UTC(),
	}
}

func TestNotifyAndCheck(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(repository.NewMemStore(), 100, 16, logging.NewLogger())
	defer r.Shutdown()

	require.NoError(t, r.Notify(ctx, notification("bob", "first")))
	require.NoError(t, r.Notify(ctx, notification("bob", "second")))

	result, err := r.Check(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, "first", result.Notifications[0].Excerpt)

	// checking does not consume
	result, err = r.Check(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)

	require.NoError(t, r.Clear(ctx, "bob"))
	result, err = r.Check(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
}

func TestPendingSetIsCapped(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(repository.NewMemStore(), 100, 16, logging.NewLogger())
	defer r.Shutdown()

	for i := 0; i < 105; i++ {
		require.NoError(t, r.Notify(ctx, notification("bob", fmt.Sprintf("n%d", i))))
	}

	result, err := r.Check(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 100, result.Count)
	// the oldest five were evicted
	assert.Equal(t, "n5", result.Notifications[0].Excerpt)
	assert.Equal(t, "n104", result.Notifications[99].Excerpt)
}

func TestSubscribeReceivesPushes(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(repository.NewMemStore(), 100, 16, logging.NewLogger())
	defer r.Shutdown()

	// history is not replayed on subscribe
	require.NoError(t, r.Notify(ctx, notification("bob", "before")))

	conn, err := r.Subscribe(ctx, "bob")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, r.Notify(ctx, notification("bob", "after")))

	select {
	case n := <-conn.Notifications():
		assert.Equal(t, "after", n.Excerpt)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for push")
	}
	assert.Empty(t, len(conn.Notifications()))

	// the delivered notification was consumed; only the earlier one is
	// still pending
	result, err := r.Check(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, "before", result.Notifications[0].Excerpt)
}

func TestStalledConnectionIsDropped(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(repository.NewMemStore(), 100, 1, logging.NewLogger())
	defer r.Shutdown()

	conn, err := r.Subscribe(ctx, "bob")
	require.NoError(t, err)

	// the first push is delivered and consumed; the second finds the
	// buffer full, drops the connection and stays pending
	require.NoError(t, r.Notify(ctx, notification("bob", "one")))
	require.NoError(t, r.Notify(ctx, notification("bob", "two")))

	n, ok := <-conn.Notifications()
	require.True(t, ok)
	assert.Equal(t, "one", n.Excerpt)
	_, ok = <-conn.Notifications()
	assert.False(t, ok)

	result, err := r.Check(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, "two", result.Notifications[0].Excerpt)
}

func TestConcurrentNotifiesAreSerialized(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(repository.NewMemStore(), 100, 16, logging.NewLogger())
	defer r.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, r.Notify(ctx, notification("bob", fmt.Sprintf("n%d", i))))
		}(i)
	}
	wg.Wait()

	result, err := r.Check(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 50, result.Count)
}

func TestShutdownClosesConnections(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(repository.NewMemStore(), 100, 16, logging.NewLogger())

	conn, err := r.Subscribe(ctx, "bob")
	require.NoError(t, err)

	r.Shutdown()

	select {
	case _, ok := <-conn.Notifications():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("connection channel not closed on shutdown")
	}
}
