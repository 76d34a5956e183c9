package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabflow/collabflow/pkg/models"
)

func seedWorkflow(t *testing.T, store Store, tenantID, initiatorID string) *models.Workflow {
	t.Helper()
	now := time.Now().UTC()
	wf := &models.Workflow{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		InitiatorID: initiatorID,
		Title:       "test workflow",
		Status:      models.WorkflowStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := store.CreateWorkflow(context.Background(), wf, historyEvent(wf, models.HistoryEventCreated, initiatorID))
	require.NoError(t, err)
	return wf
}

func historyEvent(wf *models.Workflow, typ models.HistoryEventType, actor string) *models.HistoryEvent {
	return &models.HistoryEvent{
		ID:         uuid.New().String(),
		WorkflowID: wf.ID,
		Type:       typ,
		ActorID:    actor,
		Snapshot: models.WorkflowSnapshot{
			Title:       wf.Title,
			TenantID:    wf.TenantID,
			InitiatorID: wf.InitiatorID,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func TestMemStoreWorkflowLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	wf := seedWorkflow(t, store, "tenant-1", "alice")

	got, err := store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, got.Status)
	assert.Nil(t, got.Resolution)

	// active -> deleted is not an edge
	err = store.ApplyTransition(ctx, wf.ID,
		models.Resolution{Kind: models.WorkflowStatusDeleted, By: "alice", At: time.Now()},
		historyEvent(wf, models.HistoryEventDeleted, "alice"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// active -> completed
	res := models.Resolution{Kind: models.WorkflowStatusCompleted, By: "alice", At: time.Now().UTC()}
	err = store.ApplyTransition(ctx, wf.ID, res, historyEvent(wf, models.HistoryEventCompleted, "alice"))
	require.NoError(t, err)

	got, err = store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, got.Status)
	require.NotNil(t, got.Resolution)
	assert.Equal(t, "alice", got.Resolution.By)

	// completed -> terminated is not an edge either
	err = store.ApplyTransition(ctx, wf.ID,
		models.Resolution{Kind: models.WorkflowStatusTerminated, By: "alice", At: time.Now()},
		historyEvent(wf, models.HistoryEventTerminated, "alice"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// completed -> deleted -> purge
	err = store.ApplyTransition(ctx, wf.ID,
		models.Resolution{Kind: models.WorkflowStatusDeleted, By: "alice", At: time.Now().UTC()},
		historyEvent(wf, models.HistoryEventDeleted, "alice"))
	require.NoError(t, err)

	err = store.PurgeWorkflow(ctx, wf.ID, historyEvent(wf, models.HistoryEventPurged, "alice"))
	require.NoError(t, err)

	_, err = store.GetWorkflow(ctx, wf.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// history survives the purge, snapshot included
	events, err := store.QueryEvents(ctx, HistoryFilter{WorkflowID: wf.ID})
	require.NoError(t, err)
	require.Len(t, events, 4)
	last := events[len(events)-1]
	assert.Equal(t, models.HistoryEventPurged, last.Type)
	assert.Equal(t, "test workflow", last.Snapshot.Title)
}

func TestMemStorePurgeRequiresDeleted(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	wf := seedWorkflow(t, store, "tenant-1", "alice")

	err := store.PurgeWorkflow(ctx, wf.ID, historyEvent(wf, models.HistoryEventPurged, "alice"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = store.GetWorkflow(ctx, wf.ID)
	assert.NoError(t, err)
}

func TestMemStoreMessages(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	wf := seedWorkflow(t, store, "tenant-1", "alice")

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		msg := &models.Message{
			ID:         uuid.New().String(),
			WorkflowID: wf.ID,
			SenderID:   "alice",
			Type:       models.MessageTypeRequest,
			Content:    fmt.Sprintf("message %d", i),
			CreatedAt:  base, // identical timestamps, seq breaks the tie
		}
		require.NoError(t, store.AppendMessage(ctx, msg))
		assert.Equal(t, int64(i+1), msg.Seq)
	}

	messages, err := store.ListMessages(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, msg := range messages {
		assert.Equal(t, fmt.Sprintf("message %d", i), msg.Content)
	}

	// repeated reads return the same sequence
	again, err := store.ListMessages(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, messages, again)

	// closed workflow rejects appends and stores nothing
	err = store.ApplyTransition(ctx, wf.ID,
		models.Resolution{Kind: models.WorkflowStatusCompleted, By: "alice", At: time.Now().UTC()},
		historyEvent(wf, models.HistoryEventCompleted, "alice"))
	require.NoError(t, err)

	err = store.AppendMessage(ctx, &models.Message{
		ID: uuid.New().String(), WorkflowID: wf.ID, SenderID: "alice", Content: "too late",
	})
	assert.ErrorIs(t, err, ErrWorkflowClosed)

	messages, err = store.ListMessages(ctx, wf.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 3)

	// unknown workflow
	err = store.AppendMessage(ctx, &models.Message{ID: uuid.New().String(), WorkflowID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.ListMessages(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreParticipants(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	wf := seedWorkflow(t, store, "tenant-1", "alice")

	// the initiator row exists from creation
	p, err := store.GetParticipant(ctx, wf.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantRoleInitiator, p.Role)

	err = store.AddParticipant(ctx, &models.Participant{
		WorkflowID: wf.ID, UserID: "bob", Role: models.ParticipantRoleMember, JoinedAt: time.Now(),
	})
	require.NoError(t, err)

	// joining twice is a no-op
	err = store.AddParticipant(ctx, &models.Participant{
		WorkflowID: wf.ID, UserID: "bob", Role: models.ParticipantRoleObserver, JoinedAt: time.Now(),
	})
	require.NoError(t, err)

	participants, err := store.ListParticipants(ctx, wf.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 2)

	require.NoError(t, store.RemoveParticipant(ctx, wf.ID, "bob"))
	assert.ErrorIs(t, store.RemoveParticipant(ctx, wf.ID, "bob"), ErrNotFound)
}

func TestMemStoreNotificationCap(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	for i := 0; i < 7; i++ {
		err := store.AppendNotification(ctx, &models.Notification{
			ID:      uuid.New().String(),
			UserID:  "bob",
			Excerpt: fmt.Sprintf("n%d", i),
		}, 5)
		require.NoError(t, err)
	}

	pending, err := store.ListNotifications(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, pending, 5)
	// the two oldest were evicted
	assert.Equal(t, "n2", pending[0].Excerpt)
	assert.Equal(t, "n6", pending[4].Excerpt)

	require.NoError(t, store.ClearNotifications(ctx, "bob"))
	pending, err = store.ListNotifications(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMemStoreHistoryFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	wfA := seedWorkflow(t, store, "tenant-1", "alice")
	wfB := seedWorkflow(t, store, "tenant-2", "bob")

	events, err := store.QueryEvents(ctx, HistoryFilter{TenantID: "tenant-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, wfA.ID, events[0].WorkflowID)

	events, err = store.QueryEvents(ctx, HistoryFilter{EventType: models.HistoryEventCreated})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = store.QueryEvents(ctx, HistoryFilter{InitiatorID: "bob"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, wfB.ID, events[0].WorkflowID)

	events, err = store.QueryEvents(ctx, HistoryFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = store.QueryEvents(ctx, HistoryFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemStoreTenants(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	tenant := &models.Tenant{Name: "Acme", Domain: "acme.com"}
	require.NoError(t, store.CreateTenant(ctx, tenant))
	assert.NotEmpty(t, tenant.ID)

	got, err := store.GetTenantByDomain(ctx, "acme.com")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, got.ID)

	_, err = store.GetTenantByDomain(ctx, "other.com")
	assert.ErrorIs(t, err, ErrNotFound)

	u1, err := store.EnsureUser(ctx, tenant.ID, "a@acme.com", "A")
	require.NoError(t, err)
	u2, err := store.EnsureUser(ctx, tenant.ID, "a@acme.com", "A")
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
}
