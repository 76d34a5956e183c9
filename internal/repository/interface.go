package repository

import (
	"context"
	"time"

	"github.com/collabflow/collabflow/pkg/models"
)

// HistoryFilter narrows a history query. Zero values mean "no filter".
type HistoryFilter struct {
	TenantID    string
	WorkflowID  string
	EventType   models.HistoryEventType
	InitiatorID string
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// WorkflowStore owns workflow and participant rows and the status state
// machine. Status transitions and their history append are atomic: both
// succeed or neither does.
type WorkflowStore interface {
	// CreateWorkflow inserts the workflow, its initiator participant row
	// and the "created" history event in one transaction.
	CreateWorkflow(ctx context.Context, wf *models.Workflow, event *models.HistoryEvent) error
	// GetWorkflow retrieves a workflow by ID.
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	// ListWorkflows returns all workflows for a tenant, newest first.
	ListWorkflows(ctx context.Context, tenantID string) ([]*models.Workflow, error)
	// ApplyTransition moves the workflow to res.Kind if and only if the
	// current status permits it, and appends the history event in the same
	// transaction. Returns ErrInvalidTransition otherwise, leaving the
	// status unchanged.
	ApplyTransition(ctx context.Context, id string, res models.Resolution, event *models.HistoryEvent) error
	// PurgeWorkflow irreversibly removes the workflow row together with
	// its messages, participants and attachment references. Permitted only
	// from the deleted status. The "purged" history event, carrying a
	// denormalized snapshot, is appended in the same transaction.
	PurgeWorkflow(ctx context.Context, id string, event *models.HistoryEvent) error

	AddParticipant(ctx context.Context, p *models.Participant) error
	RemoveParticipant(ctx context.Context, workflowID, userID string) error
	GetParticipant(ctx context.Context, workflowID, userID string) (*models.Participant, error)
	ListParticipants(ctx context.Context, workflowID string) ([]*models.Participant, error)
}

// MessageStore owns the append-only message log per workflow.
type MessageStore interface {
	// AppendMessage inserts the message and assigns its per-workflow Seq.
	// Fails with ErrWorkflowClosed if the workflow is not active and with
	// ErrNotFound if the workflow does not exist.
	AppendMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns the workflow's messages in ascending creation
	// time, ties broken by Seq. Fails with ErrNotFound once the workflow
	// has been purged.
	ListMessages(ctx context.Context, workflowID string) ([]*models.Message, error)
}

// HistoryStore reads and appends audit events. Events are never mutated or
// deleted and remain after their workflow is purged.
type HistoryStore interface {
	AppendEvent(ctx context.Context, event *models.HistoryEvent) error
	QueryEvents(ctx context.Context, filter HistoryFilter) ([]*models.HistoryEvent, error)
}

// NotificationStore persists each user's pending notification set,
// independent of any workflow table.
type NotificationStore interface {
	// AppendNotification inserts the notification and evicts the oldest
	// entries until the user's set is back at max entries.
	AppendNotification(ctx context.Context, n *models.Notification, max int) error
	// ListNotifications returns the user's pending set in arrival order.
	ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error)
	// RemoveNotification deletes one notification, typically after it was
	// delivered over a live push connection.
	RemoveNotification(ctx context.Context, userID, id string) error
	// ClearNotifications empties the user's set.
	ClearNotifications(ctx context.Context, userID string) error
}

// TenantStore resolves and provisions tenants and users for the auth layer
// and the seeder.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *models.Tenant) error
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	// EnsureUser returns the user with the given email, creating it under
	// the tenant when missing.
	EnsureUser(ctx context.Context, tenantID, email, name string) (*models.User, error)
}

// Store aggregates every store the service wires together.
type Store interface {
	WorkflowStore
	MessageStore
	HistoryStore
	NotificationStore
	TenantStore
}
