package models

import (
	"time"
)

// HistoryEventType identifies a workflow lifecycle transition.
type HistoryEventType string

const (
	HistoryEventCreated    HistoryEventType = "created"
	HistoryEventUpdated    HistoryEventType = "updated"
	HistoryEventCompleted  HistoryEventType = "completed"
	HistoryEventTerminated HistoryEventType = "terminated"
	// HistoryEventReactivated appears in audit rows written by older
	// deployments; the engine itself never re-opens a closed workflow.
	HistoryEventReactivated HistoryEventType = "reactivated"
	HistoryEventDeleted     HistoryEventType = "deleted"
	HistoryEventPurged      HistoryEventType = "purged"
)

// WorkflowSnapshot carries denormalized workflow fields so a history row
// stays human-readable after the workflow row is purged.
type WorkflowSnapshot struct {
	Title       string `json:"title"`
	TenantID    string `json:"tenant_id"`
	InitiatorID string `json:"initiator_id"`
}

// HistoryEvent is an immutable audit record of a workflow lifecycle
// transition. WorkflowID may refer to a workflow that no longer exists.
type HistoryEvent struct {
	ID         string           `json:"id"`
	WorkflowID string           `json:"workflow_id"`
	Type       HistoryEventType `json:"type"`
	ActorID    string           `json:"actor_id"`
	Snapshot   WorkflowSnapshot `json:"snapshot"`
	OccurredAt time.Time        `json:"occurred_at"`
}
