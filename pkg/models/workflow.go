// Package models defines the domain models for the workflow collaboration service.
package models

import (
	"time"
)

// WorkflowStatus represents the lifecycle status of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive     WorkflowStatus = "active"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
	WorkflowStatusTerminated WorkflowStatus = "terminated"
	WorkflowStatusDeleted    WorkflowStatus = "deleted"
)

// Resolution records the terminal transition currently in effect for a
// workflow. A workflow carries at most one Resolution, so "at most one
// terminal actor/timestamp pair" holds by construction. Earlier terminal
// transitions remain visible through the history log.
type Resolution struct {
	Kind WorkflowStatus `json:"kind"`
	By   string         `json:"by"`
	At   time.Time      `json:"at"`
}

// Workflow represents a tenant-scoped collaborative task with a lifecycle
// and an associated message thread.
type Workflow struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	InitiatorID string         `json:"initiator_id"`
	Title       string         `json:"title"`
	Status      WorkflowStatus `json:"status"`
	Resolution  *Resolution    `json:"resolution,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Active reports whether the workflow still accepts messages and live
// stream subscriptions.
func (w *Workflow) Active() bool {
	return w.Status == WorkflowStatusActive
}

// CanTransitionTo reports whether the status machine permits moving from s
// to next. Purge is not represented here because a purged workflow has no
// row left to carry a status; the store enforces that purge only applies to
// deleted workflows.
func (s WorkflowStatus) CanTransitionTo(next WorkflowStatus) bool {
	switch next {
	case WorkflowStatusCompleted, WorkflowStatusTerminated:
		return s == WorkflowStatusActive
	case WorkflowStatusDeleted:
		return s == WorkflowStatusCompleted || s == WorkflowStatusTerminated
	default:
		return false
	}
}
