package repository

import "errors"

// Sentinel errors shared by every store implementation. The service layer
// translates anything that is not one of these into ErrTransient before it
// reaches an external caller.
var (
	// ErrNotFound indicates the workflow, message or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition indicates a state machine edge that is not
	// permitted from the current workflow status.
	ErrInvalidTransition = errors.New("invalid workflow transition")
	// ErrWorkflowClosed indicates a message append against a workflow that
	// has left the active status.
	ErrWorkflowClosed = errors.New("workflow is closed")
	// ErrNotParticipant indicates the sender has no participant row in the
	// workflow.
	ErrNotParticipant = errors.New("not a workflow participant")
	// ErrTransient indicates the underlying store was unavailable. Only
	// idempotent reads may be retried on it.
	ErrTransient = errors.New("transient store failure")
)
