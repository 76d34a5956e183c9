package models

import (
	"time"
)

// ParticipantRole expresses the role a user holds within a workflow.
type ParticipantRole string

const (
	ParticipantRoleInitiator ParticipantRole = "initiator"
	ParticipantRoleMember    ParticipantRole = "member"
	ParticipantRoleObserver  ParticipantRole = "observer"
)

// Participant captures membership of a user in a workflow. Membership is
// independent of message history: a participant may exist with zero
// messages sent.
type Participant struct {
	WorkflowID string          `json:"workflow_id"`
	UserID     string          `json:"user_id"`
	Role       ParticipantRole `json:"role"`
	JoinedAt   time.Time       `json:"joined_at"`
}
