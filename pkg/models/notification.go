package models

import (
	"time"
)

// Notification is one "unseen workflow activity" entry for a user. The set
// of notifications per user is owned by that user's notification actor and
// survives the source workflow's deletion until explicitly cleared.
type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	WorkflowID string    `json:"workflow_id"`
	MessageID  string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	Excerpt    string    `json:"excerpt"`
	CreatedAt  time.Time `json:"created_at"`
}
