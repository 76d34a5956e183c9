package models

import (
	"time"
)

// MessageType classifies a workflow message.
type MessageType string

const (
	MessageTypeRequest   MessageType = "request"
	MessageTypeResponse  MessageType = "response"
	MessageTypeShareLink MessageType = "share_link"
	MessageTypeStatus    MessageType = "status"
)

// AttachmentRef is an opaque reference into the external media store. The
// engine never fetches attachment bytes; it only validates that the key
// exists and is visible to the sender's tenant at append time.
type AttachmentRef struct {
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Message is one immutable entry in a workflow's message thread. Seq is a
// per-workflow monotonic sequence assigned by the store on insert and
// breaks ordering ties between messages sharing a creation timestamp.
type Message struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	SenderID    string          `json:"sender_id"`
	Seq         int64           `json:"seq"`
	Type        MessageType     `json:"type"`
	Content     string          `json:"content"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
