package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/collabflow/collabflow/pkg/models"
)

// AppendMessage inserts the message, assigning the next per-workflow Seq.
// The workflow row is locked for the duration so the active check and the
// sequence assignment cannot race with a lifecycle transition.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append message: %w", err)
	}
	defer tx.Rollback(ctx)

	var status models.WorkflowStatus
	err = tx.QueryRow(ctx, `SELECT status FROM workflows WHERE id = $1 FOR UPDATE`, msg.WorkflowID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock workflow: %w", err)
	}
	if status != models.WorkflowStatusActive {
		return ErrWorkflowClosed
	}

	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO messages (id, workflow_id, sender_id, seq, type, content, attachments, created_at)
		 VALUES ($1, $2, $3,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE workflow_id = $2),
			$4, $5, $6, $7)
		 RETURNING seq`,
		msg.ID, msg.WorkflowID, msg.SenderID, msg.Type, msg.Content, attachments, msg.CreatedAt).
		Scan(&msg.Seq)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return tx.Commit(ctx)
}

// ListMessages returns the workflow's messages ordered by creation time,
// ties broken by Seq.
func (s *PostgresStore) ListMessages(ctx context.Context, workflowID string) ([]*models.Message, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM workflows WHERE id = $1)`, workflowID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, workflow_id, sender_id, seq, type, content, attachments, created_at
		 FROM messages WHERE workflow_id = $1 ORDER BY created_at, seq`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		var msg models.Message
		var attachments []byte
		err := rows.Scan(&msg.ID, &msg.WorkflowID, &msg.SenderID, &msg.Seq,
			&msg.Type, &msg.Content, &attachments, &msg.CreatedAt)
		if err != nil {
			return nil, err
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
				return nil, fmt.Errorf("unmarshal attachments: %w", err)
			}
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}
