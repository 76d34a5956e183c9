package repository

import (
	"context"
	"fmt"

	"github.com/collabflow/collabflow/pkg/models"
)

// AppendNotification inserts the notification and evicts the oldest rows
// until the user's set is back at max entries.
func (s *PostgresStore) AppendNotification(ctx context.Context, n *models.Notification, max int) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append notification: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO notifications (id, user_id, workflow_id, message_id, sender_id, excerpt, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.WorkflowID, n.MessageID, n.SenderID, n.Excerpt, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM notifications WHERE user_id = $1 AND id IN (
			SELECT id FROM notifications WHERE user_id = $1 ORDER BY arrival DESC OFFSET $2
		 )`, n.UserID, max)
	if err != nil {
		return fmt.Errorf("evict notifications: %w", err)
	}

	return tx.Commit(ctx)
}

// ListNotifications returns the user's pending set in arrival order.
func (s *PostgresStore) ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, workflow_id, message_id, sender_id, excerpt, created_at
		 FROM notifications WHERE user_id = $1 ORDER BY arrival`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []*models.Notification{}
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(&n.ID, &n.UserID, &n.WorkflowID, &n.MessageID, &n.SenderID, &n.Excerpt, &n.CreatedAt)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// RemoveNotification deletes a single notification.
func (s *PostgresStore) RemoveNotification(ctx context.Context, userID, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1 AND id = $2`, userID, id)
	return err
}

// ClearNotifications empties the user's set.
func (s *PostgresStore) ClearNotifications(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	return err
}
