package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/collabflow/collabflow/pkg/models"
)

const insertHistorySQL = `INSERT INTO workflow_history
	(id, workflow_id, event_type, actor_id, title, tenant_id, initiator_id, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func insertHistoryTx(ctx context.Context, tx pgx.Tx, ev *models.HistoryEvent) error {
	_, err := tx.Exec(ctx, insertHistorySQL,
		ev.ID, ev.WorkflowID, ev.Type, ev.ActorID,
		ev.Snapshot.Title, ev.Snapshot.TenantID, ev.Snapshot.InitiatorID, ev.OccurredAt)
	return err
}

// CreateWorkflow inserts the workflow, its initiator participant row and
// the created history event in one transaction.
func (s *PostgresStore) CreateWorkflow(ctx context.Context, wf *models.Workflow, event *models.HistoryEvent) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create workflow: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO workflows (id, tenant_id, initiator_id, title, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		wf.ID, wf.TenantID, wf.InitiatorID, wf.Title, wf.Status, wf.CreatedAt, wf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO participants (workflow_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`,
		wf.ID, wf.InitiatorID, models.ParticipantRoleInitiator, wf.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert initiator participant: %w", err)
	}

	if err := insertHistoryTx(ctx, tx, event); err != nil {
		return fmt.Errorf("insert created event: %w", err)
	}

	return tx.Commit(ctx)
}

// GetWorkflow retrieves a workflow by ID.
func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	return scanWorkflow(s.db.QueryRow(ctx,
		`SELECT id, tenant_id, initiator_id, title, status,
			resolution_kind, resolution_by, resolution_at, created_at, updated_at
		 FROM workflows WHERE id = $1`, id))
}

// ListWorkflows returns all workflows for a tenant, newest first.
func (s *PostgresStore) ListWorkflows(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, initiator_id, title, status,
			resolution_kind, resolution_by, resolution_at, created_at, updated_at
		 FROM workflows WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var wf models.Workflow
	var kind, by *string
	var at *time.Time
	err := row.Scan(&wf.ID, &wf.TenantID, &wf.InitiatorID, &wf.Title, &wf.Status,
		&kind, &by, &at, &wf.CreatedAt, &wf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if kind != nil {
		res := models.Resolution{Kind: models.WorkflowStatus(*kind)}
		if by != nil {
			res.By = *by
		}
		if at != nil {
			res.At = *at
		}
		wf.Resolution = &res
	}
	return &wf, nil
}

// ApplyTransition moves the workflow to res.Kind when the current status
// permits it and appends the history event atomically.
func (s *PostgresStore) ApplyTransition(ctx context.Context, id string, res models.Resolution, event *models.HistoryEvent) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	var current models.WorkflowStatus
	err = tx.QueryRow(ctx, `SELECT status FROM workflows WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock workflow: %w", err)
	}
	if !current.CanTransitionTo(res.Kind) {
		return ErrInvalidTransition
	}

	_, err = tx.Exec(ctx,
		`UPDATE workflows SET status = $2, resolution_kind = $2, resolution_by = $3,
			resolution_at = $4, updated_at = $4 WHERE id = $1`,
		id, res.Kind, res.By, res.At)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	if err := insertHistoryTx(ctx, tx, event); err != nil {
		return fmt.Errorf("insert %s event: %w", event.Type, err)
	}

	return tx.Commit(ctx)
}

// PurgeWorkflow removes the workflow row and cascades removal of messages,
// participants and attachment references, leaving only history behind.
func (s *PostgresStore) PurgeWorkflow(ctx context.Context, id string, event *models.HistoryEvent) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin purge: %w", err)
	}
	defer tx.Rollback(ctx)

	var current models.WorkflowStatus
	err = tx.QueryRow(ctx, `SELECT status FROM workflows WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock workflow: %w", err)
	}
	if current != models.WorkflowStatusDeleted {
		return ErrInvalidTransition
	}

	// Attachment references live inside message rows, so deleting the
	// messages removes them as well.
	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE workflow_id = $1`, id); err != nil {
		return fmt.Errorf("purge messages: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM participants WHERE workflow_id = $1`, id); err != nil {
		return fmt.Errorf("purge participants: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id); err != nil {
		return fmt.Errorf("purge workflow: %w", err)
	}

	if err := insertHistoryTx(ctx, tx, event); err != nil {
		return fmt.Errorf("insert purged event: %w", err)
	}

	return tx.Commit(ctx)
}

// AddParticipant inserts a participant row.
func (s *PostgresStore) AddParticipant(ctx context.Context, p *models.Participant) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO participants (workflow_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (workflow_id, user_id) DO NOTHING`,
		p.WorkflowID, p.UserID, p.Role, p.JoinedAt)
	return err
}

// RemoveParticipant deletes a participant row.
func (s *PostgresStore) RemoveParticipant(ctx context.Context, workflowID, userID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM participants WHERE workflow_id = $1 AND user_id = $2`, workflowID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetParticipant retrieves one participant row.
func (s *PostgresStore) GetParticipant(ctx context.Context, workflowID, userID string) (*models.Participant, error) {
	var p models.Participant
	err := s.db.QueryRow(ctx,
		`SELECT workflow_id, user_id, role, joined_at FROM participants
		 WHERE workflow_id = $1 AND user_id = $2`, workflowID, userID).
		Scan(&p.WorkflowID, &p.UserID, &p.Role, &p.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListParticipants returns a workflow's participants in join order.
func (s *PostgresStore) ListParticipants(ctx context.Context, workflowID string) ([]*models.Participant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT workflow_id, user_id, role, joined_at FROM participants
		 WHERE workflow_id = $1 ORDER BY joined_at`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.WorkflowID, &p.UserID, &p.Role, &p.JoinedAt); err != nil {
			return nil, err
		}
		participants = append(participants, &p)
	}
	return participants, rows.Err()
}
