package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/collabflow/collabflow/pkg/models"
)

// AppendEvent inserts a single audit event outside any workflow
// transaction. Lifecycle transitions append their events atomically via
// the workflow store instead.
func (s *PostgresStore) AppendEvent(ctx context.Context, event *models.HistoryEvent) error {
	_, err := s.db.Exec(ctx, insertHistorySQL,
		event.ID, event.WorkflowID, event.Type, event.ActorID,
		event.Snapshot.Title, event.Snapshot.TenantID, event.Snapshot.InitiatorID, event.OccurredAt)
	return err
}

// QueryEvents returns audit events matching the filter, oldest first.
func (s *PostgresStore) QueryEvents(ctx context.Context, filter HistoryFilter) ([]*models.HistoryEvent, error) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.TenantID != "" {
		add("tenant_id = $%d", filter.TenantID)
	}
	if filter.WorkflowID != "" {
		add("workflow_id = $%d", filter.WorkflowID)
	}
	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}
	if filter.InitiatorID != "" {
		add("initiator_id = $%d", filter.InitiatorID)
	}
	if !filter.From.IsZero() {
		add("occurred_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("occurred_at <= $%d", filter.To)
	}

	query := `SELECT id, workflow_id, event_type, actor_id, title, tenant_id, initiator_id, occurred_at
		FROM workflow_history`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*models.HistoryEvent{}
	for rows.Next() {
		var ev models.HistoryEvent
		err := rows.Scan(&ev.ID, &ev.WorkflowID, &ev.Type, &ev.ActorID,
			&ev.Snapshot.Title, &ev.Snapshot.TenantID, &ev.Snapshot.InitiatorID, &ev.OccurredAt)
		if err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}
