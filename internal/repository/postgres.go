package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the PostgreSQL implementation of Store.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema creates the tables the service needs. workflow_history and
// notifications intentionally carry no foreign key on workflow_id: history
// must outlive a purged workflow and a user's notifications must outlive
// workflow deletion.
const Schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	domain TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL REFERENCES tenants(id),
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS workflows (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	initiator_id UUID NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	resolution_kind TEXT,
	resolution_by UUID,
	resolution_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS workflows_tenant_idx ON workflows (tenant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS participants (
	workflow_id UUID NOT NULL REFERENCES workflows(id),
	user_id UUID NOT NULL,
	role TEXT NOT NULL,
	joined_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (workflow_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id UUID PRIMARY KEY,
	workflow_id UUID NOT NULL REFERENCES workflows(id),
	sender_id UUID NOT NULL,
	seq BIGINT NOT NULL,
	type TEXT NOT NULL,
	content TEXT NOT NULL,
	attachments JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (workflow_id, seq)
);
CREATE INDEX IF NOT EXISTS messages_order_idx ON messages (workflow_id, created_at, seq);

CREATE TABLE IF NOT EXISTS workflow_history (
	id UUID PRIMARY KEY,
	workflow_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	actor_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	tenant_id UUID NOT NULL,
	initiator_id UUID NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS workflow_history_wf_idx ON workflow_history (workflow_id, occurred_at);
CREATE INDEX IF NOT EXISTS workflow_history_tenant_idx ON workflow_history (tenant_id, occurred_at);

CREATE TABLE IF NOT EXISTS notifications (
	id UUID PRIMARY KEY,
	arrival BIGSERIAL,
	user_id UUID NOT NULL,
	workflow_id UUID NOT NULL,
	message_id UUID NOT NULL,
	sender_id UUID NOT NULL,
	excerpt TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, arrival);
`

// Migrate applies the schema. Safe to call on every start.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}
