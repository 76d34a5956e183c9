package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/collabflow/collabflow/pkg/models"
)

// CreateTenant inserts a tenant, assigning an ID when missing.
func (s *PostgresStore) CreateTenant(ctx context.Context, t *models.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO tenants (id, name, domain) VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Domain).Scan(&t.CreatedAt, &t.UpdatedAt)
	return err
}

// GetTenantByDomain retrieves a tenant by its email domain.
func (s *PostgresStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT id, name, domain, created_at, updated_at FROM tenants WHERE domain = $1`, domain).
		Scan(&t.ID, &t.Name, &t.Domain, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// EnsureUser returns the user with the given email, provisioning it under
// the tenant when missing.
func (s *PostgresStore) EnsureUser(ctx context.Context, tenantID, email, name string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, email, name, created_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.CreatedAt)
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	u = models.User{ID: uuid.New().String(), TenantID: tenantID, Email: email, Name: name}
	err = s.db.QueryRow(ctx,
		`INSERT INTO users (id, tenant_id, email, name) VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		u.ID, u.TenantID, u.Email, u.Name).Scan(&u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
