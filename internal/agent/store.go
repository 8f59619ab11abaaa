package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crm360hq/crm360/internal/db"
)

var ErrNotFound = errors.New("agent not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const agentColumns = `id, tenant_id, email, display_name, password_hash, role, is_active, created_at`

func (s *Store) GetByEmail(ctx context.Context, email string) (Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE email = $1 AND is_active`, email)
	return scanAgent(row)
}

func (s *Store) Get(ctx context.Context, tenantID, agentID string) (Agent, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return Agent{}, fmt.Errorf("parse tenant id: %w", err)
	}
	aid, err := db.ParseUUID(agentID)
	if err != nil {
		return Agent{}, fmt.Errorf("parse agent id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE tenant_id = $1 AND id = $2`, tid, aid)
	return scanAgent(row)
}

// EnsureTenant creates the tenant slug if missing and returns its id.
func (s *Store) EnsureTenant(ctx context.Context, slug string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (slug, name) VALUES ($1, $1)
		 ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		 RETURNING id`, slug).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("ensure tenant: %w", err)
	}
	return id, nil
}

// Upsert creates the agent or refreshes its password hash and role.
func (s *Store) Upsert(ctx context.Context, a Agent) (Agent, error) {
	tid, err := db.ParseUUID(a.TenantID)
	if err != nil {
		return Agent{}, fmt.Errorf("parse tenant id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO agents (tenant_id, email, display_name, password_hash, role)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id, email) DO UPDATE
		   SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role
		 RETURNING `+agentColumns,
		tid, a.Email, a.DisplayName, a.PasswordHash, a.Role)
	return scanAgent(row)
}

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.TenantID, &a.Email, &a.DisplayName, &a.PasswordHash,
		&a.Role, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, fmt.Errorf("scan agent: %w", err)
	}
	return a, nil
}
