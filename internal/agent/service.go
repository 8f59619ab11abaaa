package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AgentStore is the persistence surface for authentication and seeding.
type AgentStore interface {
	GetByEmail(ctx context.Context, email string) (Agent, error)
	Get(ctx context.Context, tenantID, agentID string) (Agent, error)
	EnsureTenant(ctx context.Context, slug string) (string, error)
	Upsert(ctx context.Context, a Agent) (Agent, error)
}

// ErrInvalidCredentials hides whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	log   *slog.Logger
	store AgentStore
}

func NewService(log *slog.Logger, store AgentStore) *Service {
	return &Service{
		log:   log.With(slog.String("service", "agent")),
		store: store,
	}
}

// Authenticate verifies email/password and returns the agent.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Agent, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	found, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return Agent{}, ErrInvalidCredentials
	}
	if err != nil {
		return Agent{}, fmt.Errorf("lookup agent: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password)) != nil {
		return Agent{}, ErrInvalidCredentials
	}
	return found, nil
}

// Get fetches one agent scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, agentID string) (Agent, error) {
	return s.store.Get(ctx, tenantID, agentID)
}

// SeedAdmin ensures the configured admin tenant and account exist. Run at
// startup so a fresh deployment is immediately usable.
func (s *Service) SeedAdmin(ctx context.Context, tenantSlug, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if tenantSlug == "" {
		tenantSlug = "default"
	}
	tenantID, err := s.store.EnsureTenant(ctx, tenantSlug)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	seeded, err := s.store.Upsert(ctx, Agent{
		TenantID:     tenantID,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		DisplayName:  "Admin",
		PasswordHash: string(hash),
		Role:         "admin",
	})
	if err != nil {
		return fmt.Errorf("seed admin agent: %w", err)
	}
	s.log.Info("admin agent ready",
		slog.String("agent_id", seeded.ID),
		slog.String("tenant", tenantSlug))
	return nil
}
