// Package presence tracks agent online state for assignment routing.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Record is one agent's presence row.
type Record struct {
	AgentID    string
	TenantID   string
	IsOnline   bool
	LastSeenAt time.Time
}

// PresenceStore is the persistence surface for presence state.
type PresenceStore interface {
	Upsert(ctx context.Context, tenantID, agentID string, isOnline bool) error
	Heartbeat(ctx context.Context, agentID string) error
	ListOnline(ctx context.Context, tenantID string, seenAfter time.Time) ([]Record, error)
	MarkStaleOffline(ctx context.Context, seenBefore time.Time) (int64, error)
}

// Service applies the staleness rule on top of raw presence rows: an agent
// without a recent heartbeat is treated as offline even if the flag was never
// flipped, so routing cannot target abandoned sessions.
type Service struct {
	log       *slog.Logger
	store     PresenceStore
	staleness time.Duration
	now       func() time.Time
}

func NewService(log *slog.Logger, store PresenceStore, staleness time.Duration) *Service {
	if staleness <= 0 {
		staleness = 2 * time.Minute
	}
	return &Service{
		log:       log.With(slog.String("service", "presence")),
		store:     store,
		staleness: staleness,
		now:       time.Now,
	}
}

// SetOnline flips an agent's online flag and refreshes last-seen.
func (s *Service) SetOnline(ctx context.Context, tenantID, agentID string, online bool) error {
	if err := s.store.Upsert(ctx, tenantID, agentID, online); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	s.log.Info("presence updated",
		slog.String("agent_id", agentID),
		slog.Bool("online", online))
	return nil
}

// Heartbeat refreshes an agent's last-seen timestamp.
func (s *Service) Heartbeat(ctx context.Context, agentID string) error {
	if err := s.store.Heartbeat(ctx, agentID); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// ListOnline returns ids of agents online with a heartbeat inside the
// staleness window.
func (s *Service) ListOnline(ctx context.Context, tenantID string) ([]string, error) {
	cutoff := s.now().Add(-s.staleness)
	records, err := s.store.ListOnline(ctx, tenantID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list online agents: %w", err)
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.AgentID)
	}
	return ids, nil
}

// SweepStale flips long-silent agents offline. Run periodically; the read
// path already filters, so this only keeps the stored flags honest.
func (s *Service) SweepStale(ctx context.Context) {
	cutoff := s.now().Add(-s.staleness)
	n, err := s.store.MarkStaleOffline(ctx, cutoff)
	if err != nil {
		s.log.Warn("presence sweep failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.log.Info("stale agents marked offline", slog.Int64("count", n))
	}
}
