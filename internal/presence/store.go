package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crm360hq/crm360/internal/db"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Upsert(ctx context.Context, tenantID, agentID string, isOnline bool) error {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return fmt.Errorf("parse tenant id: %w", err)
	}
	aid, err := db.ParseUUID(agentID)
	if err != nil {
		return fmt.Errorf("parse agent id: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO agent_presence (agent_id, tenant_id, is_online, last_seen_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (agent_id) DO UPDATE SET is_online = $3, last_seen_at = now()`,
		aid, tid, isOnline)
	if err != nil {
		return fmt.Errorf("upsert presence: %w", err)
	}
	return nil
}

func (s *Store) Heartbeat(ctx context.Context, agentID string) error {
	aid, err := db.ParseUUID(agentID)
	if err != nil {
		return fmt.Errorf("parse agent id: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE agent_presence SET last_seen_at = now() WHERE agent_id = $1`, aid)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

func (s *Store) ListOnline(ctx context.Context, tenantID string, seenAfter time.Time) ([]Record, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT agent_id, tenant_id, is_online, last_seen_at FROM agent_presence
		 WHERE tenant_id = $1 AND is_online AND last_seen_at > $2
		 ORDER BY agent_id`,
		tid, seenAfter)
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.AgentID, &r.TenantID, &r.IsOnline, &r.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) MarkStaleOffline(ctx context.Context, seenBefore time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_presence SET is_online = FALSE WHERE is_online AND last_seen_at < $1`,
		seenBefore)
	if err != nil {
		return 0, fmt.Errorf("mark stale offline: %w", err)
	}
	return tag.RowsAffected(), nil
}
