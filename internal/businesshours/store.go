package businesshours

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

func (s *Store) ListWindows(ctx context.Context, tenantID string) ([]Window, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT timezone, weekday, opens_at::text, closes_at::text FROM business_hours
		 WHERE tenant_id = $1 ORDER BY weekday, opens_at`,
		tid)
	if err != nil {
		return nil, fmt.Errorf("list business hours: %w", err)
	}
	defer rows.Close()

	var windows []Window
	for rows.Next() {
		var (
			w       Window
			weekday int16
		)
		if err := rows.Scan(&w.Timezone, &weekday, &w.OpensAt, &w.ClosesAt); err != nil {
			return nil, fmt.Errorf("scan business hours: %w", err)
		}
		w.Weekday = time.Weekday(weekday)
		windows = append(windows, w)
	}
	return windows, rows.Err()
}
