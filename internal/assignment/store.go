package assignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crm360hq/crm360/internal/channel"
	"github.com/crm360hq/crm360/internal/db"
)

var ErrRuleNotFound = errors.New("assignment rule not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const ruleColumns = `id, tenant_id, name, priority, channel_type, keywords, business_hours_only,
	priority_tier, assign_to_type, assign_to_id, assign_to_team_id, candidate_ids, is_active, created_at`

// ListActive returns the tenant's active rules in evaluation order.
func (s *Store) ListActive(ctx context.Context, tenantID string) ([]Rule, error) {
	return s.list(ctx, tenantID, true)
}

// List returns all of a tenant's rules in evaluation order.
func (s *Store) List(ctx context.Context, tenantID string) ([]Rule, error) {
	return s.list(ctx, tenantID, false)
}

func (s *Store) list(ctx context.Context, tenantID string, activeOnly bool) ([]Rule, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id: %w", err)
	}
	query := `SELECT ` + ruleColumns + ` FROM auto_assignment_rules WHERE tenant_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY priority DESC, created_at ASC`

	rows, err := s.pool.Query(ctx, query, tid)
	if err != nil {
		return nil, fmt.Errorf("list assignment rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (s *Store) Get(ctx context.Context, tenantID, ruleID string) (Rule, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return Rule{}, fmt.Errorf("parse tenant id: %w", err)
	}
	rid, err := db.ParseUUID(ruleID)
	if err != nil {
		return Rule{}, fmt.Errorf("parse rule id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM auto_assignment_rules WHERE tenant_id = $1 AND id = $2`,
		tid, rid)
	return scanRule(row)
}

func (s *Store) Create(ctx context.Context, rule Rule) (Rule, error) {
	tid, err := db.ParseUUID(rule.TenantID)
	if err != nil {
		return Rule{}, fmt.Errorf("parse tenant id: %w", err)
	}
	assignTo, assignTeam, candidates, err := ruleTargets(rule)
	if err != nil {
		return Rule{}, err
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO auto_assignment_rules (tenant_id, name, priority, channel_type, keywords,
		        business_hours_only, priority_tier, assign_to_type, assign_to_id,
		        assign_to_team_id, candidate_ids, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+ruleColumns,
		tid, rule.Name, rule.Priority, string(rule.ChannelType), rule.Keywords,
		rule.BusinessHoursOnly, rule.PriorityTier, string(rule.AssignToType), assignTo,
		assignTeam, candidates, rule.IsActive)
	return scanRule(row)
}

func (s *Store) Update(ctx context.Context, rule Rule) (Rule, error) {
	tid, err := db.ParseUUID(rule.TenantID)
	if err != nil {
		return Rule{}, fmt.Errorf("parse tenant id: %w", err)
	}
	rid, err := db.ParseUUID(rule.ID)
	if err != nil {
		return Rule{}, fmt.Errorf("parse rule id: %w", err)
	}
	assignTo, assignTeam, candidates, err := ruleTargets(rule)
	if err != nil {
		return Rule{}, err
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE auto_assignment_rules
		 SET name = $3, priority = $4, channel_type = $5, keywords = $6, business_hours_only = $7,
		     priority_tier = $8, assign_to_type = $9, assign_to_id = $10, assign_to_team_id = $11,
		     candidate_ids = $12, is_active = $13
		 WHERE tenant_id = $1 AND id = $2
		 RETURNING `+ruleColumns,
		tid, rid, rule.Name, rule.Priority, string(rule.ChannelType), rule.Keywords,
		rule.BusinessHoursOnly, rule.PriorityTier, string(rule.AssignToType), assignTo,
		assignTeam, candidates, rule.IsActive)
	return scanRule(row)
}

func (s *Store) Delete(ctx context.Context, tenantID, ruleID string) error {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return fmt.Errorf("parse tenant id: %w", err)
	}
	rid, err := db.ParseUUID(ruleID)
	if err != nil {
		return fmt.Errorf("parse rule id: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM auto_assignment_rules WHERE tenant_id = $1 AND id = $2`, tid, rid)
	if err != nil {
		return fmt.Errorf("delete assignment rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// NextRoundRobin atomically advances the rule's rotation counter and returns
// the new value. Concurrent callers each get a distinct counter, which keeps
// the rotation fair without an application-level lock.
func (s *Store) NextRoundRobin(ctx context.Context, ruleID string) (int64, error) {
	rid, err := db.ParseUUID(ruleID)
	if err != nil {
		return 0, fmt.Errorf("parse rule id: %w", err)
	}
	var counter int64
	err = s.pool.QueryRow(ctx,
		`UPDATE auto_assignment_rules SET rr_counter = rr_counter + 1 WHERE id = $1
		 RETURNING rr_counter`, rid).Scan(&counter)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrRuleNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("advance round robin counter: %w", err)
	}
	return counter, nil
}

func ruleTargets(rule Rule) (assignTo, assignTeam pgtype.UUID, candidates []pgtype.UUID, err error) {
	if rule.AssignToID != "" {
		assignTo, err = db.ParseUUID(rule.AssignToID)
		if err != nil {
			return assignTo, assignTeam, nil, fmt.Errorf("parse assign-to id: %w", err)
		}
	}
	if rule.AssignToTeamID != "" {
		assignTeam, err = db.ParseUUID(rule.AssignToTeamID)
		if err != nil {
			return assignTo, assignTeam, nil, fmt.Errorf("parse assign-to team id: %w", err)
		}
	}
	candidates = make([]pgtype.UUID, 0, len(rule.CandidateIDs))
	for _, raw := range rule.CandidateIDs {
		id, err := db.ParseUUID(raw)
		if err != nil {
			return assignTo, assignTeam, nil, fmt.Errorf("parse candidate id: %w", err)
		}
		candidates = append(candidates, id)
	}
	return assignTo, assignTeam, candidates, nil
}

func scanRule(row pgx.Row) (Rule, error) {
	var (
		r            Rule
		channelType  string
		assignToType string
		assignTo     pgtype.UUID
		assignTeam   pgtype.UUID
		candidates   []pgtype.UUID
	)
	err := row.Scan(&r.ID, &r.TenantID, &r.Name, &r.Priority, &channelType, &r.Keywords,
		&r.BusinessHoursOnly, &r.PriorityTier, &assignToType, &assignTo, &assignTeam,
		&candidates, &r.IsActive, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, ErrRuleNotFound
	}
	if err != nil {
		return Rule{}, fmt.Errorf("scan assignment rule: %w", err)
	}
	r.ChannelType = channel.ChannelType(channelType)
	r.AssignToType = AssignToType(assignToType)
	r.AssignToID = db.UUIDToString(assignTo)
	r.AssignToTeamID = db.UUIDToString(assignTeam)
	r.CandidateIDs = make([]string, 0, len(candidates))
	for _, c := range candidates {
		r.CandidateIDs = append(r.CandidateIDs, db.UUIDToString(c))
	}
	return r, nil
}
