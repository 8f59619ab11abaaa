package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crm360hq/crm360/internal/channel"
	"github.com/crm360hq/crm360/internal/db"
)

var ErrNotFound = errors.New("conversation not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const conversationColumns = `id, tenant_id, contact_id, contact_identifier, channel_type,
	channel_account_id, status, assigned_to_id, assigned_to_team_id, unread_count,
	last_customer_message_at, snoozed_until, created_at, updated_at`

func (s *Store) Get(ctx context.Context, tenantID, conversationID string) (Conversation, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return Conversation{}, fmt.Errorf("parse tenant id: %w", err)
	}
	cid, err := db.ParseUUID(conversationID)
	if err != nil {
		return Conversation{}, fmt.Errorf("parse conversation id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE tenant_id = $1 AND id = $2`,
		tid, cid)
	return scanConversation(row)
}

// FindOpen returns the open or pending conversation for the sender key.
func (s *Store) FindOpen(ctx context.Context, tenantID, identifier, channelType string) (Conversation, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return Conversation{}, fmt.Errorf("parse tenant id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE tenant_id = $1 AND contact_identifier = $2 AND channel_type = $3
		   AND status IN ('OPEN', 'PENDING')`,
		tid, identifier, channelType)
	return scanConversation(row)
}

// Reserve inserts a PENDING conversation for the sender key, or returns
// ErrNotFound when a concurrent insert already holds the open slot. The
// partial unique index makes the insert the atomic arbiter.
func (s *Store) Reserve(ctx context.Context, params ResolveParams) (Conversation, error) {
	tid, err := db.ParseUUID(params.TenantID)
	if err != nil {
		return Conversation{}, fmt.Errorf("parse tenant id: %w", err)
	}
	contactID, err := db.ParseUUID(params.ContactID)
	if err != nil {
		return Conversation{}, fmt.Errorf("parse contact id: %w", err)
	}
	var accountID pgtype.UUID
	if params.ChannelAccountID != "" {
		accountID, err = db.ParseUUID(params.ChannelAccountID)
		if err != nil {
			return Conversation{}, fmt.Errorf("parse channel account id: %w", err)
		}
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (tenant_id, contact_id, contact_identifier, channel_type,
		                            channel_account_id, status, unread_count, last_customer_message_at)
		 VALUES ($1, $2, $3, $4, $5, 'PENDING', 1, $6)
		 ON CONFLICT (tenant_id, contact_identifier, channel_type)
		   WHERE status IN ('OPEN', 'PENDING') DO NOTHING
		 RETURNING `+conversationColumns,
		tid, contactID, params.Identifier, string(params.ChannelType), accountID, params.MessageAt)
	return scanConversation(row)
}

// Touch records a new customer message on an existing conversation.
func (s *Store) Touch(ctx context.Context, conversationID string, messageAt time.Time) error {
	cid, err := db.ParseUUID(conversationID)
	if err != nil {
		return fmt.Errorf("parse conversation id: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE conversations
		 SET unread_count = unread_count + 1, last_customer_message_at = $2, updated_at = now()
		 WHERE id = $1`,
		cid, messageAt)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// UpdateStatus moves the conversation lifecycle state.
func (s *Store) UpdateStatus(ctx context.Context, tenantID, conversationID string, status Status, snoozedUntil time.Time) error {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return fmt.Errorf("parse tenant id: %w", err)
	}
	cid, err := db.ParseUUID(conversationID)
	if err != nil {
		return fmt.Errorf("parse conversation id: %w", err)
	}
	var snooze any
	if !snoozedUntil.IsZero() {
		snooze = snoozedUntil
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET status = $3, snoozed_until = $4, updated_at = now()
		 WHERE tenant_id = $1 AND id = $2`,
		tid, cid, string(status), snooze)
	if err != nil {
		return fmt.Errorf("update conversation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Assign records the assignment decision. Applies only when the conversation
// is still unassigned, so duplicate triggers cannot clobber a prior decision.
func (s *Store) Assign(ctx context.Context, conversationID, userID, teamID string) (bool, error) {
	cid, err := db.ParseUUID(conversationID)
	if err != nil {
		return false, fmt.Errorf("parse conversation id: %w", err)
	}
	var user, team pgtype.UUID
	if userID != "" {
		user, err = db.ParseUUID(userID)
		if err != nil {
			return false, fmt.Errorf("parse user id: %w", err)
		}
	}
	if teamID != "" {
		team, err = db.ParseUUID(teamID)
		if err != nil {
			return false, fmt.Errorf("parse team id: %w", err)
		}
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET assigned_to_id = $2, assigned_to_team_id = $3, updated_at = now()
		 WHERE id = $1 AND assigned_to_id IS NULL AND assigned_to_team_id IS NULL`,
		cid, user, team)
	if err != nil {
		return false, fmt.Errorf("assign conversation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Reassign overwrites any existing assignment.
func (s *Store) Reassign(ctx context.Context, conversationID, userID, teamID string) error {
	cid, err := db.ParseUUID(conversationID)
	if err != nil {
		return fmt.Errorf("parse conversation id: %w", err)
	}
	var user, team pgtype.UUID
	if userID != "" {
		user, err = db.ParseUUID(userID)
		if err != nil {
			return fmt.Errorf("parse user id: %w", err)
		}
	}
	if teamID != "" {
		team, err = db.ParseUUID(teamID)
		if err != nil {
			return fmt.Errorf("parse team id: %w", err)
		}
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE conversations SET assigned_to_id = $2, assigned_to_team_id = $3, updated_at = now()
		 WHERE id = $1`,
		cid, user, team)
	if err != nil {
		return fmt.Errorf("reassign conversation: %w", err)
	}
	return nil
}

// List returns a tenant's conversations, optionally filtered by status,
// newest activity first.
func (s *Store) List(ctx context.Context, tenantID string, status Status, limit int) ([]Conversation, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id: %w", err)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE tenant_id = $1`
	args := []any{tid}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var items []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, conv)
	}
	return items, rows.Err()
}

// CountOpenByAgents returns open/pending conversation counts per assigned
// agent, for the least-busy strategy. Agents with no open threads get 0.
func (s *Store) CountOpenByAgents(ctx context.Context, tenantID string, agentIDs []string) (map[string]int, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id: %w", err)
	}
	ids := make([]pgtype.UUID, 0, len(agentIDs))
	for _, raw := range agentIDs {
		id, err := db.ParseUUID(raw)
		if err != nil {
			return nil, fmt.Errorf("parse agent id: %w", err)
		}
		ids = append(ids, id)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT assigned_to_id, COUNT(*) FROM conversations
		 WHERE tenant_id = $1 AND assigned_to_id = ANY($2) AND status IN ('OPEN', 'PENDING')
		 GROUP BY assigned_to_id`,
		tid, ids)
	if err != nil {
		return nil, fmt.Errorf("count open conversations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(agentIDs))
	for _, id := range agentIDs {
		counts[id] = 0
	}
	for rows.Next() {
		var agentID pgtype.UUID
		var n int
		if err := rows.Scan(&agentID, &n); err != nil {
			return nil, fmt.Errorf("scan open count: %w", err)
		}
		counts[db.UUIDToString(agentID)] = n
	}
	return counts, rows.Err()
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		c            Conversation
		channelType  string
		status       string
		accountID    pgtype.UUID
		assignedTo   pgtype.UUID
		assignedTeam pgtype.UUID
		lastMsgAt    pgtype.Timestamptz
		snoozedUntil pgtype.Timestamptz
	)
	err := row.Scan(&c.ID, &c.TenantID, &c.ContactID, &c.ContactIdentifier, &channelType,
		&accountID, &status, &assignedTo, &assignedTeam, &c.UnreadCount,
		&lastMsgAt, &snoozedUntil, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("scan conversation: %w", err)
	}
	c.ChannelType = channel.ChannelType(channelType)
	c.Status = Status(status)
	c.ChannelAccountID = db.UUIDToString(accountID)
	c.AssignedToID = db.UUIDToString(assignedTo)
	c.AssignedToTeamID = db.UUIDToString(assignedTeam)
	if lastMsgAt.Valid {
		c.LastCustomerMessageAt = lastMsgAt.Time
	}
	if snoozedUntil.Valid {
		c.SnoozedUntil = snoozedUntil.Time
	}
	return c, nil
}
