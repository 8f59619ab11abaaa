package message

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

var ErrNotFound = errors.New("message not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const messageColumns = `id, tenant_id, conversation_id, direction, content_type, text_content,
	external_id, status, failure_reason, sent_at, delivered_at, read_at, failed_at,
	provider_timestamp, created_at`

func (s *Store) InsertInbound(ctx context.Context, params IngestParams) (Message, error) {
	tid, err := db.ParseUUID(params.TenantID)
	if err != nil {
		return Message{}, fmt.Errorf("parse tenant id: %w", err)
	}
	cid, err := db.ParseUUID(params.ConversationID)
	if err != nil {
		return Message{}, fmt.Errorf("parse conversation id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (tenant_id, conversation_id, direction, content_type, text_content,
		                       external_id, status, provider_timestamp)
		 VALUES ($1, $2, 'INBOUND', $3, $4, $5, 'DELIVERED', $6)
		 RETURNING `+messageColumns,
		tid, cid, params.ContentType, params.Text, params.ExternalID, params.ProviderTime)
	return scanMessage(row)
}

// FindOutboundByExternalID looks up a delivery-tracked outbound message.
func (s *Store) FindOutboundByExternalID(ctx context.Context, tenantID, externalID string) (Message, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return Message{}, fmt.Errorf("parse tenant id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE tenant_id = $1 AND external_id = $2 AND direction = 'OUTBOUND'`,
		tid, externalID)
	return scanMessage(row)
}

// ApplyStatus conditionally moves a message to the new status. The WHERE
// clause restricts the update to statuses strictly below the target, so
// duplicate and out-of-order callbacks become no-ops at the store level.
// A non-empty reason never gets overwritten by a blank one.
func (s *Store) ApplyStatus(ctx context.Context, messageID string, status channel.MessageStatus, reason string) (bool, error) {
	id, err := db.ParseUUID(messageID)
	if err != nil {
		return false, fmt.Errorf("parse message id: %w", err)
	}
	predecessors := channel.PredecessorsOf(status)
	from := make([]string, len(predecessors))
	for i, p := range predecessors {
		from[i] = string(p)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages
		 SET status = $2,
		     failure_reason = CASE WHEN $3 <> '' THEN $3 ELSE failure_reason END,
		     sent_at      = CASE WHEN $2 = 'SENT'      THEN now() ELSE sent_at END,
		     delivered_at = CASE WHEN $2 = 'DELIVERED' THEN now() ELSE delivered_at END,
		     read_at      = CASE WHEN $2 = 'READ'      THEN now() ELSE read_at END,
		     failed_at    = CASE WHEN $2 = 'FAILED'    THEN now() ELSE failed_at END
		 WHERE id = $1 AND status = ANY($4)`,
		id, string(status), reason, from)
	if err != nil {
		return false, fmt.Errorf("apply message status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByConversation returns a conversation's thread in arrival order.
func (s *Store) ListByConversation(ctx context.Context, tenantID, conversationID string, limit int) ([]Message, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id: %w", err)
	}
	cid, err := db.ParseUUID(conversationID)
	if err != nil {
		return nil, fmt.Errorf("parse conversation id: %w", err)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE tenant_id = $1 AND conversation_id = $2
		 ORDER BY created_at ASC LIMIT $3`,
		tid, cid, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, msg)
	}
	return items, rows.Err()
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		m            Message
		direction    string
		status       string
		sentAt       pgtype.Timestamptz
		deliveredAt  pgtype.Timestamptz
		readAt       pgtype.Timestamptz
		failedAt     pgtype.Timestamptz
		providerTime pgtype.Timestamptz
	)
	err := row.Scan(&m.ID, &m.TenantID, &m.ConversationID, &direction, &m.ContentType, &m.Text,
		&m.ExternalID, &status, &m.FailureReason, &sentAt, &deliveredAt, &readAt, &failedAt,
		&providerTime, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("scan message: %w", err)
	}
	m.Direction = Direction(direction)
	m.Status = channel.MessageStatus(status)
	if sentAt.Valid {
		m.SentAt = sentAt.Time
	}
	if deliveredAt.Valid {
		m.DeliveredAt = deliveredAt.Time
	}
	if readAt.Valid {
		m.ReadAt = readAt.Time
	}
	if failedAt.Valid {
		m.FailedAt = failedAt.Time
	}
	if providerTime.Valid {
		m.ProviderTime = providerTime.Time
	}
	return m, nil
}
