package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crm360hq/crm360/internal/channel"
	"github.com/crm360hq/crm360/internal/db"
)

// ErrNotFound is returned when no contact matches the lookup.
var ErrNotFound = errors.New("contact not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const contactColumns = `id, tenant_id, identifier, channel_type, display_name, source,
	lifecycle_stage, consent, first_channel_account_id, first_message_at, created_at`

func (s *Store) Find(ctx context.Context, tenantID, channelType, identifier string) (Contact, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return Contact{}, fmt.Errorf("parse tenant id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE tenant_id = $1 AND channel_type = $2 AND identifier = $3`,
		tid, channelType, identifier)
	return scanContact(row)
}

// Insert creates the contact, or returns ErrNotFound when a concurrent insert
// on the same (tenant, channel, identifier) key won the race.
func (s *Store) Insert(ctx context.Context, c Contact) (Contact, error) {
	tid, err := db.ParseUUID(c.TenantID)
	if err != nil {
		return Contact{}, fmt.Errorf("parse tenant id: %w", err)
	}
	consentJSON, err := json.Marshal(c.Consent)
	if err != nil {
		return Contact{}, fmt.Errorf("marshal consent: %w", err)
	}
	var accountID pgtype.UUID
	if c.FirstChannelAccountID != "" {
		accountID, err = db.ParseUUID(c.FirstChannelAccountID)
		if err != nil {
			return Contact{}, fmt.Errorf("parse channel account id: %w", err)
		}
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO contacts (tenant_id, identifier, channel_type, display_name, source,
		                       lifecycle_stage, consent, first_channel_account_id, first_message_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (tenant_id, channel_type, identifier) DO NOTHING
		 RETURNING `+contactColumns,
		tid, c.Identifier, string(c.ChannelType), c.DisplayName, c.Source,
		c.LifecycleStage, consentJSON, accountID, timeOrNil(c.FirstMessageAt))
	inserted, err := scanContact(row)
	if errors.Is(err, ErrNotFound) {
		// Lost the insert race; caller refetches.
		return Contact{}, ErrNotFound
	}
	return inserted, err
}

func (s *Store) UpdateDisplayName(ctx context.Context, contactID, displayName string) error {
	id, err := db.ParseUUID(contactID)
	if err != nil {
		return fmt.Errorf("parse contact id: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE contacts SET display_name = $2 WHERE id = $1 AND display_name = ''`,
		id, displayName)
	if err != nil {
		return fmt.Errorf("update contact name: %w", err)
	}
	return nil
}

func (s *Store) RecordActivity(ctx context.Context, tenantID, kind, subjectID string, detail map[string]any) error {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return fmt.Errorf("parse tenant id: %w", err)
	}
	var subject pgtype.UUID
	if subjectID != "" {
		subject, err = db.ParseUUID(subjectID)
		if err != nil {
			return fmt.Errorf("parse subject id: %w", err)
		}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal activity detail: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO activities (tenant_id, kind, subject_id, detail) VALUES ($1, $2, $3, $4)`,
		tid, kind, subject, detailJSON)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

func scanContact(row pgx.Row) (Contact, error) {
	var (
		c           Contact
		channelType string
		consentJSON []byte
		accountID   pgtype.UUID
		firstMsgAt  pgtype.Timestamptz
	)
	err := row.Scan(&c.ID, &c.TenantID, &c.Identifier, &channelType, &c.DisplayName,
		&c.Source, &c.LifecycleStage, &consentJSON, &accountID, &firstMsgAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("scan contact: %w", err)
	}
	c.ChannelType = channel.ChannelType(channelType)
	if len(consentJSON) > 0 {
		if err := json.Unmarshal(consentJSON, &c.Consent); err != nil {
			return Contact{}, fmt.Errorf("unmarshal consent: %w", err)
		}
	}
	if accountID.Valid {
		c.FirstChannelAccountID = db.UUIDToString(accountID)
	}
	if firstMsgAt.Valid {
		c.FirstMessageAt = firstMsgAt.Time
	}
	return c, nil
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
