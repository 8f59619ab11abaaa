package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crm360hq/crm360/internal/db"
)

// ErrAccountNotFound is returned when no channel account matches the lookup.
var ErrAccountNotFound = errors.New("channel account not found")

// Store persists channel accounts in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const accountColumns = `id, tenant_id, provider, channel_type, display_name, config, is_active`

func (s *Store) GetAccount(ctx context.Context, id string) (Account, error) {
	accountID, err := db.ParseUUID(id)
	if err != nil {
		return Account{}, fmt.Errorf("parse account id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM channel_accounts WHERE id = $1`, accountID)
	return scanAccount(row)
}

func (s *Store) ListAccounts(ctx context.Context, tenantID string) ([]Account, error) {
	tid, err := db.ParseUUID(tenantID)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM channel_accounts WHERE tenant_id = $1 ORDER BY created_at`, tid)
	if err != nil {
		return nil, fmt.Errorf("list channel accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *Store) CreateAccount(ctx context.Context, account Account) (Account, error) {
	tid, err := db.ParseUUID(account.TenantID)
	if err != nil {
		return Account{}, fmt.Errorf("parse tenant id: %w", err)
	}
	configJSON, err := json.Marshal(account.Config)
	if err != nil {
		return Account{}, fmt.Errorf("marshal account config: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO channel_accounts (tenant_id, provider, channel_type, display_name, config, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+accountColumns,
		tid, account.Provider, string(account.ChannelType), account.DisplayName, configJSON, account.IsActive)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		account     Account
		channelType string
		configJSON  []byte
	)
	err := row.Scan(&account.ID, &account.TenantID, &account.Provider, &channelType,
		&account.DisplayName, &configJSON, &account.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("scan channel account: %w", err)
	}
	account.ChannelType = ChannelType(channelType)
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &account.Config); err != nil {
			return Account{}, fmt.Errorf("unmarshal account config: %w", err)
		}
	}
	return account, nil
}
