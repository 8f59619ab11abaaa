package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crm360hq/crm360/internal/config"
	"github.com/crm360hq/crm360/migrations"
)

// Open connects a pgx pool using the postgres config section.
func Open(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// DSN builds a postgres connection string from config.
func DSN(cfg config.PostgresConfig) string {
	host := cfg.Host
	if host == "" {
		host = config.DefaultPGHost
	}
	port := cfg.Port
	if port == 0 {
		port = config.DefaultPGPort
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultPGSSLMode
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password), host, port, cfg.Database, sslMode)
}

// Migrate applies all pending embedded migrations.
func Migrate(cfg config.PostgresConfig) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, DSN(cfg))
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// ParseUUID converts a string id into a pgtype.UUID.
func ParseUUID(id string) (pgtype.UUID, error) {
	var value pgtype.UUID
	if err := value.Scan(strings.TrimSpace(id)); err != nil {
		return pgtype.UUID{}, fmt.Errorf("parse uuid %q: %w", id, err)
	}
	return value, nil
}

// UUIDToString renders a pgtype.UUID, returning "" for NULL.
func UUIDToString(value pgtype.UUID) string {
	if !value.Valid {
		return ""
	}
	return uuid.UUID(value.Bytes).String()
}

// TextToString unwraps a pgtype.Text, returning "" for NULL.
func TextToString(value pgtype.Text) string {
	if !value.Valid {
		return ""
	}
	return value.String
}

// ToText wraps a string into a pgtype.Text, treating blank as NULL.
func ToText(value string) pgtype.Text {
	value = strings.TrimSpace(value)
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
