// Package sqlite persists pricing history and the credit ledger in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/davidbz/pixelcredit/internal/observability"
)

const openTimeout = 5 * time.Second

// Store implements domain.HistoryStore and domain.LedgerStore on SQLite.
// The pool is capped at one connection, so transactions are serialized by database/sql.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the schema.
// The special path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("pricing sqlite: path is required")
	}

	dsn := "file::memory:?_pragma=foreign_keys(ON)"
	location := trimmed
	if trimmed != ":memory:" {
		abs, err := filepath.Abs(trimmed)
		if err != nil {
			return nil, fmt.Errorf("pricing sqlite: resolve path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
			return nil, fmt.Errorf("pricing sqlite: create directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", abs)
		location = abs
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("pricing sqlite: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	// An in-memory database lives only as long as its connection.
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pricing sqlite: ping database: %w", err)
	}

	store := &Store{db: db, path: location, now: time.Now}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	observability.FromContext(ctx).Info("sqlite store opened", observability.String("path", location))
	return store, nil
}

// SetClock replaces the store clock.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`
		CREATE TABLE IF NOT EXISTS service_costs (
			id TEXT NOT NULL PRIMARY KEY,
			service_id TEXT NOT NULL,
			cost_usd REAL NOT NULL CHECK (cost_usd >= 0),
			valid_from INTEGER NOT NULL,
			valid_to INTEGER,
			source TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			CHECK (valid_to IS NULL OR valid_to >= valid_from)
		)
		`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_service_costs_current ON service_costs (service_id) WHERE valid_to IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_service_costs_history ON service_costs (service_id, valid_from)`,
		`
		CREATE TABLE IF NOT EXISTS pricing_coefficients (
			id TEXT NOT NULL PRIMARY KEY,
			coefficient REAL NOT NULL CHECK (coefficient > 0),
			valid_from INTEGER NOT NULL,
			valid_to INTEGER,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			CHECK (valid_to IS NULL OR valid_to >= valid_from)
		)
		`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_pricing_coefficients_current ON pricing_coefficients (coalesce(valid_to, 0)) WHERE valid_to IS NULL`,
		`
		CREATE TABLE IF NOT EXISTS user_credits (
			user_id TEXT NOT NULL PRIMARY KEY,
			balance INTEGER NOT NULL CHECK (balance >= 0),
			updated_at INTEGER NOT NULL
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS credit_reservations (
			id TEXT NOT NULL PRIMARY KEY,
			user_id TEXT NOT NULL,
			owner_kind TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			service_id TEXT NOT NULL,
			images INTEGER NOT NULL CHECK (images > 0),
			credits_per_image INTEGER NOT NULL,
			reserved_credits INTEGER NOT NULL,
			fallback INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			refunded_credits INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			closed_at INTEGER
		)
		`,
		`CREATE INDEX IF NOT EXISTS idx_credit_reservations_owner ON credit_reservations (owner_kind, owner_id)`,
		`
		CREATE TABLE IF NOT EXISTS reservation_images (
			reservation_id TEXT NOT NULL REFERENCES credit_reservations (id),
			image_index INTEGER NOT NULL,
			status TEXT NOT NULL,
			estimated_credits INTEGER NOT NULL,
			actual_credits INTEGER,
			credits_spent INTEGER NOT NULL,
			variance_pct REAL NOT NULL DEFAULT 0,
			discrepancy INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (reservation_id, image_index)
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS credit_transactions (
			id TEXT NOT NULL PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount INTEGER NOT NULL,
			balance_after INTEGER NOT NULL,
			reservation_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)
		`,
		`CREATE INDEX IF NOT EXISTS idx_credit_transactions_user ON credit_transactions (user_id, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("pricing sqlite: ensure schema: %w", err)
		}
	}
	return nil
}

// Timestamps are stored as unix microseconds.
func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func fromNullMicros(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMicros(v.Int64)
	return &t
}
