// Package postgres persists pricing history and the credit ledger in PostgreSQL.
//
// The Store accepts an externally-owned *pgxpool.Pool; Connect is a helper that builds one
// from a DSN. History writes take a transaction-scoped advisory lock per series so
// concurrent writers queue instead of failing on the partial unique index.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidbz/pixelcredit/internal/domain"
)

var (
	_ domain.HistoryStore = (*Store)(nil)
	_ domain.LedgerStore  = (*Store)(nil)
)

// Store implements domain.HistoryStore and domain.LedgerStore on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New creates a Store using an existing pool. The caller owns the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Connect opens a pool for dsn, capped at maxConns when positive.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pricing postgres: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pricing postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pricing postgres: ping: %w", err)
	}
	return pool, nil
}

// SetClock replaces the store clock.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Init creates all tables and indexes. Safe to call multiple times.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS service_costs (
			id TEXT PRIMARY KEY,
			service_id TEXT NOT NULL,
			cost_usd DOUBLE PRECISION NOT NULL CHECK (cost_usd >= 0),
			valid_from TIMESTAMPTZ NOT NULL,
			valid_to TIMESTAMPTZ,
			source TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			CHECK (valid_to IS NULL OR valid_to >= valid_from)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_service_costs_current ON service_costs (service_id) WHERE valid_to IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_service_costs_history ON service_costs (service_id, valid_from)`,

		`CREATE TABLE IF NOT EXISTS pricing_coefficients (
			id TEXT PRIMARY KEY,
			coefficient DOUBLE PRECISION NOT NULL CHECK (coefficient > 0),
			valid_from TIMESTAMPTZ NOT NULL,
			valid_to TIMESTAMPTZ,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			CHECK (valid_to IS NULL OR valid_to >= valid_from)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_pricing_coefficients_current ON pricing_coefficients ((true)) WHERE valid_to IS NULL`,

		`CREATE TABLE IF NOT EXISTS user_credits (
			user_id TEXT PRIMARY KEY,
			balance BIGINT NOT NULL CHECK (balance >= 0),
			updated_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS credit_reservations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			owner_kind TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			service_id TEXT NOT NULL,
			images INTEGER NOT NULL CHECK (images > 0),
			credits_per_image BIGINT NOT NULL,
			reserved_credits BIGINT NOT NULL,
			fallback BOOLEAN NOT NULL DEFAULT false,
			status TEXT NOT NULL,
			refunded_credits BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credit_reservations_owner ON credit_reservations (owner_kind, owner_id)`,

		`CREATE TABLE IF NOT EXISTS reservation_images (
			reservation_id TEXT NOT NULL REFERENCES credit_reservations (id),
			image_index INTEGER NOT NULL,
			status TEXT NOT NULL,
			estimated_credits BIGINT NOT NULL,
			actual_credits BIGINT,
			credits_spent BIGINT NOT NULL,
			variance_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
			discrepancy BOOLEAN NOT NULL DEFAULT false,
			PRIMARY KEY (reservation_id, image_index)
		)`,

		`CREATE TABLE IF NOT EXISTS credit_transactions (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			reservation_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credit_transactions_user ON credit_transactions (user_id, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pricing postgres: init schema: %w", err)
		}
	}
	return nil
}

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
