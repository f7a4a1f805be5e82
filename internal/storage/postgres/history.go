package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/davidbz/pixelcredit/internal/domain"
)

const costColumns = `id, service_id, cost_usd, valid_from, valid_to, source, notes, created_at`

const coefficientColumns = `id, coefficient, valid_from, valid_to, name, description, created_at`

const coefficientLockKey = "pricing_coefficients"

// RecordCost closes the open record for serviceID and inserts the new one in one transaction.
func (s *Store) RecordCost(
	ctx context.Context,
	serviceID domain.ServiceID,
	costUSD float64,
	source domain.CostSource,
	notes string,
) (domain.CostRecord, error) {
	if err := domain.ValidateCost(serviceID, costUSD, source); err != nil {
		return domain.CostRecord{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.CostRecord{}, fmt.Errorf("pricing postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockSeries(ctx, tx, "service_costs:"+string(serviceID)); err != nil {
		return domain.CostRecord{}, err
	}

	prev, err := openValidFrom(ctx, tx,
		`SELECT valid_from FROM service_costs WHERE service_id = $1 AND valid_to IS NULL`, string(serviceID))
	if err != nil {
		return domain.CostRecord{}, err
	}

	now := domain.NextValidFrom(s.now(), prev)
	if _, err := tx.Exec(ctx,
		`UPDATE service_costs SET valid_to = $1 WHERE service_id = $2 AND valid_to IS NULL`,
		now, string(serviceID)); err != nil {
		return domain.CostRecord{}, fmt.Errorf("pricing postgres: close current cost: %w", err)
	}

	record := domain.CostRecord{
		ID:        uuid.NewString(),
		ServiceID: serviceID,
		CostUSD:   costUSD,
		ValidFrom: now,
		Source:    source,
		Notes:     notes,
		CreatedAt: now,
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO service_costs (`+costColumns+`) VALUES ($1, $2, $3, $4, NULL, $5, $6, $7)`,
		record.ID, string(serviceID), costUSD, now, string(source), notes, now); err != nil {
		return domain.CostRecord{}, fmt.Errorf("pricing postgres: insert cost: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CostRecord{}, fmt.Errorf("pricing postgres: commit cost: %w", err)
	}
	return record, nil
}

// CurrentCost returns the open record for serviceID.
func (s *Store) CurrentCost(ctx context.Context, serviceID domain.ServiceID) (domain.CostRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+costColumns+` FROM service_costs WHERE service_id = $1 AND valid_to IS NULL`, string(serviceID))
	record, err := scanCost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CostRecord{}, fmt.Errorf("current cost for %s: %w", serviceID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.CostRecord{}, fmt.Errorf("pricing postgres: query current cost: %w", err)
	}
	return record, nil
}

// CurrentCosts returns every open record ordered by service id.
func (s *Store) CurrentCosts(ctx context.Context) ([]domain.CostRecord, error) {
	return s.queryCosts(ctx,
		`SELECT `+costColumns+` FROM service_costs WHERE valid_to IS NULL ORDER BY service_id`)
}

// CostHistory returns every record for serviceID, oldest first.
func (s *Store) CostHistory(ctx context.Context, serviceID domain.ServiceID) ([]domain.CostRecord, error) {
	return s.queryCosts(ctx,
		`SELECT `+costColumns+` FROM service_costs WHERE service_id = $1 ORDER BY valid_from`, string(serviceID))
}

func (s *Store) queryCosts(ctx context.Context, query string, args ...any) ([]domain.CostRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pricing postgres: query costs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CostRecord, 0)
	for rows.Next() {
		record, err := scanCost(rows)
		if err != nil {
			return nil, fmt.Errorf("pricing postgres: scan cost: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pricing postgres: iterate costs: %w", err)
	}
	return out, nil
}

// RecordCoefficient closes the open coefficient and inserts the new one in one transaction.
func (s *Store) RecordCoefficient(
	ctx context.Context,
	value float64,
	name, description string,
) (domain.PricingCoefficient, error) {
	if err := domain.ValidateCoefficient(value); err != nil {
		return domain.PricingCoefficient{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.PricingCoefficient{}, fmt.Errorf("pricing postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockSeries(ctx, tx, coefficientLockKey); err != nil {
		return domain.PricingCoefficient{}, err
	}

	prev, err := openValidFrom(ctx, tx, `SELECT valid_from FROM pricing_coefficients WHERE valid_to IS NULL`)
	if err != nil {
		return domain.PricingCoefficient{}, err
	}

	now := domain.NextValidFrom(s.now(), prev)
	if _, err := tx.Exec(ctx,
		`UPDATE pricing_coefficients SET valid_to = $1 WHERE valid_to IS NULL`, now); err != nil {
		return domain.PricingCoefficient{}, fmt.Errorf("pricing postgres: close current coefficient: %w", err)
	}

	c := domain.PricingCoefficient{
		ID:          uuid.NewString(),
		Coefficient: value,
		ValidFrom:   now,
		Name:        name,
		Description: description,
		CreatedAt:   now,
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO pricing_coefficients (`+coefficientColumns+`) VALUES ($1, $2, $3, NULL, $4, $5, $6)`,
		c.ID, value, now, name, description, now); err != nil {
		return domain.PricingCoefficient{}, fmt.Errorf("pricing postgres: insert coefficient: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.PricingCoefficient{}, fmt.Errorf("pricing postgres: commit coefficient: %w", err)
	}
	return c, nil
}

// CurrentCoefficient returns the open coefficient.
func (s *Store) CurrentCoefficient(ctx context.Context) (domain.PricingCoefficient, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+coefficientColumns+` FROM pricing_coefficients WHERE valid_to IS NULL`)
	c, err := scanCoefficient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PricingCoefficient{}, fmt.Errorf("current coefficient: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.PricingCoefficient{}, fmt.Errorf("pricing postgres: query current coefficient: %w", err)
	}
	return c, nil
}

// CoefficientHistory returns every coefficient, oldest first.
func (s *Store) CoefficientHistory(ctx context.Context) ([]domain.PricingCoefficient, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+coefficientColumns+` FROM pricing_coefficients ORDER BY valid_from`)
	if err != nil {
		return nil, fmt.Errorf("pricing postgres: query coefficients: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PricingCoefficient, 0)
	for rows.Next() {
		c, err := scanCoefficient(rows)
		if err != nil {
			return nil, fmt.Errorf("pricing postgres: scan coefficient: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pricing postgres: iterate coefficients: %w", err)
	}
	return out, nil
}

// LatestChange returns the newest valid_from across both history tables.
func (s *Store) LatestChange(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT GREATEST(
			(SELECT max(valid_from) FROM service_costs),
			(SELECT max(valid_from) FROM pricing_coefficients)
		)
	`).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("pricing postgres: query latest change: %w", err)
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return latest.UTC(), nil
}

// lockSeries serializes writers of one history series until the transaction ends.
func lockSeries(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("pricing postgres: lock %s: %w", key, err)
	}
	return nil
}

func openValidFrom(ctx context.Context, tx pgx.Tx, query string, args ...any) (*time.Time, error) {
	var v time.Time
	err := tx.QueryRow(ctx, query, args...).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pricing postgres: query open record: %w", err)
	}
	v = v.UTC()
	return &v, nil
}

func scanCost(row pgx.Row) (domain.CostRecord, error) {
	var (
		r                 domain.CostRecord
		serviceID, source string
	)
	if err := row.Scan(&r.ID, &serviceID, &r.CostUSD, &r.ValidFrom, &r.ValidTo, &source, &r.Notes, &r.CreatedAt); err != nil {
		return domain.CostRecord{}, err
	}
	r.ServiceID = domain.ServiceID(serviceID)
	r.Source = domain.CostSource(source)
	r.ValidFrom = r.ValidFrom.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	if r.ValidTo != nil {
		t := r.ValidTo.UTC()
		r.ValidTo = &t
	}
	return r, nil
}

func scanCoefficient(row pgx.Row) (domain.PricingCoefficient, error) {
	var c domain.PricingCoefficient
	if err := row.Scan(&c.ID, &c.Coefficient, &c.ValidFrom, &c.ValidTo, &c.Name, &c.Description, &c.CreatedAt); err != nil {
		return domain.PricingCoefficient{}, err
	}
	c.ValidFrom = c.ValidFrom.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	if c.ValidTo != nil {
		t := c.ValidTo.UTC()
		c.ValidTo = &t
	}
	return c, nil
}
