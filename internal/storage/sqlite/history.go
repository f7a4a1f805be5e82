package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davidbz/pixelcredit/internal/domain"
)

const costColumns = `id, service_id, cost_usd, valid_from, valid_to, source, notes, created_at`

const coefficientColumns = `id, coefficient, valid_from, valid_to, name, description, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CostRecord{}, fmt.Errorf("pricing sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	prev, err := openValidFrom(ctx, tx,
		`SELECT valid_from FROM service_costs WHERE service_id = ? AND valid_to IS NULL`, string(serviceID))
	if err != nil {
		return domain.CostRecord{}, err
	}

	now := domain.NextValidFrom(s.now(), prev)
	if _, err := tx.ExecContext(ctx,
		`UPDATE service_costs SET valid_to = ? WHERE service_id = ? AND valid_to IS NULL`,
		toMicros(now), string(serviceID)); err != nil {
		return domain.CostRecord{}, fmt.Errorf("pricing sqlite: close current cost: %w", err)
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
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO service_costs (`+costColumns+`)
		VALUES (?, ?, ?, ?, NULL, ?, ?, ?)
	`, record.ID, string(serviceID), costUSD, toMicros(now), string(source), notes, toMicros(now)); err != nil {
		return domain.CostRecord{}, fmt.Errorf("pricing sqlite: insert cost: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.CostRecord{}, fmt.Errorf("pricing sqlite: commit cost: %w", err)
	}
	return record, nil
}

// CurrentCost returns the open record for serviceID.
func (s *Store) CurrentCost(ctx context.Context, serviceID domain.ServiceID) (domain.CostRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+costColumns+` FROM service_costs WHERE service_id = ? AND valid_to IS NULL`, string(serviceID))
	record, err := scanCost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CostRecord{}, fmt.Errorf("current cost for %s: %w", serviceID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.CostRecord{}, fmt.Errorf("pricing sqlite: query current cost: %w", err)
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
		`SELECT `+costColumns+` FROM service_costs WHERE service_id = ? ORDER BY valid_from`, string(serviceID))
}

func (s *Store) queryCosts(ctx context.Context, query string, args ...any) ([]domain.CostRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pricing sqlite: query costs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CostRecord, 0)
	for rows.Next() {
		record, err := scanCost(rows)
		if err != nil {
			return nil, fmt.Errorf("pricing sqlite: scan cost: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pricing sqlite: iterate costs: %w", err)
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.PricingCoefficient{}, fmt.Errorf("pricing sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	prev, err := openValidFrom(ctx, tx, `SELECT valid_from FROM pricing_coefficients WHERE valid_to IS NULL`)
	if err != nil {
		return domain.PricingCoefficient{}, err
	}

	now := domain.NextValidFrom(s.now(), prev)
	if _, err := tx.ExecContext(ctx,
		`UPDATE pricing_coefficients SET valid_to = ? WHERE valid_to IS NULL`, toMicros(now)); err != nil {
		return domain.PricingCoefficient{}, fmt.Errorf("pricing sqlite: close current coefficient: %w", err)
	}

	c := domain.PricingCoefficient{
		ID:          uuid.NewString(),
		Coefficient: value,
		ValidFrom:   now,
		Name:        name,
		Description: description,
		CreatedAt:   now,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pricing_coefficients (`+coefficientColumns+`)
		VALUES (?, ?, ?, NULL, ?, ?, ?)
	`, c.ID, value, toMicros(now), name, description, toMicros(now)); err != nil {
		return domain.PricingCoefficient{}, fmt.Errorf("pricing sqlite: insert coefficient: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.PricingCoefficient{}, fmt.Errorf("pricing sqlite: commit coefficient: %w", err)
	}
	return c, nil
}

// CurrentCoefficient returns the open coefficient.
func (s *Store) CurrentCoefficient(ctx context.Context) (domain.PricingCoefficient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+coefficientColumns+` FROM pricing_coefficients WHERE valid_to IS NULL`)
	c, err := scanCoefficient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PricingCoefficient{}, fmt.Errorf("current coefficient: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.PricingCoefficient{}, fmt.Errorf("pricing sqlite: query current coefficient: %w", err)
	}
	return c, nil
}

// CoefficientHistory returns every coefficient, oldest first.
func (s *Store) CoefficientHistory(ctx context.Context) ([]domain.PricingCoefficient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+coefficientColumns+` FROM pricing_coefficients ORDER BY valid_from`)
	if err != nil {
		return nil, fmt.Errorf("pricing sqlite: query coefficients: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PricingCoefficient, 0)
	for rows.Next() {
		c, err := scanCoefficient(rows)
		if err != nil {
			return nil, fmt.Errorf("pricing sqlite: scan coefficient: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pricing sqlite: iterate coefficients: %w", err)
	}
	return out, nil
}

// LatestChange returns the newest valid_from across both history tables.
func (s *Store) LatestChange(ctx context.Context) (time.Time, error) {
	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT max(v) FROM (
			SELECT max(valid_from) AS v FROM service_costs
			UNION ALL
			SELECT max(valid_from) AS v FROM pricing_coefficients
		)
	`).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("pricing sqlite: query latest change: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return fromMicros(latest.Int64), nil
}

func openValidFrom(ctx context.Context, tx *sql.Tx, query string, args ...any) (*time.Time, error) {
	var v int64
	err := tx.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pricing sqlite: query open record: %w", err)
	}
	t := fromMicros(v)
	return &t, nil
}

func scanCost(row rowScanner) (domain.CostRecord, error) {
	var (
		r                    domain.CostRecord
		serviceID, source    string
		validFrom, createdAt int64
		validTo              sql.NullInt64
	)
	if err := row.Scan(&r.ID, &serviceID, &r.CostUSD, &validFrom, &validTo, &source, &r.Notes, &createdAt); err != nil {
		return domain.CostRecord{}, err
	}
	r.ServiceID = domain.ServiceID(serviceID)
	r.Source = domain.CostSource(source)
	r.ValidFrom = fromMicros(validFrom)
	r.ValidTo = fromNullMicros(validTo)
	r.CreatedAt = fromMicros(createdAt)
	return r, nil
}

func scanCoefficient(row rowScanner) (domain.PricingCoefficient, error) {
	var (
		c                    domain.PricingCoefficient
		validFrom, createdAt int64
		validTo              sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.Coefficient, &validFrom, &validTo, &c.Name, &c.Description, &createdAt); err != nil {
		return domain.PricingCoefficient{}, err
	}
	c.ValidFrom = fromMicros(validFrom)
	c.ValidTo = fromNullMicros(validTo)
	c.CreatedAt = fromMicros(createdAt)
	return c, nil
}
