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

const reservationColumns = `id, user_id, owner_kind, owner_id, provider, service_id, images, credits_per_image,
	reserved_credits, fallback, status, refunded_credits, created_at, closed_at`

// Grant adds credits to a user's balance.
func (s *Store) Grant(ctx context.Context, userID string, amount int64, description string) (domain.CreditTransaction, error) {
	if amount <= 0 {
		return domain.CreditTransaction{}, fmt.Errorf("grant of %d credits: %w", amount, domain.ErrInvalidAmount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := s.now().UTC()
	var balance int64
	err = tx.QueryRow(ctx, `
		INSERT INTO user_credits (user_id, balance, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = user_credits.balance + EXCLUDED.balance,
			updated_at = EXCLUDED.updated_at
		RETURNING balance
	`, userID, amount, now).Scan(&balance)
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: credit balance: %w", err)
	}

	credit, err := insertTransaction(ctx, tx, domain.CreditTransaction{
		UserID:       userID,
		Type:         domain.TransactionGrant,
		Amount:       amount,
		BalanceAfter: balance,
		Description:  description,
		CreatedAt:    now,
	})
	if err != nil {
		return domain.CreditTransaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: commit grant: %w", err)
	}
	return credit, nil
}

// Balance returns a user's balance (0 for unknown users).
func (s *Store) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx, `SELECT balance FROM user_credits WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pricing postgres: query balance: %w", err)
	}
	return balance, nil
}

// Reserve debits the reservation from the balance and stores it in one transaction.
// The conditional UPDATE row-locks the balance, so concurrent reservations cannot overdraw.
func (s *Store) Reserve(ctx context.Context, r *domain.Reservation) (domain.CreditTransaction, error) {
	if r.ReservedCredits <= 0 {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: reserved credits %d: %w", r.ReservedCredits, domain.ErrInvalidReservation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var balance int64
	err = tx.QueryRow(ctx, `
		UPDATE user_credits SET balance = balance - $1, updated_at = $2
		WHERE user_id = $3 AND balance >= $1
		RETURNING balance
	`, r.ReservedCredits, r.CreatedAt, r.UserID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CreditTransaction{}, domain.ErrInsufficientCredits
	}
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: debit balance: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO credit_reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, NULL)
	`, r.ID, r.UserID, string(r.OwnerKind), r.OwnerID, string(r.Provider), string(r.ServiceID),
		r.Images, r.CreditsPerImage, r.ReservedCredits, r.Fallback, string(r.Status), r.CreatedAt); err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: insert reservation: %w", err)
	}

	debit, err := insertTransaction(ctx, tx, domain.CreditTransaction{
		UserID:        r.UserID,
		Type:          domain.TransactionReserve,
		Amount:        -r.ReservedCredits,
		BalanceAfter:  balance,
		ReservationID: r.ID,
		Description:   fmt.Sprintf("reserve %d x %s", r.Images, r.ServiceID),
		CreatedAt:     r.CreatedAt,
	})
	if err != nil {
		return domain.CreditTransaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: commit reservation: %w", err)
	}
	return debit, nil
}

// GetReservation returns a stored reservation.
func (s *Store) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	r, err := scanReservation(s.pool.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM credit_reservations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("pricing postgres: query reservation: %w", err)
	}
	return r, nil
}

// Settle closes an open reservation, stores its image charges and credits the refund,
// all in one transaction.
func (s *Store) Settle(ctx context.Context, st domain.Settlement) (domain.CreditTransaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	r, err := scanReservation(tx.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM credit_reservations WHERE id = $1 FOR UPDATE`, st.ReservationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CreditTransaction{}, fmt.Errorf("reservation %s: %w", st.ReservationID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: query reservation: %w", err)
	}
	if r.Status != domain.ReservationOpen {
		return domain.CreditTransaction{}, domain.ErrReservationClosed
	}
	if st.RefundCredits < 0 || st.RefundCredits > r.ReservedCredits {
		return domain.CreditTransaction{}, fmt.Errorf("refund %d of %d reserved: %w",
			st.RefundCredits, r.ReservedCredits, domain.ErrInvalidAmount)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE credit_reservations SET status = $1, refunded_credits = $2, closed_at = $3
		WHERE id = $4
	`, string(st.FinalStatus), st.RefundCredits, st.ClosedAt, r.ID); err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: close reservation: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range st.Charges {
		batch.Queue(`
			INSERT INTO reservation_images
				(reservation_id, image_index, status, estimated_credits, actual_credits, credits_spent, variance_pct, discrepancy)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, r.ID, c.Index, string(c.Status), c.EstimatedCredits, c.ActualCredits, c.CreditsSpent, c.VariancePct, c.Discrepancy)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: insert image charges: %w", err)
		}
	}

	var balance int64
	err = tx.QueryRow(ctx, `
		UPDATE user_credits SET balance = balance + $1, updated_at = $2
		WHERE user_id = $3
		RETURNING balance
	`, st.RefundCredits, st.ClosedAt, r.UserID).Scan(&balance)
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: credit refund: %w", err)
	}

	refund, err := insertTransaction(ctx, tx, domain.CreditTransaction{
		UserID:        r.UserID,
		Type:          domain.TransactionRefund,
		Amount:        st.RefundCredits,
		BalanceAfter:  balance,
		ReservationID: r.ID,
		Description:   fmt.Sprintf("%s: %d charged", st.FinalStatus, st.ChargedCredits),
		CreatedAt:     st.ClosedAt,
	})
	if err != nil {
		return domain.CreditTransaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: commit settlement: %w", err)
	}
	return refund, nil
}

// Charges returns the settled image charges of a reservation.
func (s *Store) Charges(ctx context.Context, reservationID string) ([]domain.ImageCharge, error) {
	if _, err := s.GetReservation(ctx, reservationID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT image_index, status, estimated_credits, actual_credits, credits_spent, variance_pct, discrepancy
		FROM reservation_images WHERE reservation_id = $1 ORDER BY image_index
	`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("pricing postgres: query image charges: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ImageCharge, 0)
	for rows.Next() {
		var (
			c      domain.ImageCharge
			status string
		)
		if err := rows.Scan(&c.Index, &status, &c.EstimatedCredits, &c.ActualCredits, &c.CreditsSpent, &c.VariancePct, &c.Discrepancy); err != nil {
			return nil, fmt.Errorf("pricing postgres: scan image charge: %w", err)
		}
		c.Status = domain.ImageStatus(status)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pricing postgres: iterate image charges: %w", err)
	}
	return out, nil
}

// Transactions returns a user's newest transactions first.
func (s *Store) Transactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, type, amount, balance_after, reservation_id, description, created_at
		FROM credit_transactions WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("pricing postgres: query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CreditTransaction, 0)
	for rows.Next() {
		var (
			t    domain.CreditTransaction
			kind string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &kind, &t.Amount, &t.BalanceAfter, &t.ReservationID, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("pricing postgres: scan transaction: %w", err)
		}
		t.Type = domain.TransactionType(kind)
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pricing postgres: iterate transactions: %w", err)
	}
	return out, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t domain.CreditTransaction) (domain.CreditTransaction, error) {
	t.ID = uuid.NewString()
	t.CreatedAt = t.CreatedAt.UTC().Truncate(time.Microsecond)
	if _, err := tx.Exec(ctx, `
		INSERT INTO credit_transactions (id, user_id, type, amount, balance_after, reservation_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.UserID, string(t.Type), t.Amount, t.BalanceAfter, t.ReservationID, t.Description, t.CreatedAt); err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing postgres: insert transaction: %w", err)
	}
	return t, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var (
		r                                      domain.Reservation
		ownerKind, provider, serviceID, status string
	)
	if err := row.Scan(&r.ID, &r.UserID, &ownerKind, &r.OwnerID, &provider, &serviceID, &r.Images,
		&r.CreditsPerImage, &r.ReservedCredits, &r.Fallback, &status, &r.RefundedCredits, &r.CreatedAt, &r.ClosedAt); err != nil {
		return nil, err
	}
	r.OwnerKind = domain.OwnerKind(ownerKind)
	r.Provider = domain.Provider(provider)
	r.ServiceID = domain.ServiceID(serviceID)
	r.Status = domain.ReservationStatus(status)
	r.CreatedAt = r.CreatedAt.UTC()
	if r.ClosedAt != nil {
		t := r.ClosedAt.UTC()
		r.ClosedAt = &t
	}
	return &r, nil
}
