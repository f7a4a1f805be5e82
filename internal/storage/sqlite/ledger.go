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

const reservationColumns = `id, user_id, owner_kind, owner_id, provider, service_id, images, credits_per_image,
	reserved_credits, fallback, status, refunded_credits, created_at, closed_at`

// Grant adds credits to a user's balance.
func (s *Store) Grant(ctx context.Context, userID string, amount int64, description string) (domain.CreditTransaction, error) {
	if amount <= 0 {
		return domain.CreditTransaction{}, fmt.Errorf("grant of %d credits: %w", amount, domain.ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.now().UTC()
	var balance int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO user_credits (user_id, balance, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = excluded.updated_at
		RETURNING balance
	`, userID, amount, toMicros(now)).Scan(&balance)
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: credit balance: %w", err)
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

	if err := tx.Commit(); err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: commit grant: %w", err)
	}
	return credit, nil
}

// Balance returns a user's balance (0 for unknown users).
func (s *Store) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM user_credits WHERE user_id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pricing sqlite: query balance: %w", err)
	}
	return balance, nil
}

// Reserve debits the reservation from the balance and stores it in one transaction.
func (s *Store) Reserve(ctx context.Context, r *domain.Reservation) (domain.CreditTransaction, error) {
	if r.ReservedCredits <= 0 {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: reserved credits %d: %w", r.ReservedCredits, domain.ErrInvalidReservation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var balance int64
	err = tx.QueryRowContext(ctx, `
		UPDATE user_credits SET balance = balance - ?, updated_at = ?
		WHERE user_id = ? AND balance >= ?
		RETURNING balance
	`, r.ReservedCredits, toMicros(r.CreatedAt), r.UserID, r.ReservedCredits).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CreditTransaction{}, domain.ErrInsufficientCredits
	}
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: debit balance: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO credit_reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, NULL)
	`, r.ID, r.UserID, string(r.OwnerKind), r.OwnerID, string(r.Provider), string(r.ServiceID),
		r.Images, r.CreditsPerImage, r.ReservedCredits, r.Fallback, string(r.Status), toMicros(r.CreatedAt)); err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: insert reservation: %w", err)
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

	if err := tx.Commit(); err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: commit reservation: %w", err)
	}
	return debit, nil
}

// GetReservation returns a stored reservation.
func (s *Store) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM credit_reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("pricing sqlite: query reservation: %w", err)
	}
	return r, nil
}

// Settle closes an open reservation, stores its image charges and credits the refund,
// all in one transaction.
func (s *Store) Settle(ctx context.Context, st domain.Settlement) (domain.CreditTransaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	r, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM credit_reservations WHERE id = ?`, st.ReservationID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CreditTransaction{}, fmt.Errorf("reservation %s: %w", st.ReservationID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: query reservation: %w", err)
	}
	if r.Status != domain.ReservationOpen {
		return domain.CreditTransaction{}, domain.ErrReservationClosed
	}
	if st.RefundCredits < 0 || st.RefundCredits > r.ReservedCredits {
		return domain.CreditTransaction{}, fmt.Errorf("refund %d of %d reserved: %w",
			st.RefundCredits, r.ReservedCredits, domain.ErrInvalidAmount)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE credit_reservations SET status = ?, refunded_credits = ?, closed_at = ?
		WHERE id = ? AND status = ?
	`, string(st.FinalStatus), st.RefundCredits, toMicros(st.ClosedAt), r.ID, string(domain.ReservationOpen))
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: close reservation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.CreditTransaction{}, domain.ErrReservationClosed
	}

	for _, c := range st.Charges {
		var actual sql.NullInt64
		if c.ActualCredits != nil {
			actual = sql.NullInt64{Int64: *c.ActualCredits, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reservation_images
				(reservation_id, image_index, status, estimated_credits, actual_credits, credits_spent, variance_pct, discrepancy)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, c.Index, string(c.Status), c.EstimatedCredits, actual, c.CreditsSpent, c.VariancePct, c.Discrepancy); err != nil {
			return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: insert image charge: %w", err)
		}
	}

	var balance int64
	err = tx.QueryRowContext(ctx, `
		UPDATE user_credits SET balance = balance + ?, updated_at = ?
		WHERE user_id = ?
		RETURNING balance
	`, st.RefundCredits, toMicros(st.ClosedAt), r.UserID).Scan(&balance)
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: credit refund: %w", err)
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

	if err := tx.Commit(); err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: commit settlement: %w", err)
	}
	return refund, nil
}

// Charges returns the settled image charges of a reservation.
func (s *Store) Charges(ctx context.Context, reservationID string) ([]domain.ImageCharge, error) {
	if _, err := s.GetReservation(ctx, reservationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT image_index, status, estimated_credits, actual_credits, credits_spent, variance_pct, discrepancy
		FROM reservation_images WHERE reservation_id = ? ORDER BY image_index
	`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("pricing sqlite: query image charges: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ImageCharge, 0)
	for rows.Next() {
		var (
			c      domain.ImageCharge
			status string
			actual sql.NullInt64
		)
		if err := rows.Scan(&c.Index, &status, &c.EstimatedCredits, &actual, &c.CreditsSpent, &c.VariancePct, &c.Discrepancy); err != nil {
			return nil, fmt.Errorf("pricing sqlite: scan image charge: %w", err)
		}
		c.Status = domain.ImageStatus(status)
		if actual.Valid {
			v := actual.Int64
			c.ActualCredits = &v
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pricing sqlite: iterate image charges: %w", err)
	}
	return out, nil
}

// Transactions returns a user's newest transactions first.
func (s *Store) Transactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, balance_after, reservation_id, description, created_at
		FROM credit_transactions WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("pricing sqlite: query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CreditTransaction, 0)
	for rows.Next() {
		var (
			t         domain.CreditTransaction
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &kind, &t.Amount, &t.BalanceAfter, &t.ReservationID, &t.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("pricing sqlite: scan transaction: %w", err)
		}
		t.Type = domain.TransactionType(kind)
		t.CreatedAt = fromMicros(createdAt)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pricing sqlite: iterate transactions: %w", err)
	}
	return out, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t domain.CreditTransaction) (domain.CreditTransaction, error) {
	t.ID = uuid.NewString()
	t.CreatedAt = t.CreatedAt.UTC().Truncate(time.Microsecond)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, type, amount, balance_after, reservation_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, string(t.Type), t.Amount, t.BalanceAfter, t.ReservationID, t.Description, toMicros(t.CreatedAt)); err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("pricing sqlite: insert transaction: %w", err)
	}
	return t, nil
}

func scanReservation(row rowScanner) (*domain.Reservation, error) {
	var (
		r                                      domain.Reservation
		ownerKind, provider, serviceID, status string
		createdAt                              int64
		closedAt                               sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.UserID, &ownerKind, &r.OwnerID, &provider, &serviceID, &r.Images,
		&r.CreditsPerImage, &r.ReservedCredits, &r.Fallback, &status, &r.RefundedCredits, &createdAt, &closedAt); err != nil {
		return nil, err
	}
	r.OwnerKind = domain.OwnerKind(ownerKind)
	r.Provider = domain.Provider(provider)
	r.ServiceID = domain.ServiceID(serviceID)
	r.Status = domain.ReservationStatus(status)
	r.CreatedAt = fromMicros(createdAt)
	r.ClosedAt = fromNullMicros(closedAt)
	return &r, nil
}
