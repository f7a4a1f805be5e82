package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davidbz/pixelcredit/internal/observability"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 500
)

// LedgerService reserves credits before generation and settles them afterwards.
type LedgerService struct {
	quotes *QuoteService
	store  LedgerStore
	events EventPublisher
	now    func() time.Time
}

// NewLedgerService creates a new ledger service (DI constructor).
func NewLedgerService(quotes *QuoteService, store LedgerStore, events EventPublisher) *LedgerService {
	return &LedgerService{
		quotes: quotes,
		store:  store,
		events: events,
		now:    time.Now,
	}
}

// Reserve quotes the request and debits images x credits-per-image from the user's balance.
// A failed quote blocks the reservation; a fallback quote does not.
func (s *LedgerService) Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error) {
	if err := validateReserveRequest(req); err != nil {
		return nil, err
	}

	quote, err := s.quotes.Quote(ctx, req.Provider, req.Params)
	if err != nil {
		return nil, err
	}

	reserved, ok := MulCredits(quote.CreditsRequired, req.Images)
	if !ok || reserved <= 0 {
		return nil, fmt.Errorf("%d x %d credits exceeds the credit range: %w",
			req.Images, quote.CreditsRequired, ErrInvalidReservation)
	}

	reservation := &Reservation{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		OwnerKind:       req.OwnerKind,
		OwnerID:         req.OwnerID,
		Provider:        quote.Provider,
		ServiceID:       quote.ServiceID,
		Images:          req.Images,
		CreditsPerImage: quote.CreditsRequired,
		ReservedCredits: reserved,
		Fallback:        quote.Fallback,
		Status:          ReservationOpen,
		CreatedAt:       s.now().UTC(),
	}

	ctx = observability.WithReservationID(ctx, reservation.ID)
	logger := observability.FromContext(ctx)

	tx, err := s.store.Reserve(ctx, reservation)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			logger.Info("reservation rejected, insufficient credits",
				observability.String("user_id", req.UserID),
				observability.Int64("reserved_credits", reservation.ReservedCredits))
			return nil, err
		}
		return nil, fmt.Errorf("failed to reserve credits: %w", err)
	}

	logger.Info("credits reserved",
		observability.String("user_id", req.UserID),
		observability.String("service_id", string(reservation.ServiceID)),
		observability.Int64("reserved_credits", reservation.ReservedCredits),
		observability.Int64("balance_after", tx.BalanceAfter),
		observability.Bool("fallback", reservation.Fallback))

	s.publish(ctx, "ledger.reserved", map[string]interface{}{
		"reservation_id":   reservation.ID,
		"user_id":          reservation.UserID,
		"owner_kind":       string(reservation.OwnerKind),
		"owner_id":         reservation.OwnerID,
		"service_id":       string(reservation.ServiceID),
		"images":           reservation.Images,
		"reserved_credits": reservation.ReservedCredits,
	})

	return reservation, nil
}

// Settle closes a finished reservation and refunds whatever was not spent.
func (s *LedgerService) Settle(ctx context.Context, reservationID string, outcomes []ImageOutcome) (Settlement, error) {
	return s.close(ctx, reservationID, outcomes, ReservationSettled)
}

// Cancel closes an aborted reservation. Images already completed are still charged.
func (s *LedgerService) Cancel(ctx context.Context, reservationID string, outcomes []ImageOutcome) (Settlement, error) {
	return s.close(ctx, reservationID, outcomes, ReservationCancelled)
}

func (s *LedgerService) close(
	ctx context.Context,
	reservationID string,
	outcomes []ImageOutcome,
	final ReservationStatus,
) (Settlement, error) {
	ctx = observability.WithReservationID(ctx, reservationID)
	logger := observability.FromContext(ctx)

	reservation, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return Settlement{}, err
	}
	if reservation.Status != ReservationOpen {
		return Settlement{}, fmt.Errorf("reservation %s is %s: %w", reservationID, reservation.Status, ErrReservationClosed)
	}

	byIndex, err := indexOutcomes(reservation.Images, outcomes)
	if err != nil {
		return Settlement{}, err
	}

	settlement := Settlement{
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		FinalStatus:   final,
		Charges:       make([]ImageCharge, 0, reservation.Images),
		ClosedAt:      s.now().UTC(),
	}

	for i := 0; i < reservation.Images; i++ {
		charge := s.chargeImage(ctx, reservation, i, byIndex[i])
		settlement.ChargedCredits += charge.CreditsSpent
		settlement.Charges = append(settlement.Charges, charge)
	}
	settlement.RefundCredits = reservation.ReservedCredits - settlement.ChargedCredits

	tx, err := s.store.Settle(ctx, settlement)
	if err != nil {
		if errors.Is(err, ErrReservationClosed) {
			return Settlement{}, err
		}
		return Settlement{}, fmt.Errorf("failed to settle reservation: %w", err)
	}

	logger.Info("reservation closed",
		observability.String("status", string(final)),
		observability.Int64("charged_credits", settlement.ChargedCredits),
		observability.Int64("refund_credits", settlement.RefundCredits),
		observability.Int64("balance_after", tx.BalanceAfter))

	s.publish(ctx, "ledger.settled", map[string]interface{}{
		"reservation_id":  reservation.ID,
		"user_id":         reservation.UserID,
		"status":          string(final),
		"charged_credits": settlement.ChargedCredits,
		"refund_credits":  settlement.RefundCredits,
	})

	return settlement, nil
}

// chargeImage prices one image. Only completed images cost anything, and never more than
// the estimate taken at reservation time.
func (s *LedgerService) chargeImage(ctx context.Context, r *Reservation, index int, outcome *ImageOutcome) ImageCharge {
	charge := ImageCharge{
		Index:            index,
		Status:           ImageCancelled,
		EstimatedCredits: r.CreditsPerImage,
	}
	if outcome == nil {
		return charge
	}

	charge.Status = outcome.Status
	if outcome.Status != ImageCompleted {
		return charge
	}

	charge.CreditsSpent = r.CreditsPerImage
	if outcome.ActualCostUSD == nil {
		return charge
	}

	actual, err := s.quotes.Reconcile(ctx, r.ServiceID, *outcome.ActualCostUSD)
	if err != nil {
		charge.Discrepancy = true
		observability.FromContext(ctx).Warn("reconciliation failed, charging estimate",
			observability.Int("image_index", index),
			observability.Error(err))
		s.publish(ctx, "ledger.reconcile_discrepancy", map[string]interface{}{
			"reservation_id":    r.ID,
			"image_index":       index,
			"estimated_credits": r.CreditsPerImage,
			"cause":             err.Error(),
		})
		return charge
	}

	charge.ActualCredits = &actual
	charge.VariancePct = VariancePct(float64(r.CreditsPerImage), float64(actual))
	if actual < charge.CreditsSpent {
		charge.CreditsSpent = actual
	}
	return charge
}

// Grant adds credits to a user's balance.
func (s *LedgerService) Grant(ctx context.Context, userID string, amount int64, description string) (CreditTransaction, error) {
	if userID == "" {
		return CreditTransaction{}, fmt.Errorf("user id is required: %w", ErrInvalidReservation)
	}
	if amount <= 0 {
		return CreditTransaction{}, fmt.Errorf("grant of %d credits: %w", amount, ErrInvalidAmount)
	}

	tx, err := s.store.Grant(ctx, userID, amount, description)
	if err != nil {
		return CreditTransaction{}, fmt.Errorf("failed to grant credits: %w", err)
	}

	observability.FromContext(ctx).Info("credits granted",
		observability.String("user_id", userID),
		observability.Int64("amount", amount),
		observability.Int64("balance_after", tx.BalanceAfter))

	return tx, nil
}

// Balance returns a user's balance.
func (s *LedgerService) Balance(ctx context.Context, userID string) (int64, error) {
	return s.store.Balance(ctx, userID)
}

// Transactions returns a user's newest transactions. A non-positive limit uses the default.
func (s *LedgerService) Transactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error) {
	switch {
	case limit <= 0:
		limit = defaultTransactionLimit
	case limit > maxTransactionLimit:
		limit = maxTransactionLimit
	}
	return s.store.Transactions(ctx, userID, limit)
}

// Reservation returns a stored reservation.
func (s *LedgerService) Reservation(ctx context.Context, id string) (*Reservation, error) {
	return s.store.GetReservation(ctx, id)
}

// Charges returns the per-image charges of a closed reservation.
func (s *LedgerService) Charges(ctx context.Context, reservationID string) ([]ImageCharge, error) {
	return s.store.Charges(ctx, reservationID)
}

func (s *LedgerService) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, eventType, data)
}

func validateReserveRequest(req ReserveRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("user id is required: %w", ErrInvalidReservation)
	}
	if req.OwnerKind != OwnerJob && req.OwnerKind != OwnerSample {
		return fmt.Errorf("owner kind %q: %w", req.OwnerKind, ErrInvalidReservation)
	}
	if req.OwnerID == "" {
		return fmt.Errorf("owner id is required: %w", ErrInvalidReservation)
	}
	if req.Images < 1 || req.Images > MaxImagesPerRequest {
		return fmt.Errorf("images must be between 1 and %d, got %d: %w",
			MaxImagesPerRequest, req.Images, ErrInvalidReservation)
	}
	return nil
}

func indexOutcomes(images int, outcomes []ImageOutcome) (map[int]*ImageOutcome, error) {
	byIndex := make(map[int]*ImageOutcome, len(outcomes))
	for i := range outcomes {
		o := &outcomes[i]
		if o.Index < 0 || o.Index >= images {
			return nil, fmt.Errorf("image index %d out of range [0,%d): %w", o.Index, images, ErrInvalidReservation)
		}
		if _, dup := byIndex[o.Index]; dup {
			return nil, fmt.Errorf("image index %d reported twice: %w", o.Index, ErrInvalidReservation)
		}
		switch o.Status {
		case ImageCompleted, ImageFailed, ImageCancelled:
		default:
			return nil, fmt.Errorf("image %d status %q: %w", o.Index, o.Status, ErrInvalidReservation)
		}
		byIndex[o.Index] = o
	}
	return byIndex, nil
}
