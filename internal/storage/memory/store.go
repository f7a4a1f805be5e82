// Package memory provides in-process history and ledger stores for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidbz/pixelcredit/internal/domain"
)

// Store implements domain.HistoryStore and domain.LedgerStore in memory.
type Store struct {
	mu sync.RWMutex

	costs        map[domain.ServiceID][]domain.CostRecord
	coefficients []domain.PricingCoefficient

	balances     map[string]int64
	reservations map[string]*domain.Reservation
	charges      map[string][]domain.ImageCharge
	transactions []domain.CreditTransaction

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		costs:        make(map[domain.ServiceID][]domain.CostRecord),
		balances:     make(map[string]int64),
		reservations: make(map[string]*domain.Reservation),
		charges:      make(map[string][]domain.ImageCharge),
		now:          time.Now,
	}
}

// SetClock replaces the store clock.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// RecordCost closes the open record for serviceID and appends a new one.
func (s *Store) RecordCost(
	_ context.Context,
	serviceID domain.ServiceID,
	costUSD float64,
	source domain.CostSource,
	notes string,
) (domain.CostRecord, error) {
	if err := domain.ValidateCost(serviceID, costUSD, source); err != nil {
		return domain.CostRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.costs[serviceID]

	var prev *time.Time
	open := -1
	for i := range records {
		if records[i].Current() {
			open = i
			prev = &records[i].ValidFrom
		}
	}

	now := domain.NextValidFrom(s.now(), prev)
	if open >= 0 {
		closedAt := now
		records[open].ValidTo = &closedAt
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
	s.costs[serviceID] = append(records, record)

	return record, nil
}

// CurrentCost returns the open record for serviceID.
func (s *Store) CurrentCost(_ context.Context, serviceID domain.ServiceID) (domain.CostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.costs[serviceID] {
		if r.Current() {
			return copyCost(r), nil
		}
	}
	return domain.CostRecord{}, fmt.Errorf("current cost for %s: %w", serviceID, domain.ErrNotFound)
}

// CurrentCosts returns every open record ordered by service id.
func (s *Store) CurrentCosts(_ context.Context) ([]domain.CostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CostRecord, 0, len(s.costs))
	for _, records := range s.costs {
		for _, r := range records {
			if r.Current() {
				out = append(out, copyCost(r))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceID < out[j].ServiceID })
	return out, nil
}

// CostHistory returns every record for serviceID, oldest first.
func (s *Store) CostHistory(_ context.Context, serviceID domain.ServiceID) ([]domain.CostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.costs[serviceID]
	out := make([]domain.CostRecord, 0, len(records))
	for _, r := range records {
		out = append(out, copyCost(r))
	}
	return out, nil
}

// RecordCoefficient closes the open coefficient and appends a new one.
func (s *Store) RecordCoefficient(
	_ context.Context,
	value float64,
	name, description string,
) (domain.PricingCoefficient, error) {
	if err := domain.ValidateCoefficient(value); err != nil {
		return domain.PricingCoefficient{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *time.Time
	open := -1
	for i := range s.coefficients {
		if s.coefficients[i].Current() {
			open = i
			prev = &s.coefficients[i].ValidFrom
		}
	}

	now := domain.NextValidFrom(s.now(), prev)
	if open >= 0 {
		closedAt := now
		s.coefficients[open].ValidTo = &closedAt
	}

	c := domain.PricingCoefficient{
		ID:          uuid.NewString(),
		Coefficient: value,
		ValidFrom:   now,
		Name:        name,
		Description: description,
		CreatedAt:   now,
	}
	s.coefficients = append(s.coefficients, c)

	return c, nil
}

// CurrentCoefficient returns the open coefficient.
func (s *Store) CurrentCoefficient(_ context.Context) (domain.PricingCoefficient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.coefficients {
		if c.Current() {
			return copyCoefficient(c), nil
		}
	}
	return domain.PricingCoefficient{}, fmt.Errorf("current coefficient: %w", domain.ErrNotFound)
}

// CoefficientHistory returns every coefficient, oldest first.
func (s *Store) CoefficientHistory(_ context.Context) ([]domain.PricingCoefficient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PricingCoefficient, 0, len(s.coefficients))
	for _, c := range s.coefficients {
		out = append(out, copyCoefficient(c))
	}
	return out, nil
}

// LatestChange returns the newest valid_from across costs and coefficients.
func (s *Store) LatestChange(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, records := range s.costs {
		for _, r := range records {
			if r.ValidFrom.After(latest) {
				latest = r.ValidFrom
			}
		}
	}
	for _, c := range s.coefficients {
		if c.ValidFrom.After(latest) {
			latest = c.ValidFrom
		}
	}
	return latest, nil
}

// Grant adds credits to a user's balance.
func (s *Store) Grant(_ context.Context, userID string, amount int64, description string) (domain.CreditTransaction, error) {
	if amount <= 0 {
		return domain.CreditTransaction{}, fmt.Errorf("grant of %d credits: %w", amount, domain.ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[userID] += amount
	return s.appendTransaction(userID, domain.TransactionGrant, amount, "", description), nil
}

// Balance returns a user's balance.
func (s *Store) Balance(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[userID], nil
}

// Reserve debits r.ReservedCredits and stores the reservation.
func (s *Store) Reserve(_ context.Context, r *domain.Reservation) (domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ReservedCredits <= 0 {
		return domain.CreditTransaction{}, fmt.Errorf("reserved credits %d: %w", r.ReservedCredits, domain.ErrInvalidReservation)
	}

	if _, exists := s.reservations[r.ID]; exists {
		return domain.CreditTransaction{}, fmt.Errorf("reservation %s already exists", r.ID)
	}
	if s.balances[r.UserID] < r.ReservedCredits {
		return domain.CreditTransaction{}, domain.ErrInsufficientCredits
	}

	s.balances[r.UserID] -= r.ReservedCredits

	stored := *r
	s.reservations[r.ID] = &stored

	return s.appendTransaction(r.UserID, domain.TransactionReserve, -r.ReservedCredits, r.ID,
		fmt.Sprintf("reserve %d x %s", r.Images, r.ServiceID)), nil
}

// GetReservation returns a copy of the reservation.
func (s *Store) GetReservation(_ context.Context, id string) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.reservations[id]
	if !exists {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	out := *r
	return &out, nil
}

// Settle closes an open reservation and credits the refund.
func (s *Store) Settle(_ context.Context, st domain.Settlement) (domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.reservations[st.ReservationID]
	if !exists {
		return domain.CreditTransaction{}, fmt.Errorf("reservation %s: %w", st.ReservationID, domain.ErrNotFound)
	}
	if r.Status != domain.ReservationOpen {
		return domain.CreditTransaction{}, domain.ErrReservationClosed
	}
	if st.RefundCredits < 0 || st.RefundCredits > r.ReservedCredits {
		return domain.CreditTransaction{}, fmt.Errorf("refund %d of %d reserved: %w",
			st.RefundCredits, r.ReservedCredits, domain.ErrInvalidAmount)
	}

	closedAt := st.ClosedAt
	r.Status = st.FinalStatus
	r.RefundedCredits = st.RefundCredits
	r.ClosedAt = &closedAt
	s.charges[r.ID] = append([]domain.ImageCharge(nil), st.Charges...)

	s.balances[r.UserID] += st.RefundCredits
	return s.appendTransaction(r.UserID, domain.TransactionRefund, st.RefundCredits, r.ID,
		fmt.Sprintf("%s: %d charged", st.FinalStatus, st.ChargedCredits)), nil
}

// Charges returns the settled image charges of a reservation.
func (s *Store) Charges(_ context.Context, reservationID string) ([]domain.ImageCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.reservations[reservationID]; !exists {
		return nil, fmt.Errorf("reservation %s: %w", reservationID, domain.ErrNotFound)
	}
	return append([]domain.ImageCharge(nil), s.charges[reservationID]...), nil
}

// Transactions returns a user's newest transactions first.
func (s *Store) Transactions(_ context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CreditTransaction
	for i := len(s.transactions) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.transactions[i].UserID == userID {
			out = append(out, s.transactions[i])
		}
	}
	return out, nil
}

// appendTransaction must be called with mu held.
func (s *Store) appendTransaction(
	userID string,
	kind domain.TransactionType,
	amount int64,
	reservationID, description string,
) domain.CreditTransaction {
	tx := domain.CreditTransaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          kind,
		Amount:        amount,
		BalanceAfter:  s.balances[userID],
		ReservationID: reservationID,
		Description:   description,
		CreatedAt:     s.now().UTC(),
	}
	s.transactions = append(s.transactions, tx)
	return tx
}

func copyCost(r domain.CostRecord) domain.CostRecord {
	if r.ValidTo != nil {
		t := *r.ValidTo
		r.ValidTo = &t
	}
	return r
}

func copyCoefficient(c domain.PricingCoefficient) domain.PricingCoefficient {
	if c.ValidTo != nil {
		t := *c.ValidTo
		c.ValidTo = &t
	}
	return c
}
