package domain

import (
	"context"
	"time"
)

// CostHistory is the append-only record of tier unit costs.
type CostHistory interface {
	// RecordCost closes the open record for serviceID (if any) and opens a new one, atomically.
	RecordCost(ctx context.Context, serviceID ServiceID, costUSD float64, source CostSource, notes string) (CostRecord, error)

	// CurrentCost returns the open record for serviceID or ErrNotFound.
	CurrentCost(ctx context.Context, serviceID ServiceID) (CostRecord, error)

	// CurrentCosts returns every open record.
	CurrentCosts(ctx context.Context) ([]CostRecord, error)

	// CostHistory returns all records for serviceID, oldest first.
	CostHistory(ctx context.Context, serviceID ServiceID) ([]CostRecord, error)
}

// CoefficientHistory is the append-only record of the global coefficient.
type CoefficientHistory interface {
	// RecordCoefficient closes the open coefficient (if any) and opens a new one, atomically.
	RecordCoefficient(ctx context.Context, value float64, name, description string) (PricingCoefficient, error)

	// CurrentCoefficient returns the open coefficient or ErrNotFound.
	CurrentCoefficient(ctx context.Context) (PricingCoefficient, error)

	// CoefficientHistory returns all coefficients, oldest first.
	CoefficientHistory(ctx context.Context) ([]PricingCoefficient, error)
}

// HistoryStore groups both history series.
type HistoryStore interface {
	CostHistory
	CoefficientHistory

	// LatestChange returns the newest valid_from across both series (zero when empty).
	LatestChange(ctx context.Context) (time.Time, error)
}

// PricingView stores the derived current-pricing projection.
type PricingView interface {
	// Replace swaps the whole projection. refreshedAt is the newest history write the rows
	// were projected from.
	Replace(ctx context.Context, rows []CurrentServicePricing, refreshedAt time.Time) error

	// All returns every row ordered by service id.
	All(ctx context.Context) ([]CurrentServicePricing, error)

	// Get returns the row for id or ErrNotFound.
	Get(ctx context.Context, id ServiceID) (CurrentServicePricing, error)

	// RefreshedAt returns the stamp of the last Replace (zero if never).
	RefreshedAt(ctx context.Context) (time.Time, error)
}

// LedgerStore persists user balances, reservations and transactions.
type LedgerStore interface {
	// Grant adds credits to a user's balance.
	Grant(ctx context.Context, userID string, amount int64, description string) (CreditTransaction, error)

	// Balance returns a user's balance (0 for unknown users).
	Balance(ctx context.Context, userID string) (int64, error)

	// Reserve debits r.ReservedCredits and stores r in one atomic step.
	// Returns ErrInsufficientCredits without side effects when the balance is short.
	Reserve(ctx context.Context, r *Reservation) (CreditTransaction, error)

	// GetReservation returns the reservation or ErrNotFound.
	GetReservation(ctx context.Context, id string) (*Reservation, error)

	// Settle closes an open reservation and credits the refund in one atomic step.
	// Returns ErrReservationClosed if the reservation is no longer open.
	Settle(ctx context.Context, s Settlement) (CreditTransaction, error)

	// Charges returns the settled per-image charges of a reservation, ordered by index.
	Charges(ctx context.Context, reservationID string) ([]ImageCharge, error)

	// Transactions returns the newest transactions for a user.
	Transactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error)
}

// CostProber estimates the current unit costs of one provider family.
type CostProber interface {
	// Provider returns the provider family this prober covers.
	Provider() Provider

	// Enabled reports whether the prober is configured to run.
	Enabled() bool

	// Probe returns current cost estimates, or ErrAdvisoryOnly.
	Probe(ctx context.Context) ([]CostEstimate, error)
}

// ProberRegistry manages cost probers.
type ProberRegistry interface {
	// Register adds a prober.
	Register(ctx context.Context, prober CostProber) error

	// Get retrieves a prober by provider.
	Get(ctx context.Context, provider Provider) (CostProber, error)

	// All returns every prober ordered by provider.
	All(ctx context.Context) []CostProber
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}
