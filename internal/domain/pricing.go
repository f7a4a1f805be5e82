package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davidbz/pixelcredit/internal/observability"
)

// CatalogConfig configures the pricing catalog.
type CatalogConfig struct {
	// MaxStaleness bounds how long EnsureFresh goes without rebuilding the view
	// even when history has not changed. Zero disables the age bound.
	MaxStaleness time.Duration

	// Now overrides the clock used for refresh timestamps.
	Now func() time.Time
}

// PricingCatalog owns the history stores and the derived current pricing view.
// History is the source of truth; the view is rebuilt from it by Refresh.
type PricingCatalog struct {
	history      HistoryStore
	view         PricingView
	events       EventPublisher
	maxStaleness time.Duration
	now          func() time.Time

	refreshMu sync.Mutex
	// lastRefresh is the local wall-clock time of the last Refresh, in unix nanoseconds.
	lastRefresh atomic.Int64
}

// NewPricingCatalog creates a new pricing catalog (DI constructor).
func NewPricingCatalog(
	history HistoryStore,
	view PricingView,
	events EventPublisher,
	cfg CatalogConfig,
) *PricingCatalog {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &PricingCatalog{
		history:      history,
		view:         view,
		events:       events,
		maxStaleness: cfg.MaxStaleness,
		now:          now,
	}
}

// Refresh rebuilds the view from history. It is idempotent.
func (c *PricingCatalog) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	logger := observability.FromContext(ctx)

	// The view is stamped with the newest history write it can have seen, so a write that
	// lands while projecting still compares as newer in Freshness.
	asOf, err := c.history.LatestChange(ctx)
	if err != nil {
		return fmt.Errorf("failed to read latest history change: %w", err)
	}
	now := c.now().UTC()
	if asOf.IsZero() {
		asOf = now
	}

	var rows []CurrentServicePricing
	coefficient, err := c.history.CurrentCoefficient(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		// Without a coefficient nothing can be priced; publish an empty view.
		logger.Warn("no current pricing coefficient, pricing view will be empty")
		rows = []CurrentServicePricing{}
	case err != nil:
		return fmt.Errorf("failed to load current coefficient: %w", err)
	default:
		costs, costsErr := c.history.CurrentCosts(ctx)
		if costsErr != nil {
			return fmt.Errorf("failed to load current costs: %w", costsErr)
		}
		rows = ProjectPricing(costs, coefficient)
	}

	if err := c.view.Replace(ctx, rows, asOf.UTC()); err != nil {
		return fmt.Errorf("failed to replace pricing view: %w", err)
	}
	c.lastRefresh.Store(now.UnixNano())

	logger.Info("pricing view refreshed",
		observability.Int("rows", len(rows)),
		observability.Time("as_of", asOf))
	c.publish(ctx, "pricing.cache_refreshed", map[string]interface{}{
		"rows":         len(rows),
		"refreshed_at": asOf.UTC(),
	})

	return nil
}

// Freshness compares the view against the newest history write.
func (c *PricingCatalog) Freshness(ctx context.Context) (Freshness, error) {
	refreshedAt, err := c.view.RefreshedAt(ctx)
	if err != nil {
		return Freshness{}, fmt.Errorf("failed to read view refresh time: %w", err)
	}

	latest, err := c.history.LatestChange(ctx)
	if err != nil {
		return Freshness{}, fmt.Errorf("failed to read latest history change: %w", err)
	}

	return Freshness{
		RefreshedAt:  refreshedAt,
		LatestChange: latest,
		Stale:        refreshedAt.IsZero() || latest.After(refreshedAt),
	}, nil
}

// EnsureFresh refreshes the view synchronously when it is stale, or when this process has not
// refreshed it within MaxStaleness.
func (c *PricingCatalog) EnsureFresh(ctx context.Context) error {
	f, err := c.Freshness(ctx)
	if err != nil {
		return err
	}

	expired := c.maxStaleness > 0 && c.now().Sub(time.Unix(0, c.lastRefresh.Load())) > c.maxStaleness
	if !f.Stale && !expired {
		return nil
	}

	observability.FromContext(ctx).Info("pricing view stale, refreshing",
		observability.Time("refreshed_at", f.RefreshedAt),
		observability.Time("latest_change", f.LatestChange),
		observability.Bool("expired", expired))

	return c.Refresh(ctx)
}

// All returns every row of the view.
func (c *PricingCatalog) All(ctx context.Context) ([]CurrentServicePricing, error) {
	rows, err := c.view.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing view: %w", err)
	}
	return rows, nil
}

// Get returns one row of the view or ErrNotFound.
func (c *PricingCatalog) Get(ctx context.Context, id ServiceID) (CurrentServicePricing, error) {
	return c.view.Get(ctx, id)
}

// Derive computes a pricing row straight from history, bypassing the view.
func (c *PricingCatalog) Derive(ctx context.Context, id ServiceID) (CurrentServicePricing, error) {
	cost, err := c.history.CurrentCost(ctx, id)
	if err != nil {
		return CurrentServicePricing{}, fmt.Errorf("current cost for %s: %w", id, err)
	}

	coefficient, err := c.history.CurrentCoefficient(ctx)
	if err != nil {
		return CurrentServicePricing{}, fmt.Errorf("current coefficient: %w", err)
	}

	return projectRow(cost, coefficient), nil
}

// RecordCost appends a cost record and refreshes the view. A failed refresh leaves the
// view stale (detectable through Freshness) but does not fail the write.
func (c *PricingCatalog) RecordCost(
	ctx context.Context,
	id ServiceID,
	costUSD float64,
	source CostSource,
	notes string,
) (CostRecord, error) {
	record, err := c.appendCost(ctx, id, costUSD, source, notes)
	if err != nil {
		return CostRecord{}, err
	}

	c.refreshAfterWrite(ctx)
	return record, nil
}

// appendCost validates and writes a cost record without touching the view.
func (c *PricingCatalog) appendCost(
	ctx context.Context,
	id ServiceID,
	costUSD float64,
	source CostSource,
	notes string,
) (CostRecord, error) {
	if err := ValidateCost(id, costUSD, source); err != nil {
		return CostRecord{}, err
	}

	record, err := c.history.RecordCost(ctx, id, costUSD, source, notes)
	if err != nil {
		return CostRecord{}, fmt.Errorf("failed to record cost: %w", err)
	}

	c.publish(ctx, "pricing.cost_recorded", map[string]interface{}{
		"service_id": string(id),
		"cost_usd":   costUSD,
		"source":     string(source),
	})

	return record, nil
}

// RecordCoefficient appends a coefficient and refreshes the view.
func (c *PricingCatalog) RecordCoefficient(
	ctx context.Context,
	value float64,
	name, description string,
) (PricingCoefficient, error) {
	if err := ValidateCoefficient(value); err != nil {
		return PricingCoefficient{}, err
	}

	coefficient, err := c.history.RecordCoefficient(ctx, value, name, description)
	if err != nil {
		return PricingCoefficient{}, fmt.Errorf("failed to record coefficient: %w", err)
	}

	c.publish(ctx, "pricing.coefficient_recorded", map[string]interface{}{
		"coefficient": value,
		"name":        name,
	})

	c.refreshAfterWrite(ctx)
	return coefficient, nil
}

// Bootstrap records defaultCoefficient when the coefficient history is empty, then refreshes.
func (c *PricingCatalog) Bootstrap(ctx context.Context, defaultCoefficient float64) error {
	_, err := c.history.CurrentCoefficient(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		if _, recErr := c.RecordCoefficient(ctx, defaultCoefficient, "default", "bootstrap coefficient"); recErr != nil {
			return recErr
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read current coefficient: %w", err)
	}

	return c.Refresh(ctx)
}

// CostHistory returns all cost records of a tier, oldest first.
func (c *PricingCatalog) CostHistory(ctx context.Context, id ServiceID) ([]CostRecord, error) {
	return c.history.CostHistory(ctx, id)
}

// CurrentCost returns the open cost record of a tier.
func (c *PricingCatalog) CurrentCost(ctx context.Context, id ServiceID) (CostRecord, error) {
	return c.history.CurrentCost(ctx, id)
}

// CoefficientHistory returns all coefficients, oldest first.
func (c *PricingCatalog) CoefficientHistory(ctx context.Context) ([]PricingCoefficient, error) {
	return c.history.CoefficientHistory(ctx)
}

func (c *PricingCatalog) refreshAfterWrite(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		observability.FromContext(ctx).Warn("pricing view refresh after write failed, view is stale",
			observability.Error(err))
	}
}

func (c *PricingCatalog) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if c.events == nil {
		return
	}
	c.events.Publish(ctx, eventType, data)
}

// ValidateCost checks a cost record before it is written.
func ValidateCost(id ServiceID, costUSD float64, source CostSource) error {
	if !id.Valid() {
		return fmt.Errorf("unknown service id %q: %w", id, ErrInvalidAmount)
	}
	if math.IsNaN(costUSD) || math.IsInf(costUSD, 0) || costUSD < 0 {
		return fmt.Errorf("cost %v: %w", costUSD, ErrInvalidAmount)
	}
	if !source.Valid() {
		return fmt.Errorf("unknown cost source %q: %w", source, ErrInvalidAmount)
	}
	return nil
}

// ValidateCoefficient checks a coefficient before it is written.
func ValidateCoefficient(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return fmt.Errorf("coefficient %v: %w", value, ErrInvalidAmount)
	}
	return nil
}
