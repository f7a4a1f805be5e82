package domain

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryPricingView stores the current pricing projection in memory.
type InMemoryPricingView struct {
	mu          sync.RWMutex
	rows        map[ServiceID]CurrentServicePricing
	refreshedAt time.Time
}

// NewInMemoryPricingView creates a new in-memory pricing view.
func NewInMemoryPricingView() *InMemoryPricingView {
	return &InMemoryPricingView{
		mu:   sync.RWMutex{},
		rows: make(map[ServiceID]CurrentServicePricing),
	}
}

// Replace swaps the whole projection.
func (v *InMemoryPricingView) Replace(
	_ context.Context,
	rows []CurrentServicePricing,
	refreshedAt time.Time,
) error {
	next := make(map[ServiceID]CurrentServicePricing, len(rows))
	for _, row := range rows {
		if !row.ServiceID.Valid() {
			return fmt.Errorf("invalid service id in pricing row: %q", row.ServiceID)
		}
		next[row.ServiceID] = row
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.rows = next
	v.refreshedAt = refreshedAt
	return nil
}

// All returns every row ordered by service id.
func (v *InMemoryPricingView) All(_ context.Context) ([]CurrentServicePricing, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	rows := make([]CurrentServicePricing, 0, len(v.rows))
	for _, row := range v.rows {
		rows = append(rows, row)
	}
	SortPricing(rows)
	return rows, nil
}

// Get returns the row for a tier.
func (v *InMemoryPricingView) Get(_ context.Context, id ServiceID) (CurrentServicePricing, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	row, exists := v.rows[id]
	if !exists {
		return CurrentServicePricing{}, fmt.Errorf("pricing row %s: %w", id, ErrNotFound)
	}
	return row, nil
}

// RefreshedAt returns when the projection was last replaced.
func (v *InMemoryPricingView) RefreshedAt(_ context.Context) (time.Time, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.refreshedAt, nil
}

// SortPricing orders rows by service id.
func SortPricing(rows []CurrentServicePricing) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ServiceID < rows[j].ServiceID
	})
}
