package domain_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/pixelcredit/internal/domain"
	"github.com/davidbz/pixelcredit/internal/storage/memory"
)

var errStoreDown = errors.New("store down")

// fakeClock is a manually advanced clock shared by the store and the catalog.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// recordingEvents captures published event types.
type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) Publish(_ context.Context, eventType string, _ map[string]interface{}) {
	r.mu.Lock()
	r.events = append(r.events, eventType)
	r.mu.Unlock()
}

func (r *recordingEvents) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == eventType {
			n++
		}
	}
	return n
}

// flakyHistory wraps a store and fails reads when down is set. afterCosts, when set, runs
// once CurrentCosts has taken its snapshot.
type flakyHistory struct {
	domain.HistoryStore
	mu         sync.Mutex
	down       bool
	afterCosts func()
}

func (f *flakyHistory) CurrentCosts(ctx context.Context) ([]domain.CostRecord, error) {
	if f.isDown() {
		return nil, errStoreDown
	}
	costs, err := f.HistoryStore.CurrentCosts(ctx)

	f.mu.Lock()
	hook := f.afterCosts
	f.afterCosts = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return costs, err
}

func (f *flakyHistory) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *flakyHistory) isDown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.down
}

func (f *flakyHistory) CurrentCost(ctx context.Context, id domain.ServiceID) (domain.CostRecord, error) {
	if f.isDown() {
		return domain.CostRecord{}, errStoreDown
	}
	return f.HistoryStore.CurrentCost(ctx, id)
}

func (f *flakyHistory) CurrentCoefficient(ctx context.Context) (domain.PricingCoefficient, error) {
	if f.isDown() {
		return domain.PricingCoefficient{}, errStoreDown
	}
	return f.HistoryStore.CurrentCoefficient(ctx)
}

func (f *flakyHistory) LatestChange(ctx context.Context) (time.Time, error) {
	if f.isDown() {
		return time.Time{}, errStoreDown
	}
	return f.HistoryStore.LatestChange(ctx)
}

// fixture wires a catalog over an in-memory store.
type fixture struct {
	clock   *fakeClock
	store   *memory.Store
	history *flakyHistory
	view    *domain.InMemoryPricingView
	events  *recordingEvents
	catalog *domain.PricingCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := newFakeClock()
	store := memory.NewStore()
	store.SetClock(clock.Now)

	f := &fixture{
		clock:   clock,
		store:   store,
		history: &flakyHistory{HistoryStore: store},
		view:    domain.NewInMemoryPricingView(),
		events:  &recordingEvents{},
	}
	f.catalog = domain.NewPricingCatalog(f.history, f.view, f.events, domain.CatalogConfig{Now: clock.Now})
	return f
}

// seed records the default coefficient and the given costs through the catalog.
func (f *fixture) seed(t *testing.T, costs map[domain.ServiceID]float64) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.catalog.Bootstrap(ctx, 4.0))
	for id, cost := range costs {
		f.clock.Advance(time.Second)
		_, err := f.catalog.RecordCost(ctx, id, cost, domain.CostSourceManual, "seed")
		require.NoError(t, err)
	}
	f.clock.Advance(time.Second)
}

func defaultCosts() map[domain.ServiceID]float64 {
	return map[domain.ServiceID]float64{
		domain.ServiceDallE3StandardSquare: 0.040,
		domain.ServiceDallE3StandardWide:   0.080,
		domain.ServiceDallE3HDSquare:       0.080,
		domain.ServiceDallE3HDWide:         0.120,
		domain.ServiceFluxStandard:         0.02,
		domain.ServiceFluxHigh:             0.03,
		domain.ServiceFluxUltra:            0.04,
		domain.ServiceNano1K:               0.134,
		domain.ServiceNano2K:               0.134,
		domain.ServiceNano4K:               0.24,
		domain.ServiceGPT4oMiniContext:     0.00063,
	}
}
