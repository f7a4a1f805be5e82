package domain_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/pixelcredit/internal/domain"
)

func TestPricingCatalog_RefreshWithoutCoefficient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.RecordCost(ctx, domain.ServiceNano1K, 0.134, domain.CostSourceManual, "")
	require.NoError(t, err)

	require.NoError(t, f.catalog.Refresh(ctx))

	rows, err := f.catalog.All(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestPricingCatalog_ViewMatchesHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, defaultCosts())

	rows, err := f.catalog.All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, len(domain.AllServiceIDs()))

	for _, row := range rows {
		derived, err := f.catalog.Derive(ctx, row.ServiceID)
		require.NoError(t, err)
		require.Equal(t, derived, row)
		require.Equal(t, domain.CreditsFromCost(row.CostUSD, 4.0), row.CreditsRequired)
	}

	row, err := f.catalog.Get(ctx, domain.ServiceDallE3HDWide)
	require.NoError(t, err)
	require.Equal(t, int64(48), row.CreditsRequired)
}

func TestPricingCatalog_CoefficientChangeRepricesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, defaultCosts())

	_, err := f.catalog.RecordCoefficient(ctx, 5.0, "spring", "promo markup")
	require.NoError(t, err)

	rows, err := f.catalog.All(ctx)
	require.NoError(t, err)
	for _, row := range rows {
		require.InDelta(t, 5.0, row.Coefficient, 1e-12)
		require.Equal(t, domain.CreditsFromCost(row.CostUSD, 5.0), row.CreditsRequired)
	}

	history, err := f.catalog.CoefficientHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].ValidTo)
	require.Equal(t, history[1].ValidFrom, *history[0].ValidTo)
	require.Nil(t, history[1].ValidTo)
}

func TestPricingCatalog_CostHistoryIsAppendOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, map[domain.ServiceID]float64{domain.ServiceFluxHigh: 0.03})

	_, err := f.catalog.RecordCost(ctx, domain.ServiceFluxHigh, 0.035, domain.CostSourceAPIAuto, "")
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.catalog.RecordCost(ctx, domain.ServiceFluxHigh, 0.032, domain.CostSourceManual, "")
	require.NoError(t, err)

	history, err := f.catalog.CostHistory(ctx, domain.ServiceFluxHigh)
	require.NoError(t, err)
	require.Len(t, history, 3)

	var open int
	for i, r := range history {
		if r.Current() {
			open++
			continue
		}
		require.Equal(t, history[i+1].ValidFrom, *r.ValidTo)
	}
	require.Equal(t, 1, open)
	require.InDelta(t, 0.032, history[2].CostUSD, 1e-12)

	row, err := f.catalog.Get(ctx, domain.ServiceFluxHigh)
	require.NoError(t, err)
	require.InDelta(t, 0.032, row.CostUSD, 1e-12)
}

func TestPricingCatalog_RejectsInvalidWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.RecordCost(ctx, domain.ServiceNano1K, -1, domain.CostSourceManual, "")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.catalog.RecordCost(ctx, "nano_8k", 0.5, domain.CostSourceManual, "")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.catalog.RecordCost(ctx, domain.ServiceNano1K, 0.5, "guess", "")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.catalog.RecordCoefficient(ctx, 0, "zero", "")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestPricingCatalog_Freshness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fresh, err := f.catalog.Freshness(ctx)
	require.NoError(t, err)
	require.True(t, fresh.Stale, "never refreshed view is stale")

	f.seed(t, map[domain.ServiceID]float64{domain.ServiceNano2K: 0.134})

	fresh, err = f.catalog.Freshness(ctx)
	require.NoError(t, err)
	require.False(t, fresh.Stale)

	// A write that bypasses the catalog leaves the view behind history.
	_, err = f.store.RecordCost(ctx, domain.ServiceNano2K, 0.15, domain.CostSourceManual, "direct")
	require.NoError(t, err)

	fresh, err = f.catalog.Freshness(ctx)
	require.NoError(t, err)
	require.True(t, fresh.Stale)

	f.clock.Advance(time.Second)
	require.NoError(t, f.catalog.EnsureFresh(ctx))

	fresh, err = f.catalog.Freshness(ctx)
	require.NoError(t, err)
	require.False(t, fresh.Stale)

	row, err := f.catalog.Get(ctx, domain.ServiceNano2K)
	require.NoError(t, err)
	require.InDelta(t, 0.15, row.CostUSD, 1e-12)
}

func TestPricingCatalog_WriteDuringRefreshLeavesViewStale(t *testing.T) {
	f := newFixture(t)
	f.seed(t, map[domain.ServiceID]float64{domain.ServiceNano2K: 0.134})
	ctx := context.Background()

	f.history.afterCosts = func() {
		f.clock.Advance(time.Second)
		_, err := f.store.RecordCost(ctx, domain.ServiceNano2K, 0.15, domain.CostSourceManual, "concurrent")
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
	require.NoError(t, f.catalog.Refresh(ctx))

	fresh, err := f.catalog.Freshness(ctx)
	require.NoError(t, err)
	require.True(t, fresh.Stale)
	require.True(t, fresh.LatestChange.After(fresh.RefreshedAt))

	require.NoError(t, f.catalog.EnsureFresh(ctx))

	row, err := f.catalog.Get(ctx, domain.ServiceNano2K)
	require.NoError(t, err)
	require.InDelta(t, 0.15, row.CostUSD, 1e-12)

	fresh, err = f.catalog.Freshness(ctx)
	require.NoError(t, err)
	require.False(t, fresh.Stale)
}

func TestPricingCatalog_EnsureFreshHonoursMaxStaleness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog = domain.NewPricingCatalog(f.history, f.view, f.events, domain.CatalogConfig{
		MaxStaleness: time.Minute,
		Now:          f.clock.Now,
	})
	f.seed(t, map[domain.ServiceID]float64{domain.ServiceNano1K: 0.134})

	before := f.events.count("pricing.cache_refreshed")

	require.NoError(t, f.catalog.EnsureFresh(ctx))
	require.Equal(t, before, f.events.count("pricing.cache_refreshed"))

	f.clock.Advance(2 * time.Minute)
	require.NoError(t, f.catalog.EnsureFresh(ctx))
	require.Equal(t, before+1, f.events.count("pricing.cache_refreshed"))
}

func TestPricingCatalog_BootstrapKeepsExistingCoefficient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.RecordCoefficient(ctx, 3.0, "custom", "")
	require.NoError(t, err)

	require.NoError(t, f.catalog.Bootstrap(ctx, 4.0))

	history, err := f.catalog.CoefficientHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.InDelta(t, 3.0, history[0].Coefficient, 1e-12)
}
