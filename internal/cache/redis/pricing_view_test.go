package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/pixelcredit/internal/cache/redis"
	"github.com/davidbz/pixelcredit/internal/domain"
	"github.com/davidbz/pixelcredit/internal/storage/memory"
)

func setupView(t *testing.T, prefix string) (*redis.PricingView, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redis.NewPricingView(client, prefix), mr
}

func pricingRow(id domain.ServiceID, cost float64, credits int64) domain.CurrentServicePricing {
	from := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	return domain.CurrentServicePricing{
		ServiceID:            id,
		CostUSD:              cost,
		Coefficient:          4.0,
		UserPriceUSD:         cost * 4,
		CreditsRequired:      credits,
		CostValidFrom:        from,
		CoefficientValidFrom: from,
		Source:               domain.CostSourceManual,
	}
}

func TestPricingView_EmptyView(t *testing.T) {
	view, _ := setupView(t, "")
	ctx := context.Background()

	refreshed, err := view.RefreshedAt(ctx)
	require.NoError(t, err)
	require.True(t, refreshed.IsZero())

	rows, err := view.All(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)

	_, err = view.Get(ctx, domain.ServiceNano1K)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPricingView_ReplaceSwapsWholeProjection(t *testing.T) {
	view, mr := setupView(t, "test")
	ctx := context.Background()

	first := time.Date(2026, 1, 5, 9, 0, 0, 123456000, time.UTC)
	err := view.Replace(ctx, []domain.CurrentServicePricing{
		pricingRow(domain.ServiceNano4K, 0.24, 96),
		pricingRow(domain.ServiceFluxStandard, 0.02, 8),
	}, first)
	require.NoError(t, err)
	require.True(t, mr.Exists("test:current"))

	rows, err := view.All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, domain.ServiceFluxStandard, rows[0].ServiceID)
	require.Equal(t, domain.ServiceNano4K, rows[1].ServiceID)

	row, err := view.Get(ctx, domain.ServiceNano4K)
	require.NoError(t, err)
	require.Equal(t, int64(96), row.CreditsRequired)
	require.InDelta(t, 0.24, row.CostUSD, 1e-12)
	require.True(t, row.CostValidFrom.Equal(time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)))

	refreshed, err := view.RefreshedAt(ctx)
	require.NoError(t, err)
	require.True(t, refreshed.Equal(first))

	second := first.Add(time.Minute)
	err = view.Replace(ctx, []domain.CurrentServicePricing{pricingRow(domain.ServiceDallE3HDWide, 0.12, 48)}, second)
	require.NoError(t, err)

	rows, err = view.All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, domain.ServiceDallE3HDWide, rows[0].ServiceID)

	_, err = view.Get(ctx, domain.ServiceNano4K)
	require.ErrorIs(t, err, domain.ErrNotFound)

	refreshed, err = view.RefreshedAt(ctx)
	require.NoError(t, err)
	require.True(t, refreshed.Equal(second))
}

func TestPricingView_ReplaceWithNoRows(t *testing.T) {
	view, _ := setupView(t, "")
	ctx := context.Background()

	require.NoError(t, view.Replace(ctx, []domain.CurrentServicePricing{pricingRow(domain.ServiceNano1K, 0.134, 54)}, time.Now()))
	require.NoError(t, view.Replace(ctx, nil, time.Now()))

	rows, err := view.All(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)

	refreshed, err := view.RefreshedAt(ctx)
	require.NoError(t, err)
	require.False(t, refreshed.IsZero())
}

func TestPricingView_RejectsInvalidRows(t *testing.T) {
	view, _ := setupView(t, "")
	ctx := context.Background()

	err := view.Replace(ctx, []domain.CurrentServicePricing{pricingRow("bogus", 1, 1)}, time.Now())
	require.Error(t, err)

	refreshed, err := view.RefreshedAt(ctx)
	require.NoError(t, err)
	require.True(t, refreshed.IsZero())
}

func TestPricingView_CorruptRow(t *testing.T) {
	view, mr := setupView(t, "")
	ctx := context.Background()

	mr.HSet("pricing:current", string(domain.ServiceNano2K), "{not json")

	_, err := view.Get(ctx, domain.ServiceNano2K)
	require.Error(t, err)

	_, err = view.All(ctx)
	require.Error(t, err)
}

func TestPricingView_BacksCatalog(t *testing.T) {
	view, _ := setupView(t, "")
	ctx := context.Background()

	catalog := domain.NewPricingCatalog(memory.NewStore(), view, nil, domain.CatalogConfig{})
	require.NoError(t, catalog.Bootstrap(ctx, 4.0))
	_, err := catalog.RecordCost(ctx, domain.ServiceFluxHigh, 0.03, domain.CostSourceManual, "")
	require.NoError(t, err)

	row, err := view.Get(ctx, domain.ServiceFluxHigh)
	require.NoError(t, err)
	require.Equal(t, int64(12), row.CreditsRequired)

	freshness, err := catalog.Freshness(ctx)
	require.NoError(t, err)
	require.False(t, freshness.Stale)
}
