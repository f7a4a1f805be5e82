package domain_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/pixelcredit/internal/domain"
)

func newQuoteService(f *fixture, fallback map[domain.Provider]int64) *domain.QuoteService {
	return domain.NewQuoteService(
		domain.NewClassifier(domain.DefaultClassifierConfig()),
		f.catalog,
		f.events,
		domain.QuoteConfig{EntryTimeout: time.Second, FallbackCredits: fallback},
	)
}

func TestQuoteService_Quote(t *testing.T) {
	f := newFixture(t)
	f.seed(t, defaultCosts())
	quotes := newQuoteService(f, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		provider  string
		params    domain.BillingParams
		serviceID domain.ServiceID
		credits   int64
	}{
		{"dalle hd wide", "openai_dalle3", domain.DallE3Params{Quality: "hd", Ratio: "16:9"}, domain.ServiceDallE3HDWide, 48},
		{"flux at boundary", "replicate_flux", domain.FluxParams{Steps: 30}, domain.ServiceFluxStandard, 8},
		{"nano 4K", "google_nano_banana", domain.NanoBananaParams{ImageSize: "4K"}, domain.ServiceNano4K, 96},
		{"context helper", "gpt4o_mini", nil, domain.ServiceGPT4oMiniContext, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := quotes.Quote(ctx, tt.provider, tt.params)
			require.NoError(t, err)
			require.Equal(t, tt.serviceID, q.ServiceID)
			require.Equal(t, tt.credits, q.CreditsRequired)
			require.Equal(t, domain.QuoteSourceView, q.Source)
			require.False(t, q.Fallback)
		})
	}
}

func TestQuoteService_QuoteRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	f.seed(t, defaultCosts())
	quotes := newQuoteService(f, map[domain.Provider]int64{domain.ProviderFlux: 8})
	ctx := context.Background()

	_, err := quotes.Quote(ctx, "stable_diffusion", domain.FluxParams{Steps: 10})
	require.True(t, domain.IsUnknownProvider(err))

	_, err = quotes.Quote(ctx, "replicate_flux", domain.FluxParams{Steps: 80})
	require.True(t, domain.IsInvalidParams(err))
}

func TestQuoteService_DerivesWhenViewIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.seed(t, defaultCosts())
	quotes := newQuoteService(f, nil)
	ctx := context.Background()

	// An empty view that is considered fresh forces the history path.
	require.NoError(t, f.view.Replace(ctx, nil, f.clock.Now()))

	q, err := quotes.Quote(ctx, "openai_dalle3", domain.DallE3Params{Quality: "standard", Ratio: "1:1"})
	require.NoError(t, err)
	require.Equal(t, int64(16), q.CreditsRequired)
	require.Equal(t, domain.QuoteSourceHistory, q.Source)
}

func TestQuoteService_FallbackAndUnavailable(t *testing.T) {
	f := newFixture(t)
	f.seed(t, defaultCosts())
	ctx := context.Background()

	require.NoError(t, f.view.Replace(ctx, nil, f.clock.Now()))
	f.history.setDown(true)

	t.Run("configured fallback is used and flagged", func(t *testing.T) {
		quotes := newQuoteService(f, map[domain.Provider]int64{domain.ProviderDallE3: 15})

		q, err := quotes.Quote(ctx, "openai_dalle3", domain.DallE3Params{Quality: "hd", Ratio: "1:1"})
		require.NoError(t, err)
		require.True(t, q.Fallback)
		require.Equal(t, domain.QuoteSourceFallback, q.Source)
		require.Equal(t, int64(15), q.CreditsRequired)
		require.Equal(t, domain.ServiceDallE3HDSquare, q.ServiceID)
		require.Positive(t, f.events.count("pricing.quote_fallback"))
	})

	t.Run("no fallback fails with a typed error", func(t *testing.T) {
		quotes := newQuoteService(f, nil)

		_, err := quotes.Quote(ctx, "google_nano_banana", domain.NanoBananaParams{ImageSize: "2K"})
		require.Error(t, err)
		require.True(t, domain.IsPricingUnavailable(err))
		require.ErrorIs(t, err, errStoreDown)

		var unavailable *domain.PricingUnavailableError
		require.ErrorAs(t, err, &unavailable)
		require.Equal(t, domain.ServiceNano2K, unavailable.ServiceID)
	})
}

func TestQuoteService_CancelledContextIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.seed(t, defaultCosts())
	quotes := newQuoteService(f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := quotes.Quote(ctx, "replicate_flux", domain.FluxParams{Steps: 20})
	require.True(t, domain.IsPricingUnavailable(err))
	require.True(t, errors.Is(err, context.Canceled))
}

func TestQuoteService_QuoteBatch(t *testing.T) {
	f := newFixture(t)
	f.seed(t, defaultCosts())
	quotes := newQuoteService(f, nil)
	ctx := context.Background()

	t.Run("sums every entry", func(t *testing.T) {
		result := quotes.QuoteBatch(ctx, []domain.QuoteRequest{
			{Provider: "openai_dalle3", Params: domain.DallE3Params{Quality: "standard", Ratio: "1:1"}, Count: 3},
			{Provider: "google_nano_banana", Params: domain.NanoBananaParams{ImageSize: "4K"}},
		})

		require.False(t, result.Degraded)
		require.Equal(t, int64(3*16+96), result.TotalCredits)
		require.Len(t, result.Breakdown, 2)
		require.Equal(t, 3, result.Breakdown[0].Count)
		require.Equal(t, int64(48), result.Breakdown[0].Subtotal)
		require.Equal(t, 1, result.Breakdown[1].Count)
		require.Equal(t, domain.ServiceNano4K, result.Breakdown[1].ServiceID)
	})

	t.Run("a failing entry does not abort the batch", func(t *testing.T) {
		result := quotes.QuoteBatch(ctx, []domain.QuoteRequest{
			{Provider: "replicate_flux", Params: domain.FluxParams{Steps: 45}, Count: 2},
			{Provider: "unknown_service", Params: domain.FluxParams{Steps: 10}, Count: 1},
			{Provider: "replicate_flux", Params: domain.FluxParams{Steps: 10}, Count: -1},
		})

		require.True(t, result.Degraded)
		require.Equal(t, int64(2*16), result.TotalCredits)
		require.Empty(t, result.Breakdown[0].Error)
		require.Equal(t, domain.ServiceFluxUltra, result.Breakdown[0].ServiceID)
		require.NotEmpty(t, result.Breakdown[1].Error)
		require.NotEmpty(t, result.Breakdown[2].Error)
	})

	t.Run("an oversized count degrades the entry", func(t *testing.T) {
		result := quotes.QuoteBatch(ctx, []domain.QuoteRequest{
			{Provider: "openai_dalle3", Params: domain.DallE3Params{Quality: "standard", Ratio: "1:1"}, Count: 700000000000000000},
			{Provider: "openai_dalle3", Params: domain.DallE3Params{Quality: "standard", Ratio: "1:1"}, Count: 2},
		})

		require.True(t, result.Degraded)
		require.Equal(t, int64(32), result.TotalCredits)
		require.NotEmpty(t, result.Breakdown[0].Error)
		require.Zero(t, result.Breakdown[0].Subtotal)
		require.Empty(t, result.Breakdown[1].Error)
	})
}

func TestQuoteService_QuoteBatchCreditRange(t *testing.T) {
	f := newFixture(t)
	costs := defaultCosts()
	costs[domain.ServiceFluxStandard] = 1e300
	f.seed(t, costs)
	quotes := newQuoteService(f, nil)
	ctx := context.Background()

	t.Run("subtotal past the credit range", func(t *testing.T) {
		result := quotes.QuoteBatch(ctx, []domain.QuoteRequest{
			{Provider: "replicate_flux", Params: domain.FluxParams{Steps: 10}, Count: 2},
		})

		require.True(t, result.Degraded)
		require.Zero(t, result.TotalCredits)
		require.Contains(t, result.Breakdown[0].Error, "credit range")
	})

	t.Run("total past the credit range", func(t *testing.T) {
		result := quotes.QuoteBatch(ctx, []domain.QuoteRequest{
			{Provider: "replicate_flux", Params: domain.FluxParams{Steps: 10}, Count: 1},
			{Provider: "replicate_flux", Params: domain.FluxParams{Steps: 10}, Count: 1},
		})

		require.True(t, result.Degraded)
		require.Equal(t, int64(math.MaxInt64), result.TotalCredits)
		require.Empty(t, result.Breakdown[0].Error)
		require.Contains(t, result.Breakdown[1].Error, "credit range")
	})
}

func TestQuoteService_Reconcile(t *testing.T) {
	f := newFixture(t)
	f.seed(t, defaultCosts())
	quotes := newQuoteService(f, nil)
	ctx := context.Background()

	credits, err := quotes.Reconcile(ctx, domain.ServiceNano4K, 0.20)
	require.NoError(t, err)
	require.Equal(t, int64(80), credits)

	credits, err = quotes.Reconcile(ctx, domain.ServiceNano4K, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), credits)

	_, err = quotes.Reconcile(ctx, domain.ServiceNano4K, -0.1)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = quotes.Reconcile(ctx, "nano_16k", 0.1)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestQuoteService_ReconcileUsesRowCoefficient(t *testing.T) {
	f := newFixture(t)
	f.seed(t, defaultCosts())
	quotes := newQuoteService(f, nil)
	ctx := context.Background()

	// The row the estimate came from still carries 4.0 while history already moved on.
	_, err := f.store.RecordCoefficient(ctx, 10.0, "pending", "not yet projected")
	require.NoError(t, err)

	credits, err := quotes.Reconcile(ctx, domain.ServiceDallE3StandardSquare, 0.04)
	require.NoError(t, err)
	require.Equal(t, int64(16), credits)
}
