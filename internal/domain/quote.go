package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/davidbz/pixelcredit/internal/observability"
)

const (
	defaultEntryTimeout = 2 * time.Second

	// MaxImagesPerRequest caps the image count of a batch entry or a reservation.
	MaxImagesPerRequest = 10000
)

// QuoteConfig configures the quote service.
type QuoteConfig struct {
	// EntryTimeout bounds each entry of a batch quote.
	EntryTimeout time.Duration

	// FallbackCredits is the last-resort credits-per-unit per provider family, used only
	// when neither the view nor history can price a tier. Providers without an entry fail
	// with PricingUnavailableError instead.
	FallbackCredits map[Provider]int64
}

// QuoteService answers "what does this request cost now" and converts post-hoc provider
// costs into credits.
type QuoteService struct {
	classifier   *Classifier
	catalog      *PricingCatalog
	events       EventPublisher
	entryTimeout time.Duration
	fallback     map[Provider]int64
}

// NewQuoteService creates a new quote service (DI constructor).
func NewQuoteService(
	classifier *Classifier,
	catalog *PricingCatalog,
	events EventPublisher,
	cfg QuoteConfig,
) *QuoteService {
	timeout := cfg.EntryTimeout
	if timeout <= 0 {
		timeout = defaultEntryTimeout
	}

	fallback := make(map[Provider]int64, len(cfg.FallbackCredits))
	for p, credits := range cfg.FallbackCredits {
		if credits > 0 {
			fallback[p] = credits
		}
	}

	return &QuoteService{
		classifier:   classifier,
		catalog:      catalog,
		events:       events,
		entryTimeout: timeout,
		fallback:     fallback,
	}
}

// Quote classifies the request and prices one unit of it.
func (s *QuoteService) Quote(ctx context.Context, providerName string, params BillingParams) (Quote, error) {
	if err := s.catalog.EnsureFresh(ctx); err != nil {
		observability.FromContext(ctx).Warn("could not verify pricing view freshness", observability.Error(err))
	}
	return s.quote(ctx, providerName, params)
}

func (s *QuoteService) quote(ctx context.Context, providerName string, params BillingParams) (Quote, error) {
	provider, err := ParseProvider(providerName)
	if err != nil {
		return Quote{}, err
	}

	serviceID, err := s.classifier.Classify(provider, params)
	if err != nil {
		return Quote{}, err
	}

	ctx = observability.WithProvider(ctx, string(provider))
	ctx = observability.WithServiceID(ctx, string(serviceID))

	row, source, lookupErr := s.lookup(ctx, serviceID)
	if lookupErr == nil {
		return Quote{
			Provider:        provider,
			ServiceID:       serviceID,
			CreditsRequired: row.CreditsRequired,
			Coefficient:     row.Coefficient,
			CostUSD:         row.CostUSD,
			Source:          source,
		}, nil
	}

	unavailable := &PricingUnavailableError{ServiceID: serviceID, Err: lookupErr}

	credits, ok := s.fallback[provider]
	if !ok {
		observability.FromContext(ctx).Error("pricing unavailable and no fallback configured",
			observability.Error(lookupErr))
		return Quote{}, unavailable
	}

	observability.FromContext(ctx).Warn("pricing unavailable, using fallback credits",
		observability.Int64("fallback_credits", credits),
		observability.Error(lookupErr))
	s.publish(ctx, "pricing.quote_fallback", map[string]interface{}{
		"provider":   string(provider),
		"service_id": string(serviceID),
		"credits":    credits,
		"cause":      lookupErr.Error(),
	})

	return Quote{
		Provider:        provider,
		ServiceID:       serviceID,
		CreditsRequired: credits,
		Source:          QuoteSourceFallback,
		Fallback:        true,
	}, nil
}

// QuoteBatch prices every entry independently. A failing entry is reported in its line and
// never aborts the batch.
func (s *QuoteService) QuoteBatch(ctx context.Context, requests []QuoteRequest) BatchQuote {
	logger := observability.FromContext(ctx)

	if err := s.catalog.EnsureFresh(ctx); err != nil {
		logger.Warn("could not verify pricing view freshness", observability.Error(err))
	}

	entries := make([]BatchEntry, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req QuoteRequest) {
			defer wg.Done()
			entries[i] = s.quoteEntry(ctx, req)
		}(i, req)
	}
	wg.Wait()

	result := BatchQuote{Breakdown: entries}
	for i := range entries {
		e := &entries[i]
		if e.Error == "" {
			total, ok := AddCredits(result.TotalCredits, e.Subtotal)
			if ok {
				result.TotalCredits = total
			} else {
				e.Error = "batch total exceeds the credit range"
				e.Subtotal = 0
			}
		}
		if e.Error != "" || e.Fallback {
			result.Degraded = true
		}
	}

	logger.Info("batch quote computed",
		observability.Int("entries", len(entries)),
		observability.Int64("total_credits", result.TotalCredits),
		observability.Bool("degraded", result.Degraded))

	return result
}

func (s *QuoteService) quoteEntry(ctx context.Context, req QuoteRequest) BatchEntry {
	entry := BatchEntry{Service: req.Provider, Count: req.Count}
	if entry.Count == 0 {
		entry.Count = 1
	}
	if entry.Count < 0 || entry.Count > MaxImagesPerRequest {
		entry.Error = fmt.Sprintf("count must be between 1 and %d, got %d", MaxImagesPerRequest, req.Count)
		return entry
	}

	entryCtx, cancel := context.WithTimeout(ctx, s.entryTimeout)
	defer cancel()

	q, err := s.quote(entryCtx, req.Provider, req.Params)
	if err != nil {
		var unavailable *PricingUnavailableError
		if errors.As(err, &unavailable) {
			entry.ServiceID = unavailable.ServiceID
		}
		entry.Error = err.Error()
		return entry
	}

	entry.ServiceID = q.ServiceID
	entry.CreditsPerImage = q.CreditsRequired
	entry.Fallback = q.Fallback
	subtotal, ok := MulCredits(q.CreditsRequired, entry.Count)
	if !ok {
		entry.Error = fmt.Sprintf("%d x %d credits exceeds the credit range", entry.Count, q.CreditsRequired)
		return entry
	}
	entry.Subtotal = subtotal
	return entry
}

// Reconcile converts a real provider cost into credits using the coefficient of the tier's
// current pricing row, so the result is comparable with the estimate made from that row.
func (s *QuoteService) Reconcile(ctx context.Context, serviceID ServiceID, actualCostUSD float64) (int64, error) {
	if !serviceID.Valid() {
		return 0, fmt.Errorf("unknown service id %q: %w", serviceID, ErrInvalidAmount)
	}
	if math.IsNaN(actualCostUSD) || math.IsInf(actualCostUSD, 0) || actualCostUSD < 0 {
		return 0, fmt.Errorf("actual cost %v: %w", actualCostUSD, ErrInvalidAmount)
	}

	ctx = observability.WithServiceID(ctx, string(serviceID))

	row, _, err := s.lookup(ctx, serviceID)
	if err != nil {
		return 0, &PricingUnavailableError{ServiceID: serviceID, Err: err}
	}

	return CreditsFromCost(actualCostUSD, row.Coefficient), nil
}

// lookup reads the view, then history. Context errors stop it between steps.
func (s *QuoteService) lookup(ctx context.Context, id ServiceID) (CurrentServicePricing, QuoteSource, error) {
	if err := ctx.Err(); err != nil {
		return CurrentServicePricing{}, "", err
	}

	row, err := s.catalog.Get(ctx, id)
	if err == nil {
		return row, QuoteSourceView, nil
	}
	if !errors.Is(err, ErrNotFound) {
		observability.FromContext(ctx).Warn("pricing view read failed, deriving from history",
			observability.Error(err))
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return CurrentServicePricing{}, "", ctxErr
	}

	row, err = s.catalog.Derive(ctx, id)
	if err != nil {
		return CurrentServicePricing{}, "", err
	}
	return row, QuoteSourceHistory, nil
}

func (s *QuoteService) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, eventType, data)
}
