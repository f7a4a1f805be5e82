package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/davidbz/pixelcredit/internal/observability"
)

const (
	defaultMinCostChange = 0.0001
	defaultProbeTimeout  = 20 * time.Second

	// costChangeEpsilon keeps a difference of exactly MinCostChange from rounding below it.
	costChangeEpsilon = 1e-12
)

// AutoUpdateConfig configures the auto-updater.
type AutoUpdateConfig struct {
	// MinCostChange is the smallest absolute USD difference that is worth a new record.
	MinCostChange float64
	// ProbeTimeout bounds each prober.
	ProbeTimeout time.Duration
}

// AutoUpdater refreshes provider costs from the registered probers.
type AutoUpdater struct {
	registry  ProberRegistry
	catalog   *PricingCatalog
	minChange float64
	timeout   time.Duration
}

// NewAutoUpdater creates a new auto-updater (DI constructor).
func NewAutoUpdater(registry ProberRegistry, catalog *PricingCatalog, cfg AutoUpdateConfig) *AutoUpdater {
	minChange := cfg.MinCostChange
	if minChange <= 0 {
		minChange = defaultMinCostChange
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &AutoUpdater{
		registry:  registry,
		catalog:   catalog,
		minChange: minChange,
		timeout:   timeout,
	}
}

// Run probes every provider concurrently, records the costs that moved and refreshes the
// view once if anything was written. A failing provider never affects the others.
func (u *AutoUpdater) Run(ctx context.Context) UpdateReport {
	logger := observability.FromContext(ctx)
	probers := u.registry.All(ctx)

	results := make([]ProviderUpdate, len(probers))

	var wg sync.WaitGroup
	for i, prober := range probers {
		wg.Add(1)
		go func(i int, prober CostProber) {
			defer wg.Done()
			results[i] = u.runProber(ctx, prober)
		}(i, prober)
	}
	wg.Wait()

	report := UpdateReport{Providers: results}

	var changed bool
	for _, r := range results {
		if len(r.Updated) > 0 {
			changed = true
		}
	}

	if changed {
		if err := u.catalog.Refresh(ctx); err != nil {
			logger.Error("pricing view refresh after auto-update failed", observability.Error(err))
		} else {
			report.Refreshed = true
		}
	}

	logger.Info("auto-update finished",
		observability.Int("providers", len(results)),
		observability.Bool("refreshed", report.Refreshed))

	return report
}

func (u *AutoUpdater) runProber(ctx context.Context, prober CostProber) ProviderUpdate {
	provider := prober.Provider()
	ctx = observability.WithProvider(ctx, string(provider))
	logger := observability.FromContext(ctx)

	update := ProviderUpdate{Provider: provider}

	if !prober.Enabled() {
		update.Status = UpdateStatusSkipped
		update.Message = "prober disabled"
		return update
	}

	probeCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	estimates, err := prober.Probe(probeCtx)
	switch {
	case errors.Is(err, ErrAdvisoryOnly):
		update.Status = UpdateStatusChecked
		update.Message = err.Error()
		return update
	case err != nil:
		logger.Error("cost probe failed", observability.Error(err))
		update.Status = UpdateStatusError
		update.Message = err.Error()
		return update
	}

	var failures []string
	var manual []string
	for _, est := range estimates {
		outcome, recErr := u.apply(ctx, est)
		if recErr != nil {
			logger.Error("failed to apply cost estimate",
				observability.String("service_id", string(est.ServiceID)),
				observability.Error(recErr))
			failures = append(failures, fmt.Sprintf("%s: %v", est.ServiceID, recErr))
			continue
		}
		switch outcome {
		case applyRecorded:
			update.Updated = append(update.Updated, est.ServiceID)
		case applyKeptManual:
			manual = append(manual, string(est.ServiceID))
		}
	}

	switch {
	case len(failures) > 0:
		update.Status = UpdateStatusError
		update.Message = strings.Join(failures, "; ")
	case len(update.Updated) > 0:
		update.Status = UpdateStatusUpdated
	case len(manual) > 0:
		update.Status = UpdateStatusChecked
		update.Message = "manual cost kept for " + strings.Join(manual, ", ")
	default:
		update.Status = UpdateStatusChecked
		update.Message = "no significant cost change"
	}

	return update
}

type applyOutcome int

const (
	applyUnchanged applyOutcome = iota
	applyRecorded
	applyKeptManual
)

// apply records est when no current cost exists or it moved by at least minChange. Only a
// live API reading may replace a manually entered cost.
func (u *AutoUpdater) apply(ctx context.Context, est CostEstimate) (applyOutcome, error) {
	current, err := u.catalog.CurrentCost(ctx, est.ServiceID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return applyUnchanged, err
	default:
		if math.Abs(est.CostUSD-current.CostUSD)+costChangeEpsilon < u.minChange {
			return applyUnchanged, nil
		}
		if current.Source == CostSourceManual && est.Source != CostSourceAPIAuto {
			return applyKeptManual, nil
		}
	}

	if _, err := u.catalog.appendCost(ctx, est.ServiceID, est.CostUSD, est.Source, est.Notes); err != nil {
		return applyUnchanged, err
	}
	return applyRecorded, nil
}
