// Package google provides the cost prober for Nano Banana (Gemini image generation).
package google

import (
	"context"
	"sort"

	"github.com/davidbz/pixelcredit/internal/domain"
)

// Published per-image rates (USD) by output resolution.
var nanoRates = map[domain.ServiceID]float64{
	domain.ServiceNano1K: 0.134,
	domain.ServiceNano2K: 0.134,
	domain.ServiceNano4K: 0.24,
}

// Config contains Google prober configuration.
type Config struct {
	Enabled bool `env:"GOOGLE_NANO_PROBER" envDefault:"true"`
}

// Prober reports the published Nano Banana rates.
type Prober struct {
	enabled bool
}

// NewProber creates the Nano Banana prober.
func NewProber(config Config) *Prober {
	return &Prober{enabled: config.Enabled}
}

// Provider returns the provider family this prober covers.
func (p *Prober) Provider() domain.Provider { return domain.ProviderNanoBanana }

// Enabled reports whether the prober is configured to run.
func (p *Prober) Enabled() bool { return p.enabled }

// Probe returns one estimate per resolution tier, ordered by service id.
func (p *Prober) Probe(ctx context.Context) ([]domain.CostEstimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	estimates := make([]domain.CostEstimate, 0, len(nanoRates))
	for id, rate := range nanoRates {
		estimates = append(estimates, domain.CostEstimate{
			ServiceID: id,
			CostUSD:   rate,
			Source:    domain.CostSourceCalculated,
			Notes:     "published per-image rate",
		})
	}
	sort.Slice(estimates, func(i, j int) bool {
		return estimates[i].ServiceID < estimates[j].ServiceID
	})
	return estimates, nil
}
