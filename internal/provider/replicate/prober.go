// Package replicate provides the cost prober for Flux on Replicate.
// Flux is billed per second of GPU time, so the real per-image cost is only known after a
// metered prediction. The prober never runs one: it reports ErrAdvisoryOnly and Flux costs
// are maintained by hand.
package replicate

import (
	"context"
	"fmt"

	"github.com/davidbz/pixelcredit/internal/domain"
	"github.com/davidbz/pixelcredit/internal/observability"
)

const modelName = "black-forest-labs/flux-1.1-pro"

// Config contains Replicate prober configuration.
type Config struct {
	Enabled bool `env:"REPLICATE_FLUX_PROBER" envDefault:"true"`
}

// Prober checks the Flux tiers without recording anything.
type Prober struct {
	enabled bool
}

// NewProber creates the Flux prober.
func NewProber(config Config) *Prober {
	return &Prober{enabled: config.Enabled}
}

// Provider returns the provider family this prober covers.
func (p *Prober) Provider() domain.Provider { return domain.ProviderFlux }

// Enabled reports whether the prober is configured to run.
func (p *Prober) Enabled() bool { return p.enabled }

// Probe always returns ErrAdvisoryOnly.
func (p *Prober) Probe(ctx context.Context) ([]domain.CostEstimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	observability.FromContext(ctx).Debug("flux cost is metered, manual monitoring recommended",
		observability.String("model", modelName))

	return nil, fmt.Errorf("%s is billed per GPU second: %w", modelName, domain.ErrAdvisoryOnly)
}
