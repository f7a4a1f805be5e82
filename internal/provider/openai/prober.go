// Package openai provides cost probers for the OpenAI-backed tiers.
//
// The GPT prober calculates the cost of one image-context call from the published token
// rates and, when an API key is configured, confirms through the SDK that the model is
// still served. The DALL-E prober reports the published per-image rates.
package openai

import (
	"context"
	"fmt"
	"sort"

	"github.com/davidbz/pixelcredit/internal/domain"
	"github.com/davidbz/pixelcredit/internal/observability"
)

// GPTProber estimates the gpt4o_mini_context tier.
type GPTProber struct {
	models  ModelChecker
	enabled bool
}

// NewGPTProber creates the GPT prober. models may be nil, which skips the availability check.
func NewGPTProber(config Config, models ModelChecker) *GPTProber {
	return &GPTProber{models: models, enabled: config.GPTEnabled}
}

// Provider returns the provider family this prober covers.
func (p *GPTProber) Provider() domain.Provider { return domain.ProviderGPT4oMini }

// Enabled reports whether the prober is configured to run.
func (p *GPTProber) Enabled() bool { return p.enabled }

// Probe returns the calculated context-call cost.
func (p *GPTProber) Probe(ctx context.Context) ([]domain.CostEstimate, error) {
	logger := observability.FromContext(ctx)

	if p.models != nil {
		if err := p.models.CheckModel(ctx, gptModel); err != nil {
			return nil, err
		}
		logger.Debug("model availability confirmed", observability.String("model", gptModel))
	}

	return []domain.CostEstimate{{
		ServiceID: domain.ServiceGPT4oMiniContext,
		CostUSD:   ContextCallCost(),
		Source:    domain.CostSourceCalculated,
		Notes: fmt.Sprintf("%d input + %d output tokens at $%.2f/$%.2f per 1M",
			gptContextInputTokens, gptContextOutputTokens, gptInputCostPer1M, gptOutputCostPer1M),
	}}, nil
}

// DallEProber reports the published DALL-E 3 per-image rates.
type DallEProber struct {
	enabled bool
}

// NewDallEProber creates the DALL-E prober.
func NewDallEProber(config Config) *DallEProber {
	return &DallEProber{enabled: config.DallEEnabled}
}

// Provider returns the provider family this prober covers.
func (p *DallEProber) Provider() domain.Provider { return domain.ProviderDallE3 }

// Enabled reports whether the prober is configured to run.
func (p *DallEProber) Enabled() bool { return p.enabled }

// Probe returns one estimate per DALL-E 3 tier, ordered by service id.
func (p *DallEProber) Probe(ctx context.Context) ([]domain.CostEstimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	estimates := make([]domain.CostEstimate, 0, len(dallE3Rates))
	for id, rate := range dallE3Rates {
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
