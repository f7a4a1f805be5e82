package openai

import "github.com/davidbz/pixelcredit/internal/domain"

const (
	gptModel = "gpt-4o-mini"

	// GPT-4o-mini pricing per 1M tokens
	gptInputCostPer1M  = 0.15
	gptOutputCostPer1M = 0.60

	// Token budget of one image-context call
	gptContextInputTokens  = 200
	gptContextOutputTokens = 1000

	tokensPer1M = 1_000_000.0
)

// DALL-E 3 published per-image rates (USD).
var dallE3Rates = map[domain.ServiceID]float64{
	domain.ServiceDallE3StandardSquare: 0.040,
	domain.ServiceDallE3StandardWide:   0.080,
	domain.ServiceDallE3HDSquare:       0.080,
	domain.ServiceDallE3HDWide:         0.120,
}

// ContextCallCost returns the USD cost of one image-context call.
func ContextCallCost() float64 {
	return gptContextInputTokens*gptInputCostPer1M/tokensPer1M +
		gptContextOutputTokens*gptOutputCostPer1M/tokensPer1M
}
