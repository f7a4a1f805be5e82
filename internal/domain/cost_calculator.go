package domain

import "math"

const (
	// creditsPerUSDUnit scales marked-up USD into credits (1 credit = $0.01 of user price).
	creditsPerUSDUnit = 100.0

	// minCredits is the floor for any chargeable operation.
	minCredits int64 = 1

	// creditEpsilon absorbs binary float artefacts such as 0.07*100 = 7.000000000000001
	// before taking the ceiling.
	creditEpsilon = 1e-9

	percentScale = 100.0
)

// CreditsFromCost converts a USD cost to credits: ceil(cost * coefficient * 100), at least 1.
// Estimates and reconciliations both go through it.
func CreditsFromCost(costUSD, coefficient float64) int64 {
	raw := costUSD * coefficient * creditsPerUSDUnit
	if math.IsNaN(raw) || raw <= 0 {
		return minCredits
	}

	if raw >= math.MaxInt64 {
		return math.MaxInt64
	}
	credits := int64(math.Ceil(raw - creditEpsilon))
	if credits < minCredits {
		return minCredits
	}
	return credits
}

// MulCredits returns credits * n, or false when the product does not fit in an int64 or
// either factor is negative.
func MulCredits(credits int64, n int) (int64, bool) {
	if credits < 0 || n < 0 {
		return 0, false
	}
	if n != 0 && credits > math.MaxInt64/int64(n) {
		return 0, false
	}
	return credits * int64(n), true
}

// AddCredits returns a + b, or false when the sum overflows. Both values must be non-negative.
func AddCredits(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// VariancePct returns (actual - estimated) / estimated * 100 rounded to two decimals.
// An estimate of zero yields 0. Positive means the real charge exceeded the estimate.
func VariancePct(estimated, actual float64) float64 {
	if estimated == 0 {
		return 0
	}
	pct := (actual - estimated) / estimated * percentScale
	return math.Round(pct*percentScale) / percentScale
}

// UserPriceUSD is the marked-up price a user pays for one unit.
func UserPriceUSD(costUSD, coefficient float64) float64 {
	return costUSD * coefficient
}

// ProjectPricing derives the current pricing rows from the open cost records and the open
// coefficient. The view and the derive path both call it.
func ProjectPricing(costs []CostRecord, coefficient PricingCoefficient) []CurrentServicePricing {
	rows := make([]CurrentServicePricing, 0, len(costs))
	for _, c := range costs {
		rows = append(rows, projectRow(c, coefficient))
	}
	SortPricing(rows)
	return rows
}

func projectRow(c CostRecord, coefficient PricingCoefficient) CurrentServicePricing {
	return CurrentServicePricing{
		ServiceID:            c.ServiceID,
		CostUSD:              c.CostUSD,
		Coefficient:          coefficient.Coefficient,
		UserPriceUSD:         UserPriceUSD(c.CostUSD, coefficient.Coefficient),
		CreditsRequired:      CreditsFromCost(c.CostUSD, coefficient.Coefficient),
		CostValidFrom:        c.ValidFrom,
		CoefficientValidFrom: coefficient.ValidFrom,
		Source:               c.Source,
		Notes:                c.Notes,
	}
}
