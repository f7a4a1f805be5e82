package domain

import (
	"fmt"
	"time"
)

// ServiceID identifies a billing tier. The set is closed: tiers are only ever added,
// since stored history references them by name.
type ServiceID string

const (
	ServiceDallE3StandardSquare ServiceID = "dalle3_standard_square"
	ServiceDallE3StandardWide   ServiceID = "dalle3_standard_wide"
	ServiceDallE3HDSquare       ServiceID = "dalle3_hd_square"
	ServiceDallE3HDWide         ServiceID = "dalle3_hd_wide"
	ServiceFluxStandard         ServiceID = "flux_standard"
	ServiceFluxHigh             ServiceID = "flux_high"
	ServiceFluxUltra            ServiceID = "flux_ultra"
	ServiceNano1K               ServiceID = "nano_1k"
	ServiceNano2K               ServiceID = "nano_2k"
	ServiceNano4K               ServiceID = "nano_4k"
	ServiceGPT4oMiniContext     ServiceID = "gpt4o_mini_context"
)

// AllServiceIDs returns every billing tier in declaration order.
func AllServiceIDs() []ServiceID {
	return []ServiceID{
		ServiceDallE3StandardSquare,
		ServiceDallE3StandardWide,
		ServiceDallE3HDSquare,
		ServiceDallE3HDWide,
		ServiceFluxStandard,
		ServiceFluxHigh,
		ServiceFluxUltra,
		ServiceNano1K,
		ServiceNano2K,
		ServiceNano4K,
		ServiceGPT4oMiniContext,
	}
}

// Valid reports whether id belongs to the closed tier set.
func (id ServiceID) Valid() bool {
	for _, known := range AllServiceIDs() {
		if id == known {
			return true
		}
	}
	return false
}

// ParseServiceID validates a raw tier name.
func ParseServiceID(raw string) (ServiceID, error) {
	id := ServiceID(raw)
	if !id.Valid() {
		return "", fmt.Errorf("unknown service id: %q", raw)
	}
	return id, nil
}

// Provider is the tag of an image (or text) generation service family.
type Provider string

const (
	ProviderDallE3     Provider = "openai_dalle3"
	ProviderFlux       Provider = "replicate_flux"
	ProviderNanoBanana Provider = "google_nano_banana"
	ProviderGPT4oMini  Provider = "gpt4o_mini"
)

// AllProviders returns the known provider tags.
func AllProviders() []Provider {
	return []Provider{ProviderDallE3, ProviderFlux, ProviderNanoBanana, ProviderGPT4oMini}
}

// ParseProvider validates a raw provider tag.
func ParseProvider(raw string) (Provider, error) {
	for _, p := range AllProviders() {
		if Provider(raw) == p {
			return p, nil
		}
	}
	return "", &UnknownProviderError{Provider: raw}
}

// CostSource records how a cost figure was obtained.
type CostSource string

const (
	CostSourceAPIAuto    CostSource = "api_auto"
	CostSourceManual     CostSource = "manual"
	CostSourceCalculated CostSource = "calculated"
)

// Valid reports whether s is a known cost source.
func (s CostSource) Valid() bool {
	switch s {
	case CostSourceAPIAuto, CostSourceManual, CostSourceCalculated:
		return true
	default:
		return false
	}
}

// CostRecord is one versioned USD unit cost for a tier, valid over [ValidFrom, ValidTo).
type CostRecord struct {
	ID        string     `json:"id"`
	ServiceID ServiceID  `json:"service_id"`
	CostUSD   float64    `json:"cost_usd"`
	ValidFrom time.Time  `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to"`
	Source    CostSource `json:"source"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Current reports whether the record has an open-ended interval.
func (r CostRecord) Current() bool { return r.ValidTo == nil }

// NextValidFrom returns the timestamp of a new history record: now truncated to microseconds
// (the precision every store keeps), pushed past prev so intervals never collapse.
func NextValidFrom(now time.Time, prev *time.Time) time.Time {
	t := now.UTC().Truncate(time.Microsecond)
	if prev != nil && !t.After(*prev) {
		t = prev.UTC().Add(time.Microsecond)
	}
	return t
}

// PricingCoefficient is one version of the global USD-to-credit markup.
type PricingCoefficient struct {
	ID          string     `json:"id"`
	Coefficient float64    `json:"coefficient"`
	ValidFrom   time.Time  `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Current reports whether the coefficient has an open-ended interval.
func (c PricingCoefficient) Current() bool { return c.ValidTo == nil }

// CurrentServicePricing is a derived row of the current pricing view.
type CurrentServicePricing struct {
	ServiceID            ServiceID  `json:"service_id"`
	CostUSD              float64    `json:"cost_usd"`
	Coefficient          float64    `json:"coefficient"`
	UserPriceUSD         float64    `json:"user_price_usd"`
	CreditsRequired      int64      `json:"credits_required"`
	CostValidFrom        time.Time  `json:"cost_valid_from"`
	CoefficientValidFrom time.Time  `json:"coefficient_valid_from"`
	Source               CostSource `json:"source"`
	Notes                string     `json:"notes,omitempty"`
}

// Freshness describes how current the pricing view is relative to history.
type Freshness struct {
	RefreshedAt  time.Time `json:"refreshed_at"`
	LatestChange time.Time `json:"latest_change"`
	Stale        bool      `json:"stale"`
}

// QuoteSource tells where a quoted credit figure came from.
type QuoteSource string

const (
	QuoteSourceView     QuoteSource = "view"
	QuoteSourceHistory  QuoteSource = "history"
	QuoteSourceFallback QuoteSource = "fallback"
)

// Quote is the credit price of one unit of a request.
type Quote struct {
	Provider        Provider    `json:"provider"`
	ServiceID       ServiceID   `json:"service_id"`
	CreditsRequired int64       `json:"credits_required"`
	Coefficient     float64     `json:"coefficient,omitempty"`
	CostUSD         float64     `json:"cost_usd,omitempty"`
	Source          QuoteSource `json:"source"`
	Fallback        bool        `json:"fallback"`
}

// QuoteRequest is one entry of a batch estimate.
type QuoteRequest struct {
	Provider string
	Params   BillingParams
	Count    int
}

// BatchEntry is the priced (or failed) line of a batch estimate.
type BatchEntry struct {
	Service         string    `json:"service"`
	ServiceID       ServiceID `json:"service_id,omitempty"`
	CreditsPerImage int64     `json:"credits_per_image"`
	Count           int       `json:"count"`
	Subtotal        int64     `json:"subtotal"`
	Fallback        bool      `json:"fallback"`
	Error           string    `json:"error,omitempty"`
}

// BatchQuote is the result of a batch estimate.
type BatchQuote struct {
	TotalCredits int64        `json:"total_credits"`
	Breakdown    []BatchEntry `json:"breakdown"`
	Degraded     bool         `json:"degraded"`
}

// CostEstimate is a prober's view of a tier's current unit cost.
type CostEstimate struct {
	ServiceID ServiceID
	CostUSD   float64
	Source    CostSource
	Notes     string
}

// UpdateStatus is the per-provider outcome of an auto-update run.
type UpdateStatus string

const (
	UpdateStatusChecked UpdateStatus = "checked"
	UpdateStatusUpdated UpdateStatus = "updated"
	UpdateStatusSkipped UpdateStatus = "skipped"
	UpdateStatusError   UpdateStatus = "error"
)

// ProviderUpdate reports what the auto-updater did for one provider.
type ProviderUpdate struct {
	Provider Provider     `json:"provider"`
	Status   UpdateStatus `json:"status"`
	Updated  []ServiceID  `json:"updated,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// UpdateReport is the result of an auto-update run.
type UpdateReport struct {
	Providers []ProviderUpdate `json:"providers"`
	Refreshed bool             `json:"refreshed"`
}

// Statuses flattens the report into provider -> status.
func (r UpdateReport) Statuses() map[string]UpdateStatus {
	out := make(map[string]UpdateStatus, len(r.Providers))
	for _, p := range r.Providers {
		out[string(p.Provider)] = p.Status
	}
	return out
}
