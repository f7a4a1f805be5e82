package domain

// BillingParams is the price-relevant part of a generation request. Each provider has its
// own variant; the classifier switches on the concrete type.
type BillingParams interface {
	Provider() Provider
}

// DallE3Quality is the DALL-E 3 quality flag.
type DallE3Quality string

const (
	DallE3QualityStandard DallE3Quality = "standard"
	DallE3QualityHD       DallE3Quality = "hd"
)

// DallE3Params prices a DALL-E 3 image: quality x aspect ratio.
type DallE3Params struct {
	Quality DallE3Quality
	Ratio   string // "1:1", "16:9" or "9:16"
}

// Provider implements BillingParams.
func (DallE3Params) Provider() Provider { return ProviderDallE3 }

// FluxParams prices a Flux image by inference step count.
type FluxParams struct {
	Steps int
}

// Provider implements BillingParams.
func (FluxParams) Provider() Provider { return ProviderFlux }

// NanoImageSize is the Nano Banana output resolution bucket.
type NanoImageSize string

const (
	NanoImageSize1K NanoImageSize = "1K"
	NanoImageSize2K NanoImageSize = "2K"
	NanoImageSize4K NanoImageSize = "4K"
)

// NanoBananaParams prices a Nano Banana image by resolution.
type NanoBananaParams struct {
	ImageSize NanoImageSize
}

// Provider implements BillingParams.
func (NanoBananaParams) Provider() Provider { return ProviderNanoBanana }

// ContextHelperParams prices the fixed-cost GPT-4o-mini context helper.
type ContextHelperParams struct{}

// Provider implements BillingParams.
func (ContextHelperParams) Provider() Provider { return ProviderGPT4oMini }
