package httpserver

import "github.com/davidbz/pixelcredit/internal/domain"

// Parameter defaults applied when a request omits a field. None of them is clamped:
// explicit out-of-range values still reach the classifier and fail there.
const (
	defaultFluxSteps = 25
	defaultRatio     = "1:1"
)

// requestParams is the wire shape of the per-provider generation parameters.
type requestParams struct {
	Quality   string `json:"quality,omitempty"`
	Ratio     string `json:"ratio,omitempty"`
	ImageSize string `json:"imageSize,omitempty"`
	Steps     *int   `json:"steps,omitempty"`
}

// billingParams builds the typed params for provider. Unknown providers get nil params;
// the quote path reports them as UnknownProviderError.
func (p requestParams) billingParams(provider string) domain.BillingParams {
	switch domain.Provider(provider) {
	case domain.ProviderDallE3:
		quality := domain.DallE3Quality(p.Quality)
		if quality == "" {
			quality = domain.DallE3QualityStandard
		}
		ratio := p.Ratio
		if ratio == "" {
			ratio = defaultRatio
		}
		return domain.DallE3Params{Quality: quality, Ratio: ratio}
	case domain.ProviderFlux:
		steps := defaultFluxSteps
		if p.Steps != nil {
			steps = *p.Steps
		}
		return domain.FluxParams{Steps: steps}
	case domain.ProviderNanoBanana:
		size := domain.NanoImageSize(p.ImageSize)
		if size == "" {
			size = domain.NanoImageSize1K
		}
		return domain.NanoBananaParams{ImageSize: size}
	case domain.ProviderGPT4oMini:
		return domain.ContextHelperParams{}
	default:
		return nil
	}
}
