package domain

import "fmt"

// ClassifierConfig holds the product-pricing cutoffs used to map parameters to tiers.
type ClassifierConfig struct {
	// FluxStandardMaxSteps is the highest step count billed as flux_standard.
	FluxStandardMaxSteps int
	// FluxHighMaxSteps is the highest step count billed as flux_high.
	FluxHighMaxSteps int
	// FluxMaxSteps is the largest step count the provider accepts.
	FluxMaxSteps int
}

// DefaultClassifierConfig returns the production cutoffs.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		FluxStandardMaxSteps: 30,
		FluxHighMaxSteps:     40,
		FluxMaxSteps:         50,
	}
}

// Classifier maps a provider and its billing parameters to a ServiceID. It is pure.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier. Invalid cutoffs fall back to the defaults.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.FluxStandardMaxSteps <= 0 ||
		cfg.FluxHighMaxSteps <= cfg.FluxStandardMaxSteps ||
		cfg.FluxMaxSteps < cfg.FluxHighMaxSteps {
		cfg = DefaultClassifierConfig()
	}
	return &Classifier{cfg: cfg}
}

// Classify resolves the billing tier. Unknown providers yield *UnknownProviderError and
// out-of-domain parameters yield *InvalidParamsError; nothing is clamped.
func (c *Classifier) Classify(provider Provider, params BillingParams) (ServiceID, error) {
	if _, err := ParseProvider(string(provider)); err != nil {
		return "", err
	}

	if params == nil {
		if provider == ProviderGPT4oMini {
			return ServiceGPT4oMiniContext, nil
		}
		return "", &InvalidParamsError{Provider: provider, Reason: "params are required"}
	}

	if params.Provider() != provider {
		return "", &InvalidParamsError{
			Provider: provider,
			Reason:   fmt.Sprintf("params belong to %s", params.Provider()),
		}
	}

	switch p := params.(type) {
	case DallE3Params:
		return classifyDallE3(p)
	case *DallE3Params:
		return classifyDallE3(*p)
	case FluxParams:
		return c.classifyFlux(p)
	case *FluxParams:
		return c.classifyFlux(*p)
	case NanoBananaParams:
		return classifyNano(p)
	case *NanoBananaParams:
		return classifyNano(*p)
	case ContextHelperParams, *ContextHelperParams:
		return ServiceGPT4oMiniContext, nil
	default:
		return "", &InvalidParamsError{Provider: provider, Reason: fmt.Sprintf("unsupported params type %T", params)}
	}
}

func classifyDallE3(p DallE3Params) (ServiceID, error) {
	var hd bool
	switch p.Quality {
	case DallE3QualityStandard:
	case DallE3QualityHD:
		hd = true
	default:
		return "", &InvalidParamsError{Provider: ProviderDallE3, Field: "quality", Value: p.Quality, Reason: "must be standard or hd"}
	}

	var wide bool
	switch p.Ratio {
	case "1:1":
	case "16:9", "9:16":
		wide = true
	default:
		return "", &InvalidParamsError{Provider: ProviderDallE3, Field: "ratio", Value: p.Ratio, Reason: "must be 1:1, 16:9 or 9:16"}
	}

	switch {
	case hd && wide:
		return ServiceDallE3HDWide, nil
	case hd:
		return ServiceDallE3HDSquare, nil
	case wide:
		return ServiceDallE3StandardWide, nil
	default:
		return ServiceDallE3StandardSquare, nil
	}
}

// classifyFlux buckets by step count. Boundary values belong to the cheaper tier.
func (c *Classifier) classifyFlux(p FluxParams) (ServiceID, error) {
	if p.Steps < 1 || p.Steps > c.cfg.FluxMaxSteps {
		return "", &InvalidParamsError{
			Provider: ProviderFlux,
			Field:    "steps",
			Value:    p.Steps,
			Reason:   fmt.Sprintf("must be between 1 and %d", c.cfg.FluxMaxSteps),
		}
	}

	switch {
	case p.Steps <= c.cfg.FluxStandardMaxSteps:
		return ServiceFluxStandard, nil
	case p.Steps <= c.cfg.FluxHighMaxSteps:
		return ServiceFluxHigh, nil
	default:
		return ServiceFluxUltra, nil
	}
}

func classifyNano(p NanoBananaParams) (ServiceID, error) {
	switch p.ImageSize {
	case NanoImageSize1K:
		return ServiceNano1K, nil
	case NanoImageSize2K:
		return ServiceNano2K, nil
	case NanoImageSize4K:
		return ServiceNano4K, nil
	default:
		return "", &InvalidParamsError{Provider: ProviderNanoBanana, Field: "imageSize", Value: p.ImageSize, Reason: "must be 1K, 2K or 4K"}
	}
}
