package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/pixelcredit/internal/domain"
)

func TestClassifier_Classify(t *testing.T) {
	classifier := domain.NewClassifier(domain.DefaultClassifierConfig())

	tests := []struct {
		name     string
		provider domain.Provider
		params   domain.BillingParams
		expected domain.ServiceID
	}{
		{"dalle standard square", domain.ProviderDallE3, domain.DallE3Params{Quality: "standard", Ratio: "1:1"}, domain.ServiceDallE3StandardSquare},
		{"dalle standard landscape", domain.ProviderDallE3, domain.DallE3Params{Quality: "standard", Ratio: "16:9"}, domain.ServiceDallE3StandardWide},
		{"dalle hd portrait", domain.ProviderDallE3, domain.DallE3Params{Quality: "hd", Ratio: "9:16"}, domain.ServiceDallE3HDWide},
		{"dalle hd square", domain.ProviderDallE3, &domain.DallE3Params{Quality: "hd", Ratio: "1:1"}, domain.ServiceDallE3HDSquare},
		{"flux lowest step", domain.ProviderFlux, domain.FluxParams{Steps: 1}, domain.ServiceFluxStandard},
		{"flux standard boundary", domain.ProviderFlux, domain.FluxParams{Steps: 30}, domain.ServiceFluxStandard},
		{"flux first high step", domain.ProviderFlux, domain.FluxParams{Steps: 31}, domain.ServiceFluxHigh},
		{"flux high boundary", domain.ProviderFlux, domain.FluxParams{Steps: 40}, domain.ServiceFluxHigh},
		{"flux first ultra step", domain.ProviderFlux, domain.FluxParams{Steps: 41}, domain.ServiceFluxUltra},
		{"flux max steps", domain.ProviderFlux, &domain.FluxParams{Steps: 50}, domain.ServiceFluxUltra},
		{"nano 1K", domain.ProviderNanoBanana, domain.NanoBananaParams{ImageSize: "1K"}, domain.ServiceNano1K},
		{"nano 2K", domain.ProviderNanoBanana, domain.NanoBananaParams{ImageSize: "2K"}, domain.ServiceNano2K},
		{"nano 4K", domain.ProviderNanoBanana, domain.NanoBananaParams{ImageSize: "4K"}, domain.ServiceNano4K},
		{"context helper", domain.ProviderGPT4oMini, domain.ContextHelperParams{}, domain.ServiceGPT4oMiniContext},
		{"context helper without params", domain.ProviderGPT4oMini, nil, domain.ServiceGPT4oMiniContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := classifier.Classify(tt.provider, tt.params)
			require.NoError(t, err)
			require.Equal(t, tt.expected, id)
		})
	}
}

func TestClassifier_ClassifyRejects(t *testing.T) {
	classifier := domain.NewClassifier(domain.DefaultClassifierConfig())

	t.Run("unknown provider", func(t *testing.T) {
		_, err := classifier.Classify("midjourney", domain.FluxParams{Steps: 10})
		require.Error(t, err)
		require.True(t, domain.IsUnknownProvider(err))
	})

	invalid := []struct {
		name     string
		provider domain.Provider
		params   domain.BillingParams
		field    string
	}{
		{"flux zero steps", domain.ProviderFlux, domain.FluxParams{Steps: 0}, "steps"},
		{"flux too many steps", domain.ProviderFlux, domain.FluxParams{Steps: 51}, "steps"},
		{"dalle unknown quality", domain.ProviderDallE3, domain.DallE3Params{Quality: "ultra", Ratio: "1:1"}, "quality"},
		{"dalle unknown ratio", domain.ProviderDallE3, domain.DallE3Params{Quality: "hd", Ratio: "4:3"}, "ratio"},
		{"nano unknown size", domain.ProviderNanoBanana, domain.NanoBananaParams{ImageSize: "8K"}, "imageSize"},
		{"mismatched params", domain.ProviderFlux, domain.NanoBananaParams{ImageSize: "1K"}, ""},
		{"missing params", domain.ProviderDallE3, nil, ""},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classifier.Classify(tt.provider, tt.params)
			require.Error(t, err)
			require.True(t, domain.IsInvalidParams(err))

			var paramsErr *domain.InvalidParamsError
			require.ErrorAs(t, err, &paramsErr)
			require.Equal(t, tt.field, paramsErr.Field)
		})
	}
}

func TestClassifier_IsPure(t *testing.T) {
	classifier := domain.NewClassifier(domain.DefaultClassifierConfig())
	params := domain.FluxParams{Steps: 35}

	first, err := classifier.Classify(domain.ProviderFlux, params)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := classifier.Classify(domain.ProviderFlux, params)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestNewClassifier_InvalidCutoffsUseDefaults(t *testing.T) {
	classifier := domain.NewClassifier(domain.ClassifierConfig{
		FluxStandardMaxSteps: 40,
		FluxHighMaxSteps:     30,
		FluxMaxSteps:         50,
	})

	id, err := classifier.Classify(domain.ProviderFlux, domain.FluxParams{Steps: 35})
	require.NoError(t, err)
	require.Equal(t, domain.ServiceFluxHigh, id)
}
