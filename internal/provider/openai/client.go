package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ModelChecker confirms that a model is served by the provider.
type ModelChecker interface {
	CheckModel(ctx context.Context, model string) error
}

// Client wraps the OpenAI SDK client for model lookups.
type Client struct {
	client openai.Client
}

// NewClient creates a new OpenAI SDK client.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	if config.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(config.MaxRetries))
	}

	return &Client{client: openai.NewClient(opts...)}, nil
}

// CheckModel retrieves the model and fails when the API does not serve it.
func (c *Client) CheckModel(ctx context.Context, model string) error {
	m, err := c.client.Models.Get(ctx, model)
	if err != nil {
		return fmt.Errorf("model %s unavailable: %w", model, err)
	}
	if m.ID != model {
		return fmt.Errorf("model %s unavailable: API returned %q", model, m.ID)
	}
	return nil
}
