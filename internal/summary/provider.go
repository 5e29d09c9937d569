package summary

import (
	"context"
	"fmt"
)

// Provider completes a single system+user prompt pair.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete returns the raw completion text.
	Complete(ctx context.Context, system, user string) (string, error)
}

// NewProvider builds the provider named by cfg. Without an API key every
// provider falls back to the offline mock.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.Provider == ProviderMock || cfg.APIKey == "" {
		return NewMockProvider(), nil
	}

	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIProvider(cfg), nil

	case ProviderAnthropic:
		return NewAnthropicProvider(cfg), nil

	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
