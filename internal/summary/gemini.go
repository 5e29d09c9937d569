package summary

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider summarizes with the Gemini API.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg Config) (*GeminiProvider,
	error) {

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       cfg.model(),
		maxTokens:   int32(cfg.MaxTokens),
		temperature: float32(cfg.Temperature),
	}, nil
}

// Name implements Provider.
func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

// Complete implements Provider.
func (p *GeminiProvider) Complete(ctx context.Context, system,
	user string) (string, error) {

	resp, err := p.client.Models.GenerateContent(
		ctx, p.model, genai.Text(user),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(p.temperature),
			MaxOutputTokens: p.maxTokens,
			SystemInstruction: genai.NewContentFromText(
				system, genai.RoleUser,
			),
		},
	)
	if err != nil {
		return "", mapGeminiError(err)
	}

	return resp.Text(), nil
}

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Status:  apiErr.Code,
			Message: apiErr.Message,
			Err:     err,
		}
	}

	return fmt.Errorf("gemini request: %w", err)
}
