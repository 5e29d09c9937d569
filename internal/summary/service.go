package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roasbeef/canvasrca/internal/extract"
)

// Service turns extracted assignments into rendered HTML summaries.
type Service struct {
	cfg      Config
	provider Provider
	log      *slog.Logger

	// sem limits concurrent provider calls.
	sem chan struct{}
}

// NewService creates a new summary service on top of provider.
func NewService(cfg Config, provider Provider, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}

	return &Service{
		cfg:      cfg,
		provider: provider,
		log:      log.With("component", "summary"),
		sem:      make(chan struct{}, cfg.MaxConcurrent),
	}
}

// ProviderName returns the name of the backing provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Summarize asks the provider for a summary of a and returns it as HTML.
// An empty completion yields NoSummaryText rather than an error.
func (s *Service) Summarize(ctx context.Context,
	a extract.Assignment) (string, error) {

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.provider.Complete(
		ctx, s.cfg.systemPrompt(), buildUserPrompt(a),
	)
	if err != nil {
		s.log.WarnContext(ctx, "Summarization failed",
			"provider", s.provider.Name(), "error", err)
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		text = NoSummaryText
	}

	s.log.DebugContext(ctx, "Summarization complete",
		"provider", s.provider.Name(),
		"content_chars", len(a.Content),
		"links", len(a.Links),
		"elapsed", time.Since(start))

	html, err := FormatHTML(text)
	if err != nil {
		return "", fmt.Errorf("format summary: %w", err)
	}

	return html, nil
}
