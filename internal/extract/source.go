package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultFetchTimeout bounds a page fetch by HTTPSource.
	DefaultFetchTimeout = 20 * time.Second

	// maxPageBytes caps how much of a page is read.
	maxPageBytes = 5 << 20
)

// Source produces the assignment shown at a page URL.
type Source interface {
	Extract(ctx context.Context, pageURL string) (Assignment, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, pageURL string) (Assignment, error)

// Extract implements Source.
func (f SourceFunc) Extract(ctx context.Context,
	pageURL string) (Assignment, error) {

	return f(ctx, pageURL)
}

// HTMLSource extracts from markup captured by the caller, typically the
// page's DOM serialized by the browser. The URL is ignored.
type HTMLSource string

// Extract implements Source.
func (s HTMLSource) Extract(_ context.Context, _ string) (Assignment, error) {
	return ExtractHTML(strings.NewReader(string(s)))
}

// HTTPSource fetches the page itself. It only works for pages reachable
// without the user's browser session.
type HTTPSource struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPSource returns an HTTPSource with a bounded client.
func NewHTTPSource(userAgent string) *HTTPSource {
	return &HTTPSource{
		Client:    &http.Client{Timeout: DefaultFetchTimeout},
		UserAgent: userAgent,
	}
}

// Extract implements Source.
func (s *HTTPSource) Extract(ctx context.Context,
	pageURL string) (Assignment, error) {

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, pageURL, nil,
	)
	if err != nil {
		return Assignment{}, fmt.Errorf("build request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Assignment{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Assignment{}, fmt.Errorf("fetch %s: status %d", pageURL,
			resp.StatusCode)
	}

	return ExtractHTML(io.LimitReader(resp.Body, maxPageBytes))
}
