package summary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/extract"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeProvider is a scripted Provider.
type fakeProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	system  string
	user    string
	calls   int
	block   chan struct{}
	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, system,
	user string) (string, error) {

	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.system = system
	f.user = user

	return f.reply, f.err
}

var testAssignment = extract.Assignment{
	Content: "Write a research essay on consensus.",
	Links: []cache.Link{
		{URL: "https://raft.github.io", Text: "Raft"},
		{URL: "https://example.org/paxos"},
	},
}

func TestSummarizeFormatsMarkdown(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: "## Overview\n**Bold** point\n\n<script>x()</script>"}
	svc := NewService(DefaultConfig(), p, nil)

	out, err := svc.Summarize(context.Background(), testAssignment)
	require.NoError(t, err)
	require.Contains(t, out, "<h2>Overview</h2>")
	require.Contains(t, out, "<strong>Bold</strong>")
	require.NotContains(t, out, "<script>")

	require.Equal(t, defaultSystemPrompt, p.system)
	require.Contains(t, p.user, testAssignment.Content)
	require.Contains(t, p.user, "- Raft -> https://raft.github.io")
	require.Contains(t, p.user,
		"- https://example.org/paxos -> https://example.org/paxos")
}

func TestSummarizeCustomSystemPrompt(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SystemPrompt = "Be terse."
	p := &fakeProvider{reply: "ok"}

	_, err := NewService(cfg, p, nil).Summarize(
		context.Background(), testAssignment,
	)
	require.NoError(t, err)
	require.Equal(t, "Be terse.", p.system)
}

func TestSummarizeEmptyCompletion(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: "  \n"}
	out, err := NewService(DefaultConfig(), p, nil).Summarize(
		context.Background(), testAssignment,
	)
	require.NoError(t, err)
	require.Equal(t, "<p>No summary generated</p>\n", out)
}

func TestSummarizePropagatesProviderError(t *testing.T) {
	t.Parallel()

	apiErr := &APIError{Status: 429, Message: "Rate limit reached"}
	p := &fakeProvider{err: apiErr}

	_, err := NewService(DefaultConfig(), p, nil).Summarize(
		context.Background(), testAssignment,
	)
	require.ErrorIs(t, err, apiErr)
	require.EqualError(t, err, "Rate limit reached")
}

func TestSummarizeLimitsConcurrency(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxConcurrent = 1
	p := &fakeProvider{reply: "x", block: make(chan struct{})}
	svc := NewService(cfg, p, nil)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Summarize(context.Background(), testAssignment)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(p.block)
	wg.Wait()

	require.EqualValues(t, 1, p.peak.Load())
	require.Equal(t, 3, p.calls)
}

func TestAPIErrorMessage(t *testing.T) {
	t.Parallel()

	require.EqualError(t, &APIError{Status: 500}, "API Error: 500")
	require.EqualError(t,
		&APIError{Status: 401, Message: "Invalid key"}, "Invalid key")

	inner := errors.New("sdk")
	require.ErrorIs(t, &APIError{Err: inner}, inner)
}

func TestMockProvider(t *testing.T) {
	t.Parallel()

	p := NewMockProvider()
	out, err := p.Complete(context.Background(), "",
		"An ESSAY and a Presentation plus a report")
	require.NoError(t, err)
	require.Contains(t, out, "focus on presentation and essay.")

	out, err = p.Complete(context.Background(), "", "nothing known")
	require.NoError(t, err)
	require.Contains(t, out, "focus on academic work.")
}

func TestNewProviderSelection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	p, err := NewProvider(ctx, Config{Provider: ProviderOpenAI})
	require.NoError(t, err)
	require.Equal(t, ProviderMock, p.Name())

	p, err = NewProvider(ctx, Config{Provider: ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, ProviderAnthropic, p.Name())

	p, err = NewProvider(ctx, Config{Provider: ProviderGemini, APIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, ProviderGemini, p.Name())

	_, err = NewProvider(ctx, Config{Provider: "bard", APIKey: "k"})
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestOpenAIProvider(t *testing.T) {
	t.Parallel()

	bodies := make(chan string, 3)
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			bodies <- string(b)

			w.Header().Set("Content-Type", "application/json")
			switch r.Header.Get("Authorization") {
			case "Bearer good":
				fmt.Fprint(w, `{"id":"c1","object":"chat.completion",
"created":1,"model":"gpt-4o-mini","choices":[{"index":0,
"message":{"role":"assistant","content":"**Hi**"},
"finish_reason":"stop"}]}`)

			case "Bearer bad":
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error":{"message":"Incorrect API key",
"type":"invalid_request_error"}}`)

			default:
				w.WriteHeader(http.StatusBadGateway)
				fmt.Fprint(w, `upstream down`)
			}
		},
	))
	defer srv.Close()

	newProvider := func(key string) *OpenAIProvider {
		cfg := DefaultConfig()
		cfg.APIKey = key
		cfg.BaseURL = srv.URL + "/v1"
		return NewOpenAIProvider(cfg)
	}
	ctx := context.Background()

	out, err := newProvider("good").Complete(ctx, "sys", "user")
	require.NoError(t, err)
	require.Equal(t, "**Hi**", out)

	gotBody := <-bodies
	require.Contains(t, gotBody, `"model":"gpt-4o-mini"`)
	require.Contains(t, gotBody, `"max_tokens":825`)
	require.Contains(t, gotBody, `"temperature":0.5`)

	_, err = newProvider("bad").Complete(ctx, "sys", "user")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.EqualError(t, err, "Incorrect API key")

	_, err = newProvider("other").Complete(ctx, "sys", "user")
	require.ErrorAs(t, err, &apiErr)
	require.EqualError(t, err, "API Error: 502")
}

func TestAnthropicProvider(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if r.Header.Get("X-Api-Key") != "good" {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"type":"error","error":{
"type":"authentication_error","message":"invalid x-api-key"}}`)
				return
			}

			fmt.Fprint(w, `{"id":"msg_1","type":"message",
"role":"assistant","model":"claude-haiku-4-5-20251001",
"content":[{"type":"text","text":"Hello "},{"type":"text","text":"there"}],
"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`)
		},
	))
	defer srv.Close()

	newProvider := func(key string) *AnthropicProvider {
		cfg := DefaultConfig()
		cfg.Provider = ProviderAnthropic
		cfg.APIKey = key
		cfg.BaseURL = srv.URL + "/"
		return NewAnthropicProvider(cfg)
	}
	ctx := context.Background()

	out, err := newProvider("good").Complete(ctx, "sys", "user")
	require.NoError(t, err)
	require.Equal(t, "Hello there", out)

	_, err = newProvider("bad").Complete(ctx, "sys", "user")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.EqualError(t, err, "invalid x-api-key")
}

func TestMapGeminiError(t *testing.T) {
	t.Parallel()

	err := mapGeminiError(fmt.Errorf("call: %w", genai.APIError{
		Code: 403, Message: "API key not valid", Status: "PERMISSION_DENIED",
	}))
	require.EqualError(t, err, "API key not valid")

	err = mapGeminiError(genai.APIError{Code: 503})
	require.EqualError(t, err, "API Error: 503")

	err = mapGeminiError(errors.New("dial tcp: refused"))
	require.True(t, strings.HasPrefix(err.Error(), "gemini request:"))
}
