package mcp

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/extract"
	"github.com/roasbeef/canvasrca/internal/kvstore"
	"github.com/roasbeef/canvasrca/internal/notify"
	"github.com/stretchr/testify/require"
)

const (
	pageURL = "https://school.instructure.com/courses/1/assignments/2"

	pageHTML = `<div class="user_content">Build a compiler for a small
language and document the design decisions.</div>`
)

type stubSummarizer struct {
	calls atomic.Int32
}

func (s *stubSummarizer) Summarize(_ context.Context,
	_ extract.Assignment) (string, error) {

	s.calls.Add(1)
	return "<p>compiler</p>", nil
}

type harness struct {
	cache   *cache.Manager
	notif   *notify.Hub
	sum     *stubSummarizer
	session *mcp.ClientSession
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ctx := context.Background()
	h := &harness{
		cache: cache.NewManager(kvstore.NewMemory(), cache.DefaultConfig(),
			nil),
		notif: notify.NewHub(nil),
		sum:   &stubSummarizer{},
	}

	srv, err := NewServer(Config{
		Cache:      h.cache,
		Summarizer: h.sum,
		Notifier:   h.notif,
	})
	require.NoError(t, err)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test",
		Version: "v0.0.1",
	}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})
	h.session = cs

	return h
}

// call invokes a tool and decodes its structured output into out.
func (h *harness) call(t *testing.T, name string, args map[string]any,
	out any) *mcp.CallToolResult {

	t.Helper()

	res, err := h.session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)

	if out != nil && !res.IsError {
		b, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(b, out))
	}

	return res
}

func TestToolsListed(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	res, err := h.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{
		"get_summary", "summarize_page", "run_maintenance",
	}, names)
}

func TestGetSummary(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	var miss SummaryResult
	res := h.call(t, "get_summary", map[string]any{"url": pageURL}, &miss)
	require.False(t, res.IsError)
	require.False(t, miss.Found)

	require.NoError(t, h.cache.Put(context.Background(), pageURL,
		"<p>cached</p>", nil))

	var hit SummaryResult
	h.call(t, "get_summary", map[string]any{"url": pageURL}, &hit)
	require.True(t, hit.Found)
	require.Equal(t, pageURL, hit.URL)
	require.Equal(t, "<p>cached</p>", hit.Summary)

	res = h.call(t, "get_summary", map[string]any{"url": ""}, nil)
	require.True(t, res.IsError)
}

func TestSummarizePage(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	pushes, stop := h.notif.Listen(4, 1)
	defer stop()

	args := map[string]any{"url": pageURL, "html": pageHTML, "tab_id": 4}

	var out SummaryResult
	res := h.call(t, "summarize_page", args, &out)
	require.False(t, res.IsError)
	require.Equal(t, "<p>compiler</p>", out.Summary)
	require.Equal(t, "<p>compiler</p>", (<-pushes).Summary)
	require.True(t, h.cache.Get(context.Background(), pageURL).IsSome())

	// Cached now, so no second provider call.
	h.call(t, "summarize_page", args, &out)
	require.EqualValues(t, 1, h.sum.calls.Load())

	args["force"] = true
	h.call(t, "summarize_page", args, &out)
	require.EqualValues(t, 2, h.sum.calls.Load())
}

func TestSummarizePageErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	res := h.call(t, "summarize_page", map[string]any{
		"url": "https://example.com/", "html": pageHTML,
	}, nil)
	require.True(t, res.IsError)

	res = h.call(t, "summarize_page", map[string]any{
		"url": pageURL, "html": "<p>nothing</p>",
	}, nil)
	require.True(t, res.IsError)
	require.True(t, h.cache.Get(context.Background(), pageURL).IsNone())

	// No markup and no fetcher.
	res = h.call(t, "summarize_page", map[string]any{"url": pageURL}, nil)
	require.True(t, res.IsError)
}

func TestSummarizePageCachedWithoutMarkup(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.cache.Put(context.Background(), pageURL,
		"<p>cached</p>", nil))

	var out SummaryResult
	res := h.call(t, "summarize_page", map[string]any{"url": pageURL}, &out)
	require.False(t, res.IsError)
	require.Equal(t, "<p>cached</p>", out.Summary)
	require.Zero(t, h.sum.calls.Load())
}

func TestRunMaintenance(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.cache.Put(context.Background(), pageURL, "s", nil))

	var report cache.MaintenanceReport
	res := h.call(t, "run_maintenance", map[string]any{}, &report)
	require.False(t, res.IsError)
	require.Equal(t, cache.MaintenanceReport{}, report)
}

func TestNewServerRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := NewServer(Config{})
	require.Error(t, err)
}
