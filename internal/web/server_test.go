package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/extract"
	"github.com/roasbeef/canvasrca/internal/kvstore"
	"github.com/roasbeef/canvasrca/internal/notify"
	"github.com/roasbeef/canvasrca/internal/popup"
	"github.com/stretchr/testify/require"
)

const (
	pageURL = "https://school.instructure.com/courses/1/assignments/2"

	pageHTML = `<html><body>
<div class="user_content">Write a five page essay on the history of the
printing press. See <a href="https://library.example.com/guide">the guide</a>.
</div></body></html>`
)

// stubSummarizer returns a fixed summary, or wraps the extracted content
// when none is set, and counts calls.
type stubSummarizer struct {
	html  string
	calls atomic.Int32
}

func (s *stubSummarizer) Summarize(_ context.Context,
	a extract.Assignment) (string, error) {

	s.calls.Add(1)
	if s.html == "" {
		return "<p>" + a.Content + "</p>", nil
	}

	return s.html, nil
}

type testServer struct {
	srv   *Server
	http  *httptest.Server
	cache *cache.Manager
	notif *notify.Hub
	sum   *stubSummarizer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mgr := cache.NewManager(kvstore.NewMemory(), cache.DefaultConfig(), nil)
	notif := notify.NewHub(nil)
	sum := &stubSummarizer{html: "<p>summary</p>"}

	cfg := DefaultConfig()
	cfg.NavigationDelay = 20 * time.Millisecond

	srv, err := NewServer(cfg, Deps{
		Cache:      mgr,
		Notifier:   notif,
		Summarizer: sum,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter,
			_ *http.Request) {

			_, _ = w.Write([]byte("rca_cache_lookups 1\n"))
		}),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Hub().Stop()
	})

	return &testServer{
		srv:   srv,
		http:  ts,
		cache: mgr,
		notif: notif,
		sum:   sum,
	}
}

func (ts *testServer) postJSON(t *testing.T, path string,
	body any) (*http.Response, []byte) {

	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := ts.http.Client().Post(ts.http.URL+path,
		"application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	return resp, buf.Bytes()
}

func (ts *testServer) dialOverlay(t *testing.T, tab int64,
	page string) *websocket.Conn {

	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.http.URL, "http") +
		"/ws?tab=" + url.QueryEscape(jsonInt(tab)) +
		"&url=" + url.QueryEscape(page)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

type popupEnvelope struct {
	Data PopupResponse `json:"data"`
}

func TestPopupToggleRendersOnOverlay(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	conn := ts.dialOverlay(t, 5, pageURL)
	require.Equal(t, WSMsgTypeConnected, readWS(t, conn).Type)

	// The overlay is listening once its subscription is registered.
	require.Eventually(t, func() bool {
		return ts.notif.SubscriberCount(5) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, body := ts.postJSON(t, "/api/v1/popup/toggle", PopupRequest{
		TabID: 5,
		URL:   pageURL,
		HTML:  pageHTML,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var env popupEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	state := env.Data.State
	require.Equal(t, popup.StatusReady, state.Status)
	require.Equal(t, "<p>summary</p>", state.Summary)
	require.True(t, state.RegenerateVisible)
	require.Empty(t, state.Error)
	require.Len(t, state.Links, 1)
	require.Equal(t, "https://library.example.com/guide", state.Links[0].URL)

	msg := readWS(t, conn)
	require.Equal(t, notify.RenderSummaryType, msg.Type)
	require.Equal(t, "<p>summary</p>", msg.Summary)

	require.True(t, ts.cache.Get(context.Background(), pageURL).IsSome())
	require.Zero(t, ts.srv.openPopups())

	// A second toggle is served from the cache.
	resp, _ = ts.postJSON(t, "/api/v1/popup/toggle", PopupRequest{
		TabID: 5,
		URL:   pageURL,
		HTML:  pageHTML,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, ts.sum.calls.Load())

	resp, _ = ts.postJSON(t, "/api/v1/popup/regenerate", PopupRequest{
		TabID: 5,
		URL:   pageURL,
		HTML:  pageHTML,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, ts.sum.calls.Load())
}

func TestOverlayRendersCachedOnAttach(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	require.NoError(t, ts.cache.Put(context.Background(), pageURL,
		"<p>cached</p>", nil))

	conn := ts.dialOverlay(t, 3, pageURL)
	require.Equal(t, WSMsgTypeConnected, readWS(t, conn).Type)

	msg := readWS(t, conn)
	require.Equal(t, notify.RenderSummaryType, msg.Type)
	require.Equal(t, "<p>cached</p>", msg.Summary)
}

func TestOverlayPing(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	conn := ts.dialOverlay(t, 3, pageURL)
	require.Equal(t, WSMsgTypeConnected, readWS(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	require.Equal(t, WSMsgTypePong, readWS(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "bogus"}))
	require.Equal(t, WSMsgTypeError, readWS(t, conn).Type)
}

func TestOverlayFollowsNavigation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	otherURL := "https://school.instructure.com/courses/1/assignments/3"
	require.NoError(t, ts.cache.Put(context.Background(), otherURL,
		"<p>other</p>", nil))

	conn := ts.dialOverlay(t, 6, pageURL)
	require.Equal(t, WSMsgTypeConnected, readWS(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type": "navigate",
		"url":  otherURL,
	}))

	msg := readWS(t, conn)
	require.Equal(t, notify.RenderSummaryType, msg.Type)
	require.Equal(t, "<p>other</p>", msg.Summary)

	// The replaced overlay unsubscribes.
	require.Eventually(t, func() bool {
		return ts.notif.SubscriberCount(6) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "navigate"}))
	require.Equal(t, WSMsgTypeError, readWS(t, conn).Type)
}

func TestWebSocketRejectsBadParams(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	for _, q := range []string{"", "?tab=abc&url=x", "?tab=0&url=x", "?tab=1"} {
		resp, err := ts.http.Client().Get(ts.http.URL + "/ws" + q)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestPopupNotAssignment(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := ts.postJSON(t, "/api/v1/popup/toggle", PopupRequest{
		TabID: 1,
		URL:   "https://example.com/",
		HTML:  pageHTML,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env popupEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	require.Equal(t, popup.StatusNotLMS, env.Data.State.Status)
	require.False(t, env.Data.State.ToggleEnabled)
	require.Zero(t, ts.sum.calls.Load())
}

func TestPopupExtractionError(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := ts.postJSON(t, "/api/v1/popup/toggle", PopupRequest{
		TabID: 1,
		URL:   pageURL,
		HTML:  "<html><body><p>nothing here</p></body></html>",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env popupEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	require.Equal(t, "No assignment content found", env.Data.State.Error)
	require.False(t, env.Data.State.ToggleChecked)
	require.True(t, ts.cache.Get(context.Background(), pageURL).IsNone())
}

func TestPopupBadRequests(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp, _ := ts.postJSON(t, "/api/v1/popup/toggle", PopupRequest{TabID: 1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	r, err := ts.http.Client().Get(ts.http.URL + "/api/v1/popup/toggle")
	require.NoError(t, err)
	r.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, r.StatusCode)
}

func TestPopupWithoutMarkup(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ctx := context.Background()

	// No markup and no fetcher: a miss fails in the error panel.
	resp, body := ts.postJSON(t, "/api/v1/popup/toggle", PopupRequest{
		TabID: 2,
		URL:   pageURL,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var env popupEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	require.Equal(t, popup.UserMessage(popup.ErrNoSource),
		env.Data.State.Error)
	require.False(t, env.Data.State.ToggleChecked)
	require.Zero(t, ts.sum.calls.Load())

	// A cached summary needs no markup.
	require.NoError(t, ts.cache.Put(ctx, pageURL, "<p>cached</p>", nil))
	resp, body = ts.postJSON(t, "/api/v1/popup/toggle", PopupRequest{
		TabID: 2,
		URL:   pageURL,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	env = popupEnvelope{}
	require.NoError(t, json.Unmarshal(body, &env))
	require.Equal(t, "<p>cached</p>", env.Data.State.Summary)
	require.True(t, env.Data.State.ToggleChecked)
	require.Empty(t, env.Data.State.Error)

	off := false
	resp, body = ts.postJSON(t, "/api/v1/popup/toggle", PopupRequest{
		TabID: 2,
		URL:   pageURL,
		On:    &off,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	env = popupEnvelope{}
	require.NoError(t, json.Unmarshal(body, &env))
	require.False(t, env.Data.State.ToggleChecked)
	require.False(t, env.Data.State.OutputVisible)
	require.Zero(t, ts.sum.calls.Load())
}

// Overlapping requests for one tab share a popup, and each action uses the
// markup of the request that last targeted it.
func TestPopupSessionUsesLatestMarkup(t *testing.T) {
	t.Parallel()

	const (
		otherURL  = "https://school.instructure.com/courses/1/assignments/3"
		otherHTML = `<html><body><div class="user_content">Build a
compiler for a tiny expression language.</div></body></html>`
	)

	ts := newTestServer(t)
	ts.sum.html = ""
	ctx := context.Background()

	reqA := PopupRequest{TabID: 4, URL: pageURL, HTML: pageHTML}
	reqB := PopupRequest{TabID: 4, URL: otherURL, HTML: otherHTML}

	first := ts.srv.acquirePopup(reqA, ts.srv.sourceFor(reqA))
	second := ts.srv.acquirePopup(reqB, ts.srv.sourceFor(reqB))
	require.Same(t, first, second)
	require.Equal(t, otherURL, second.ctrl.Tab().URL)

	require.NoError(t, second.ctrl.Regenerate(ctx))

	ts.srv.releasePopup(reqB.TabID, second)
	ts.srv.releasePopup(reqA.TabID, first)
	require.Zero(t, ts.srv.openPopups())

	got := ts.cache.Get(ctx, otherURL)
	require.True(t, got.IsSome())
	require.Contains(t, got.UnsafeFromSome().Summary, "compiler")
	require.NotContains(t, got.UnsafeFromSome().Summary, "printing press")
	require.True(t, ts.cache.Get(ctx, pageURL).IsNone())
}

func TestSummaryEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	client := ts.http.Client()

	r, err := client.Get(ts.http.URL + "/api/v1/summary?url=" +
		url.QueryEscape(pageURL))
	require.NoError(t, err)
	r.Body.Close()
	require.Equal(t, http.StatusNotFound, r.StatusCode)

	links := []cache.Link{{URL: "https://a.example", Text: "A"}}
	require.NoError(t, ts.cache.Put(context.Background(), pageURL,
		"<p>s</p>", links))

	r, err = client.Get(ts.http.URL + "/api/v1/summary?url=" +
		url.QueryEscape(pageURL))
	require.NoError(t, err)
	defer r.Body.Close()
	require.Equal(t, http.StatusOK, r.StatusCode)

	var env struct {
		Data SummaryResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
	require.Equal(t, pageURL, env.Data.URL)
	require.Equal(t, cache.DeriveKey(pageURL), env.Data.Key)
	require.Equal(t, "<p>s</p>", env.Data.Summary)
	require.Equal(t, links, env.Data.Links)
	require.NotEmpty(t, env.Data.UpdatedAt)

	list, err := client.Get(ts.http.URL + "/api/v1/summaries")
	require.NoError(t, err)
	defer list.Body.Close()

	var all struct {
		Data []SummaryResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(list.Body).Decode(&all))
	require.Len(t, all.Data, 1)

	bad, err := client.Get(ts.http.URL + "/api/v1/summary")
	require.NoError(t, err)
	bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestMaintenanceEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, ts.cache.Put(ctx,
			pageURL+"?v="+jsonInt(int64(i)), "<p>s</p>", nil))
	}

	resp, body := ts.postJSON(t, "/api/v1/maintenance", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Data cache.MaintenanceReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	require.Equal(t, cache.MaintenanceReport{}, env.Data)
	require.Len(t, ts.cache.Records(ctx), 3)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	client := ts.http.Client()

	r, err := client.Get(ts.http.URL + "/api/v1/health")
	require.NoError(t, err)
	defer r.Body.Close()
	require.Equal(t, http.StatusOK, r.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&health))
	require.Equal(t, "ok", health["status"])

	m, err := client.Get(ts.http.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	require.Equal(t, http.StatusOK, m.StatusCode)
}

func TestNewServerRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := NewServer(DefaultConfig(), Deps{})
	require.Error(t, err)
}
