package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roasbeef/canvasrca/internal/navigation"
	"github.com/roasbeef/canvasrca/internal/notify"
	"github.com/roasbeef/canvasrca/internal/overlay"
)

// WebSocket message types.
const (
	WSMsgTypeConnected = "connected"
	WSMsgTypePong      = "pong"
	WSMsgTypeError     = "error"
)

// WSMessage is a message sent to an overlay. Summary renders use the push
// wire format {"type":"RCA_RENDER_SUMMARY","summary":...}.
type WSMessage struct {
	Type    string `json:"type"`
	Summary string `json:"summary,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

func renderMessage(summaryHTML string) *WSMessage {
	return &WSMessage{
		Type:    notify.RenderSummaryType,
		Summary: summaryHTML,
	}
}

// Hub keeps the set of attached overlay clients.
type Hub struct {
	log *slog.Logger

	// Attached clients by tab.
	clients map[notify.TabID]map[*WSClient]struct{}
	total   int

	register   chan *WSClient
	unregister chan *WSClient
	count      chan chan int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new WebSocket hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		log:        log,
		clients:    make(map[notify.TabID]map[*WSClient]struct{}),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		count:      make(chan chan int),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop. Client bookkeeping is owned by this
// goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			for _, tabClients := range h.clients {
				for client := range tabClients {
					client.Close()
				}
			}
			h.clients = nil
			return

		case client := <-h.register:
			tab := client.Tab()
			if h.clients[tab] == nil {
				h.clients[tab] = make(map[*WSClient]struct{})
			}
			h.clients[tab][client] = struct{}{}
			h.total++

			h.log.Debug("WebSocket client registered", "tab", int64(tab),
				"total", h.total)

		case client := <-h.unregister:
			tab := client.Tab()
			if _, ok := h.clients[tab][client]; ok {
				delete(h.clients[tab], client)
				if len(h.clients[tab]) == 0 {
					delete(h.clients, tab)
				}
				h.total--
			}
			client.Close()

			h.log.Debug("WebSocket client unregistered",
				"tab", int64(tab), "total", h.total)

		case reply := <-h.count:
			reply <- h.total
		}
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(c *WSClient) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Unregister removes and closes a client.
func (h *Hub) Unregister(c *WSClient) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
		c.Close()
	}
}

// Stop shuts down the hub and closes every client.
func (h *Hub) Stop() {
	h.cancel()
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.ctx.Done():
		return 0
	}
}

// checkOrigin allows same-origin requests, requests without an Origin
// header (extension background pages) and configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := s.upgraderOrigins[origin]; ok {
		return true
	}

	host := r.Host
	return origin == "http://"+host || origin == "https://"+host
}

// handleWebSocket attaches a page overlay at /ws?tab=<id>&url=<page>.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tab, err := strconv.ParseInt(r.URL.Query().Get("tab"), 10, 64)
	if err != nil || tab <= 0 {
		http.Error(w, "Invalid tab", http.StatusBadRequest)
		return
	}
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		http.Error(w, "Missing url", http.StatusBadRequest)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := NewWSClient(s.hub, conn, notify.TabID(tab), pageURL)
	if !s.hub.Register(client) {
		client.Close()
		return
	}

	client.Send(&WSMessage{
		Type: WSMsgTypeConnected,
		Payload: map[string]any{
			"tab_id": tab,
			"url":    pageURL,
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	})

	client.watchNavigation(navigation.NewWatcher(
		pageURL, s.navDelay, func(newURL string) {
			s.navigated(client, newURL)
		},
	))
	s.retarget(client, pageURL)

	go client.writePump()
	go client.readPump()
}

// retarget runs a fresh overlay for pageURL on client, stopping the one it
// replaces. The overlay subscribes before reading the cache, so a summary
// written in between still reaches the page.
func (s *Server) retarget(client *WSClient, pageURL string) {
	ctx, cancel := context.WithCancel(client.Context())
	if prev := client.swapOverlay(pageURL, cancel); prev != nil {
		prev()
	}

	ov := overlay.New(overlay.Config{
		Cache:    s.deps.Cache,
		Hub:      s.deps.Notifier,
		Renderer: client,
		Log:      s.log,
	}, client.Tab(), pageURL)

	go ov.Run(ctx)
}

// navigated follows a settled in-page navigation with the overlay and any
// open popup of the tab.
func (s *Server) navigated(client *WSClient, pageURL string) {
	s.log.Debug("Page navigated", "tab", int64(client.Tab()),
		"url", pageURL)

	s.retarget(client, pageURL)

	s.popupMu.Lock()
	sess, ok := s.popups[client.Tab()]
	s.popupMu.Unlock()

	// Markup posted for the old page does not describe the new one.
	if ok {
		sess.ctrl.Retarget(pageURL, s.deps.Fetcher)
	}
}

// handleIncomingMessage processes messages received from overlays.
func (h *Hub) handleIncomingMessage(client *WSClient, messageType int,
	data []byte) {

	if messageType != websocket.TextMessage {
		return
	}

	var msg struct {
		Type string `json:"type"`
		URL  string `json:"url,omitempty"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		client.Send(&WSMessage{
			Type: WSMsgTypeError,
			Payload: map[string]any{
				"message": "Invalid message format",
			},
		})
		return
	}

	switch msg.Type {
	case "ping":
		client.Send(&WSMessage{
			Type: WSMsgTypePong,
			Payload: map[string]any{
				"time": time.Now().UTC().Format(time.RFC3339),
			},
		})

	case "navigate":
		if msg.URL == "" {
			client.Send(&WSMessage{
				Type: WSMsgTypeError,
				Payload: map[string]any{
					"message": "navigate requires a url",
				},
			})
			return
		}
		client.observeNavigation(msg.URL)

	default:
		client.Send(&WSMessage{
			Type: WSMsgTypeError,
			Payload: map[string]any{
				"message": "Unknown message type: " + msg.Type,
			},
		})
	}
}
