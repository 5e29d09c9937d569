// Package web provides the HTTP and WebSocket surface of the summary
// daemon: page overlays attach over /ws, popup actions arrive on /api/v1.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/extract"
	"github.com/roasbeef/canvasrca/internal/navigation"
	"github.com/roasbeef/canvasrca/internal/notify"
	"github.com/roasbeef/canvasrca/internal/popup"
)

// Config holds configuration for the web server.
type Config struct {
	Addr string `yaml:"addr"`

	// AllowedOrigins lists extra origins allowed to open a WebSocket,
	// such as the extension's origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// NavigationDelay is how long a page must stay on a new URL before
	// its overlay and popup follow it.
	NavigationDelay time.Duration `yaml:"navigation_delay"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:            "127.0.0.1:8787",
		NavigationDelay: navigation.DefaultDelay,
	}
}

// Deps are the collaborators the server drives.
type Deps struct {
	Cache      *cache.Manager
	Notifier   *notify.Hub
	Summarizer popup.Summarizer

	// Fetcher extracts pages whose markup was not posted with the
	// request. Optional.
	Fetcher extract.Source

	// Recorder observes popup pipelines. Optional.
	Recorder popup.Recorder

	// Metrics serves /metrics. Optional.
	Metrics http.Handler

	Log *slog.Logger
}

// Server is the HTTP server for overlays and popups.
type Server struct {
	deps Deps
	log  *slog.Logger
	hub  *Hub
	mux  *http.ServeMux
	srv  *http.Server
	addr string

	navDelay time.Duration

	upgraderOrigins map[string]struct{}

	popupMu sync.Mutex
	popups  map[notify.TabID]*popupSession
}

// NewServer creates a new web server and starts its WebSocket hub.
func NewServer(cfg *Config, deps Deps) (*Server, error) {
	if deps.Cache == nil || deps.Notifier == nil || deps.Summarizer == nil {
		return nil, errors.New("web: cache, notifier and summarizer " +
			"are required")
	}

	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		deps:            deps,
		log:             log.With("component", "web"),
		mux:             http.NewServeMux(),
		addr:            cfg.Addr,
		navDelay:        cfg.NavigationDelay,
		upgraderOrigins: make(map[string]struct{}),
		popups:          make(map[notify.TabID]*popupSession),
	}
	for _, o := range cfg.AllowedOrigins {
		s.upgraderOrigins[o] = struct{}{}
	}

	s.registerAPIV1Routes()

	s.hub = NewHub(s.log)
	go s.hub.Run()

	s.mux.HandleFunc("/ws", s.handleWebSocket)

	if deps.Metrics != nil {
		s.mux.Handle("/metrics", deps.Metrics)
	}

	return s, nil
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hub returns the WebSocket client registry.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:        s.addr,
		Handler:     s.mux,
		ReadTimeout: 15 * time.Second,

		// Summaries can take as long as the provider timeout.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("Starting web server", "addr", s.addr)

	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	// Stop the WebSocket hub first so overlays detach.
	if s.hub != nil {
		s.hub.Stop()
	}

	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
