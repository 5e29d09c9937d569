// Package mcp exposes the summary cache and pipeline as MCP tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/extract"
	"github.com/roasbeef/canvasrca/internal/notify"
	"github.com/roasbeef/canvasrca/internal/popup"
)

// Server wraps the MCP server with the summary dependencies.
type Server struct {
	server *mcp.Server
	cfg    Config
	log    *slog.Logger
}

// Config holds the collaborators of the MCP server.
type Config struct {
	Cache      *cache.Manager
	Summarizer popup.Summarizer

	// Notifier receives pushes for summaries made for a tab. Optional.
	Notifier *notify.Hub

	// Fetcher extracts pages when no markup is supplied. Optional.
	Fetcher extract.Source

	// Recorder observes pipelines. Optional.
	Recorder popup.Recorder

	// Version is reported to clients.
	Version string

	Log *slog.Logger
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Cache == nil || cfg.Summarizer == nil {
		return nil, errors.New("mcp: cache and summarizer are required")
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "canvasrca",
			Version: version,
		}, nil),
		cfg: cfg,
		log: log.With("component", "mcp"),
	}
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the given transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// Connect serves a single session on transport without blocking.
func (s *Server) Connect(ctx context.Context,
	transport mcp.Transport) (*mcp.ServerSession, error) {

	return s.server.Connect(ctx, transport, nil)
}

// registerTools registers the summary tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_summary",
		Description: "Return the cached summary for an assignment page URL",
	}, s.handleGetSummary)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "summarize_page",
		Description: "Summarize an assignment page, using the cache " +
			"unless regeneration is forced",
	}, s.handleSummarizePage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "run_maintenance",
		Description: "Evict expired and overflowing cached summaries",
	}, s.handleRunMaintenance)
}
