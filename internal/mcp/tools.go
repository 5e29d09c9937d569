package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/extract"
	"github.com/roasbeef/canvasrca/internal/notify"
	"github.com/roasbeef/canvasrca/internal/popup"
)

// GetSummaryArgs are the arguments for the get_summary tool.
type GetSummaryArgs struct {
	URL string `json:"url" jsonschema:"Exact URL of the assignment page"`
}

// SummaryResult describes a summary.
type SummaryResult struct {
	Found     bool         `json:"found"`
	URL       string       `json:"url"`
	Summary   string       `json:"summary,omitempty"`
	Links     []cache.Link `json:"links,omitempty"`
	UpdatedAt string       `json:"updated_at,omitempty"`
}

func summaryResult(rec cache.Record) SummaryResult {
	res := SummaryResult{
		Found:   true,
		URL:     rec.URL(),
		Summary: rec.Summary,
		Links:   rec.Links,
	}
	if !rec.Timestamp.IsZero() {
		res.UpdatedAt = rec.Timestamp.UTC().Format(time.RFC3339)
	}

	return res
}

func (s *Server) handleGetSummary(ctx context.Context,
	_ *mcp.CallToolRequest, args GetSummaryArgs) (*mcp.CallToolResult,
	SummaryResult, error) {

	if args.URL == "" {
		return nil, SummaryResult{}, errors.New("url is required")
	}

	rec := s.cfg.Cache.Get(ctx, args.URL)
	if rec.IsNone() {
		return nil, SummaryResult{URL: args.URL}, nil
	}

	return nil, summaryResult(rec.UnsafeFromSome()), nil
}

// SummarizePageArgs are the arguments for the summarize_page tool.
type SummarizePageArgs struct {
	URL string `json:"url" jsonschema:"Exact URL of the assignment page"`

	HTML string `json:"html,omitempty" jsonschema:"Page markup; fetched from the URL when omitted"`

	TabID int64 `json:"tab_id,omitempty" jsonschema:"Browser tab whose overlay should render the result"`

	Force bool `json:"force,omitempty" jsonschema:"Regenerate even when a summary is cached"`
}

func (s *Server) handleSummarizePage(ctx context.Context,
	_ *mcp.CallToolRequest, args SummarizePageArgs) (*mcp.CallToolResult,
	SummaryResult, error) {

	if args.URL == "" {
		return nil, SummaryResult{}, errors.New("url is required")
	}

	// Without markup or a fetcher only a cached summary can be returned.
	source := s.cfg.Fetcher
	if args.HTML != "" {
		source = extract.HTMLSource(args.HTML)
	}

	var sender notify.Sender
	if s.cfg.Notifier != nil {
		sender = s.cfg.Notifier
	}

	view := popup.NewStateView()
	ctrl := popup.New(popup.Config{
		Cache:      s.cfg.Cache,
		Source:     source,
		Summarizer: s.cfg.Summarizer,
		Sender:     sender,
		View:       view,
		Recorder:   s.cfg.Recorder,
		Log:        s.log,
	}, popup.TabContext{TabID: notify.TabID(args.TabID), URL: args.URL})

	if !ctrl.Activate() {
		return nil, SummaryResult{}, errors.New(view.Snapshot().Status)
	}

	var err error
	if args.Force {
		err = ctrl.Regenerate(ctx)
	} else {
		err = ctrl.Toggle(ctx, true)
	}
	if err != nil {
		return nil, SummaryResult{}, errors.New(popup.UserMessage(err))
	}

	state := view.Snapshot()

	return nil, SummaryResult{
		Found:   true,
		URL:     args.URL,
		Summary: state.Summary,
		Links:   state.Links,
	}, nil
}

// RunMaintenanceArgs are the arguments for the run_maintenance tool.
type RunMaintenanceArgs struct{}

func (s *Server) handleRunMaintenance(ctx context.Context,
	_ *mcp.CallToolRequest, _ RunMaintenanceArgs) (*mcp.CallToolResult,
	cache.MaintenanceReport, error) {

	report := s.cfg.Cache.RunMaintenance(ctx)
	s.log.InfoContext(ctx, "Maintenance run", "expired", report.Expired,
		"overflow", report.Overflow)

	return nil, report, nil
}
