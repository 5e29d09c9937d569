// Package popup implements the transient popup that shows, generates and
// regenerates the summary for the active tab.
package popup

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/extract"
	"github.com/roasbeef/canvasrca/internal/notify"
	"github.com/roasbeef/canvasrca/internal/summary"
)

const (
	// OutcomeSuccess labels a pipeline that cached a new summary.
	OutcomeSuccess = "success"

	// OutcomeExtractError labels a pipeline that found no assignment.
	OutcomeExtractError = "extract_error"

	// OutcomeSummarizeError labels a pipeline whose provider call
	// failed.
	OutcomeSummarizeError = "summarize_error"

	// OutcomeCancelled labels a pipeline abandoned by its caller.
	OutcomeCancelled = "cancelled"
)

var (
	// ErrBusy is returned when an action arrives while a pipeline is
	// already running. The action is ignored.
	ErrBusy = errors.New("popup: pipeline already running")

	// ErrDisabled is returned when the tab is not a summarizable page.
	ErrDisabled = errors.New("popup: not on an assignment page")

	// ErrNoSource is returned by a pipeline that has no page to extract
	// from.
	ErrNoSource = errors.New("popup: no page content available")
)

// TabContext identifies the tab the popup was opened for.
type TabContext struct {
	TabID notify.TabID `json:"tab_id"`
	URL   string       `json:"url"`
}

// Summarizer produces the rendered summary of an assignment.
type Summarizer interface {
	Summarize(ctx context.Context, a extract.Assignment) (string, error)
}

// Recorder observes pipeline runs.
type Recorder interface {
	RecordPipeline(ctx context.Context, outcome string,
		elapsed time.Duration)
}

// Config holds the collaborators of a Controller.
type Config struct {
	Cache      *cache.Manager
	Source     extract.Source
	Summarizer Summarizer
	Sender     notify.Sender
	View       View
	Recorder   Recorder
	Log        *slog.Logger
}

// Controller drives one popup instance. Its methods are safe for
// concurrent use; at most one pipeline runs at a time.
type Controller struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	tab     TabContext
	source  extract.Source
	enabled bool

	processing atomic.Bool
}

// New creates a controller for tab.
func New(cfg Config, tab TabContext) *Controller {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Controller{
		cfg:    cfg,
		log:    log.With("component", "popup", "tab", int64(tab.TabID)),
		tab:    tab,
		source: cfg.Source,
	}
}

// Tab returns the tab the controller currently targets.
func (c *Controller) Tab() TabContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.tab
}

// Processing reports whether a pipeline is running.
func (c *Controller) Processing() bool {
	return c.processing.Load()
}

// CheckEnvironment evaluates the tab URL and enables or disables the toggle
// accordingly. It returns whether summarizing is possible.
func (c *Controller) CheckEnvironment() bool {
	c.mu.Lock()
	env := CheckURL(c.tab.URL)
	c.enabled = env.Enabled
	c.mu.Unlock()

	if !env.Enabled {
		c.cfg.View.SetToggle(false, false)
		c.cfg.View.SetStatus(env.Status, LevelWarning)
		c.cfg.View.HideOutput()

		return false
	}

	c.cfg.View.SetToggle(true, false)
	c.cfg.View.SetStatus(env.Status, LevelInfo)

	return true
}

// Activate runs the popup's open sequence: the environment check.
func (c *Controller) Activate() bool {
	return c.CheckEnvironment()
}

// OnNavigate retargets the controller at a new URL in the same tab and
// re-checks the environment. The source is kept, so it must read pages by
// URL; use Retarget for a source bound to one page.
func (c *Controller) OnNavigate(pageURL string) bool {
	c.mu.Lock()
	c.tab.URL = pageURL
	c.mu.Unlock()

	c.log.Debug("Tab navigated", "url", pageURL)

	return c.CheckEnvironment()
}

// Retarget points the controller at pageURL, read through src. The URL and
// source change together, so a pipeline always caches content under the URL
// it was extracted for. A nil src keeps the current source when the URL is
// unchanged. The environment is re-checked when the URL changes.
func (c *Controller) Retarget(pageURL string, src extract.Source) bool {
	c.mu.Lock()
	changed := c.tab.URL != pageURL
	c.tab.URL = pageURL
	if src != nil || changed {
		c.source = src
	}
	enabled := c.enabled
	c.mu.Unlock()

	if !changed {
		return enabled
	}

	c.log.Debug("Tab retargeted", "url", pageURL)

	return c.CheckEnvironment()
}

// Toggle handles the summarize switch. Turning it on shows the cached
// summary or, on a miss, runs the pipeline. Turning it off hides the
// output. Pipeline failures have already been shown on the view when they
// are returned.
func (c *Controller) Toggle(ctx context.Context, on bool) error {
	if !on {
		c.cfg.View.SetToggleChecked(false)
		c.cfg.View.HideOutput()

		return nil
	}

	if c.processing.Load() {
		return ErrBusy
	}

	t := c.snapshot()
	if !t.enabled {
		return ErrDisabled
	}
	c.cfg.View.SetToggleChecked(true)

	cached := c.cfg.Cache.Get(ctx, t.tab.URL)
	if cached.IsSome() {
		rec := cached.UnsafeFromSome()

		c.log.DebugContext(ctx, "Showing cached summary", "url", t.tab.URL)
		c.cfg.View.ShowResults(rec.Summary, rec.Links)
		c.cfg.View.ShowRegenerate()

		return nil
	}

	return c.process(ctx, t)
}

// Regenerate runs the pipeline regardless of the cache and overwrites it.
func (c *Controller) Regenerate(ctx context.Context) error {
	if c.processing.Load() {
		return ErrBusy
	}

	t := c.snapshot()
	if !t.enabled {
		return ErrDisabled
	}
	c.cfg.View.SetToggleChecked(true)

	return c.process(ctx, t)
}

// target is the state an action runs against, read in one critical
// section.
type target struct {
	tab     TabContext
	source  extract.Source
	enabled bool
}

func (c *Controller) snapshot() target {
	c.mu.Lock()
	defer c.mu.Unlock()

	return target{tab: c.tab, source: c.source, enabled: c.enabled}
}

// process runs the pipeline under the in-flight guard and reports its
// outcome on the view.
func (c *Controller) process(ctx context.Context, t target) error {
	if !c.processing.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.processing.Store(false)

	c.cfg.View.ShowLoading()
	defer c.cfg.View.HideLoading()

	start := time.Now()
	result := c.runPipeline(ctx, t.tab, t.source)

	_, err := result.Unpack()
	outcome := outcomeOf(err)
	if c.cfg.Recorder != nil {
		c.cfg.Recorder.RecordPipeline(ctx, outcome, time.Since(start))
	}

	if err != nil {
		c.log.WarnContext(ctx, "Summarize pipeline failed",
			"url", t.tab.URL, "outcome", outcome, "error", err)

		c.cfg.View.ShowError(UserMessage(err))
		c.cfg.View.SetToggleChecked(false)

		return err
	}

	c.log.InfoContext(ctx, "Summary generated", "url", t.tab.URL,
		"elapsed", time.Since(start))

	return nil
}

// runPipeline extracts, summarizes, displays, caches and pushes. The cache
// is only written once a summary exists.
func (c *Controller) runPipeline(ctx context.Context, tab TabContext,
	source extract.Source) fn.Result[string] {

	if source == nil {
		return fn.Err[string](&stageError{OutcomeExtractError, ErrNoSource})
	}

	assignment, err := source.Extract(ctx, tab.URL)
	if err == nil && assignment.Content == "" {
		err = extract.ErrNoAssignmentContent
	}
	if err != nil {
		return fn.Err[string](&stageError{OutcomeExtractError, err})
	}

	html, err := c.cfg.Summarizer.Summarize(ctx, assignment)
	if err != nil {
		return fn.Err[string](&stageError{OutcomeSummarizeError, err})
	}

	// The popup was closed while the provider was working.
	if err := ctx.Err(); err != nil {
		return fn.Err[string](err)
	}

	c.cfg.View.ShowResults(html, assignment.Links)

	if err := c.cfg.Cache.Put(ctx, tab.URL, html, assignment.Links); err != nil {
		c.log.WarnContext(ctx, "Unable to cache summary", "error", err)
	}

	if c.cfg.Sender != nil && tab.TabID != 0 {
		c.cfg.Sender.SendToTab(ctx, tab.TabID, notify.RenderSummary(html))
	}

	c.cfg.View.ShowRegenerate()

	return fn.Ok(html)
}

// stageError tags a pipeline failure with the stage that produced it.
type stageError struct {
	outcome string
	err     error
}

func (e *stageError) Error() string {
	return e.err.Error()
}

func (e *stageError) Unwrap() error {
	return e.err
}

func outcomeOf(err error) string {
	var stageErr *stageError
	switch {
	case err == nil:
		return OutcomeSuccess

	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):

		return OutcomeCancelled

	case errors.As(err, &stageErr):
		return stageErr.outcome

	default:
		return OutcomeSummarizeError
	}
}

// UserMessage returns the text shown in the error panel for err.
func UserMessage(err error) string {
	var apiErr *summary.APIError
	switch {
	case errors.Is(err, extract.ErrNoAssignmentContent):
		return "No assignment content found"

	case errors.Is(err, ErrNoSource):
		return "Page content unavailable, reload the page and try again"

	case errors.As(err, &apiErr):
		return apiErr.Error()

	case errors.Is(err, context.Canceled):
		return "Summarization cancelled"

	case errors.Is(err, context.DeadlineExceeded):
		return "Summarization timed out"

	case err == nil || err.Error() == "":
		return "Failed to process assignment"

	default:
		return err.Error()
	}
}
