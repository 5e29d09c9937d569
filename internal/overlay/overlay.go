// Package overlay implements the persistent page overlay: it renders the
// cached summary for its page at load and applies pushed updates live.
package overlay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/notify"
)

// Renderer displays summary HTML in the page.
type Renderer interface {
	RenderSummary(summaryHTML string) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(summaryHTML string) error

// RenderSummary implements Renderer.
func (f RendererFunc) RenderSummary(summaryHTML string) error {
	return f(summaryHTML)
}

// Config holds the collaborators of a Controller.
type Config struct {
	Cache    *cache.Manager
	Hub      *notify.Hub
	Renderer Renderer
	Log      *slog.Logger

	// Buffer sizes the push subscription channel. Zero selects
	// notify.DefaultListenBuffer.
	Buffer int
}

// Controller is the overlay of one page in one tab.
type Controller struct {
	cfg Config
	tab notify.TabID
	url string
	log *slog.Logger

	mu       sync.Mutex
	rendered string
}

// New creates an overlay for the page at pageURL in tab.
func New(cfg Config, tab notify.TabID, pageURL string) *Controller {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = notify.DefaultListenBuffer
	}

	return &Controller{
		cfg: cfg,
		tab: tab,
		url: pageURL,
		log: log.With("component", "overlay", "tab", int64(tab)),
	}
}

// Rendered returns the summary HTML last rendered, if any.
func (c *Controller) Rendered() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rendered
}

// Init reads the cached record for the page and renders it when present.
// It reports whether anything was rendered. Nothing is rendered once ctx is
// done, so an overlay replaced during a slow read stays quiet.
func (c *Controller) Init(ctx context.Context) bool {
	rec := c.cfg.Cache.Get(ctx, c.url)
	if rec.IsNone() || ctx.Err() != nil {
		return false
	}

	return c.render(ctx, rec.UnsafeFromSome().Summary)
}

// Handle applies one pushed message. Messages of another type or with an
// empty summary are ignored.
func (c *Controller) Handle(ctx context.Context, msg notify.Message) bool {
	if msg.Type != notify.RenderSummaryType || msg.Summary == "" {
		c.log.DebugContext(ctx, "Ignoring push message", "type", msg.Type)
		return false
	}

	return c.render(ctx, msg.Summary)
}

func (c *Controller) render(ctx context.Context, summaryHTML string) bool {
	if err := c.cfg.Renderer.RenderSummary(summaryHTML); err != nil {
		c.log.WarnContext(ctx, "Unable to render summary", "error", err)
		return false
	}

	c.mu.Lock()
	c.rendered = summaryHTML
	c.mu.Unlock()

	return true
}

// Subscribe registers the overlay with the hub. The returned channel
// carries pushed messages until cancel is called.
func (c *Controller) Subscribe() (<-chan notify.Message, func()) {
	return c.cfg.Hub.Listen(c.tab, c.cfg.Buffer)
}

// Listen handles messages from msgs until ctx is done or msgs is closed.
func (c *Controller) Listen(ctx context.Context, msgs <-chan notify.Message) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.Handle(ctx, msg)
		}
	}
}

// Run subscribes, renders any cached summary, then applies pushes until
// ctx is done. Subscribing first means a write that lands during the
// initial read is still delivered.
func (c *Controller) Run(ctx context.Context) {
	msgs, cancel := c.Subscribe()
	defer cancel()

	c.Init(ctx)
	c.Listen(ctx, msgs)
}
