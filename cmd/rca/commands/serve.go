package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/extract"
	"github.com/roasbeef/canvasrca/internal/notify"
	"github.com/roasbeef/canvasrca/internal/observe"
	"github.com/roasbeef/canvasrca/internal/web"
	"github.com/spf13/cobra"
)

var (
	// listenAddr overrides web.addr.
	listenAddr string

	// allowFetch lets the daemon fetch pages itself when the popup does
	// not post their markup.
	allowFetch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the summary daemon",
	Long: `Run the HTTP and WebSocket daemon. Page overlays attach on /ws, the popup
calls /api/v1/popup/*, and metrics are served on /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "",
		"Address to listen on (default: 127.0.0.1:8787)")
	serveCmd.Flags().BoolVar(&allowFetch, "fetch", false,
		"Fetch pages server-side when no markup is posted")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	metrics, err := observe.NewProvider()
	if err != nil {
		return err
	}
	defer func() {
		_ = metrics.Shutdown(context.Background())
	}()

	a, err := newApp(ctx, cmd, true, cache.WithRecorder(metrics))
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.summarizer(ctx)
	if err != nil {
		return err
	}

	webCfg := a.cfg.Web
	if cmd.Flags().Changed("listen") {
		webCfg.Addr = listenAddr
	}

	deps := web.Deps{
		Cache:      a.cache,
		Notifier:   notify.NewHub(a.log.Logger),
		Summarizer: svc,
		Recorder:   metrics,
		Metrics:    metrics.Handler(),
		Log:        a.log.Logger,
	}
	if allowFetch {
		deps.Fetcher = extract.NewHTTPSource(userAgent())
	}

	srv, err := web.NewServer(&webCfg, deps)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err

	case <-ctx.Done():
		a.log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), 10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil &&
		!errors.Is(err, context.DeadlineExceeded) {

		return err
	}

	return <-errCh
}
