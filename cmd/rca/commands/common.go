package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/roasbeef/canvasrca/internal/build"
	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/config"
	"github.com/roasbeef/canvasrca/internal/kvstore"
	"github.com/roasbeef/canvasrca/internal/summary"
	"github.com/spf13/cobra"
)

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg   *config.Config
	log   *build.Logger
	store kvstore.Store
	cache *cache.Manager

	closeStore func() error
}

// loadConfig reads the config file, .env and environment, then applies
// the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store.Backend = storeBackend
	}
	if flags.Changed("db") {
		cfg.Store.Path = dbPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("max-age-days") {
		cfg.Cache.MaxAgeDays = maxAgeDays
	}
	if flags.Changed("max-entries") {
		cfg.Cache.MaxEntries = maxEntries
	}

	return cfg, cfg.Validate()
}

// newApp loads configuration, sets up logging and opens the store. When
// maintain is set, cache maintenance runs once here, at process start.
func newApp(ctx context.Context, cmd *cobra.Command, maintain bool,
	opts ...cache.Option) (*app, error) {

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := build.NewLogger(build.LogConfig{
		Level:   cfg.Log.Level,
		Console: os.Stderr,
		Rotator: cfg.Log.Rotator(),
	})
	if err != nil {
		return nil, err
	}

	store, closeStore, err := cfg.Store.OpenStore(ctx, logger.Logger)
	if err != nil {
		// The daemon keeps working without a store; summaries are just
		// not cached.
		logger.Warn("Store unavailable, caching disabled",
			"backend", cfg.Store.Backend, "error", err)

		store = kvstore.Disabled{}
		closeStore = func() error { return nil }
	}

	mgr := cache.NewManager(store, cfg.Cache, logger.Logger, opts...)

	if maintain {
		report := mgr.RunMaintenance(ctx)
		logger.Debug("Startup maintenance", "expired", report.Expired,
			"overflow", report.Overflow)
	}

	return &app{
		cfg:        cfg,
		log:        logger,
		store:      store,
		cache:      mgr,
		closeStore: closeStore,
	}, nil
}

// summarizer builds the configured summary service.
func (a *app) summarizer(ctx context.Context) (*summary.Service, error) {
	provider, err := summary.NewProvider(ctx, a.cfg.Summary)
	if err != nil {
		return nil, err
	}

	svc := summary.NewService(a.cfg.Summary, provider, a.log.Logger)
	a.log.Info("Summarizer ready", "provider", svc.ProviderName())

	return svc, nil
}

// Close releases the store and the log file.
func (a *app) Close() {
	if err := a.closeStore(); err != nil {
		a.log.Warn("Closing store failed", "error", err)
	}
	_ = a.log.Close()
}

// userAgent identifies page fetches.
func userAgent() string {
	return "rca/" + build.Version()
}

// outputJSON prints v as indented JSON.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
