// Package config loads the daemon and CLI configuration from a YAML file,
// a .env file and the environment, in that order of precedence (lowest
// first).
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/roasbeef/canvasrca/internal/build"
	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/db"
	"github.com/roasbeef/canvasrca/internal/kvstore"
	"github.com/roasbeef/canvasrca/internal/summary"
	"github.com/roasbeef/canvasrca/internal/web"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendDisabled = "disabled"
)

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	// Backend is one of memory, sqlite, redis or disabled.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	Redis kvstore.RedisConfig `yaml:"redis"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Dir holds the rotated log file. Empty disables file logging.
	Dir string `yaml:"dir"`

	// MaxSizeMB is the size at which the log file rotates.
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxFiles is how many rotated files are kept.
	MaxFiles int `yaml:"max_files"`
}

// Config is the complete configuration.
type Config struct {
	Cache   cache.Config   `yaml:"cache"`
	Store   StoreConfig    `yaml:"store"`
	Summary summary.Config `yaml:"summary"`
	Web     web.Config     `yaml:"web"`
	Log     LogConfig      `yaml:"log"`
}

// DefaultDir is the per-user state directory.
func DefaultDir() string {
	return filepath.Dir(db.DefaultDBPath())
}

// DefaultPath is the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Cache: cache.DefaultConfig(),
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    db.DefaultDBPath(),
			Redis: kvstore.RedisConfig{
				Addr:      "localhost:6379",
				Namespace: "canvasrca:",
			},
		},
		Summary: summary.DefaultConfig(),
		Web:     *web.DefaultConfig(),
		Log: LogConfig{
			Level:     "info",
			Dir:       filepath.Join(DefaultDir(), "logs"),
			MaxSizeMB: build.DefaultMaxLogFileSize,
			MaxFiles:  build.DefaultMaxLogFiles,
		},
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file. Variables from a .env file in the working
// directory are loaded without overriding the real environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	return nil
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from environment variables read by lookup.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}

		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n

		return nil
	}

	if err := num("RCA_CACHE_MAX_AGE_DAYS", &c.Cache.MaxAgeDays); err != nil {
		return err
	}
	if err := num("RCA_CACHE_MAX_ENTRIES", &c.Cache.MaxEntries); err != nil {
		return err
	}

	str("RCA_STORE_BACKEND", &c.Store.Backend)
	str("RCA_STORE_PATH", &c.Store.Path)
	str("RCA_REDIS_ADDR", &c.Store.Redis.Addr)
	str("RCA_REDIS_PASSWORD", &c.Store.Redis.Password)

	str("RCA_PROVIDER", &c.Summary.Provider)
	str("RCA_MODEL", &c.Summary.Model)
	str("RCA_BASE_URL", &c.Summary.BaseURL)
	str("RCA_API_KEY", &c.Summary.APIKey)
	if c.Summary.APIKey == "" {
		for _, key := range apiKeyVars(c.Summary.Provider) {
			str(key, &c.Summary.APIKey)
		}
	}

	str("RCA_LISTEN_ADDR", &c.Web.Addr)
	str("RCA_LOG_LEVEL", &c.Log.Level)

	return nil
}

// apiKeyVars lists the conventional key variables of a provider, most
// preferred last.
func apiKeyVars(provider string) []string {
	switch provider {
	case summary.ProviderOpenAI:
		return []string{"OPENAI_API_KEY"}

	case summary.ProviderAnthropic:
		return []string{"ANTHROPIC_API_KEY"}

	case summary.ProviderGemini:
		return []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}

	default:
		return nil
	}
}

// Rotator returns the log file policy, or nil when file logging is off.
func (l LogConfig) Rotator() *build.LogRotatorConfig {
	if l.Dir == "" {
		return nil
	}

	cfg := build.DefaultLogRotatorConfig(l.Dir)
	cfg.MaxLogFiles = l.MaxFiles
	cfg.MaxLogFileSize = l.MaxSizeMB

	return cfg
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendDisabled, BackendRedis:
	case BackendSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path is required for sqlite")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Summary.Provider {
	case summary.ProviderOpenAI, summary.ProviderAnthropic,
		summary.ProviderGemini, summary.ProviderMock:

	default:
		return fmt.Errorf("%w: %q", summary.ErrUnknownProvider,
			c.Summary.Provider)
	}

	return nil
}
