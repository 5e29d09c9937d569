package commands

import (
	"github.com/spf13/cobra"
)

var (
	// configPath is the YAML config file.
	configPath string

	// storeBackend overrides store.backend.
	storeBackend string

	// dbPath overrides store.path.
	dbPath string

	// logLevel overrides log.level.
	logLevel string

	// maxAgeDays and maxEntries override the retention policy.
	maxAgeDays int
	maxEntries int

	// outputFormat controls output format (text, json).
	outputFormat string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "rca",
	Short: "Assignment summarizer for LMS pages",
	Long: `rca summarizes LMS assignment pages with a language model, caches the
summaries and serves them to the browser popup and page overlays.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(
		&configPath, "config", "",
		"Path to config file (default: ~/.canvasrca/config.yaml)",
	)
	flags.StringVar(
		&storeBackend, "store", "",
		"Store backend: sqlite, redis, memory or disabled",
	)
	flags.StringVar(
		&dbPath, "db", "",
		"Path to SQLite database (default: ~/.canvasrca/rca.db)",
	)
	flags.StringVar(
		&logLevel, "log-level", "",
		"Log level: trace, debug, info, warn, error",
	)
	flags.IntVar(
		&maxAgeDays, "max-age-days", 0,
		"Evict summaries older than this many days (<= 0 disables)",
	)
	flags.IntVar(
		&maxEntries, "max-entries", 0,
		"Keep at most this many summaries (<= 0 disables)",
	)
	flags.StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}
