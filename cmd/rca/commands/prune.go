package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Evict expired and overflowing summaries",
	Long: `Run cache maintenance: drop summaries older than --max-age-days, then
keep only the newest --max-entries.`,
	RunE: runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	report := a.cache.RunMaintenance(ctx)
	remaining := len(a.cache.Records(ctx))

	if outputFormat == "json" {
		return outputJSON(map[string]any{
			"expired":   report.Expired,
			"overflow":  report.Overflow,
			"remaining": remaining,
		})
	}

	fmt.Printf("Evicted %d expired and %d overflow summaries, %d remain\n",
		report.Expired, report.Overflow, remaining)

	return nil
}
