package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [url]",
	Short: "Show cached summaries",
	Long: `Show the cached summary for [url], or list every cached summary, newest
first, when no URL is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

// recordView is the JSON shape of a cached record.
type recordView struct {
	URL       string       `json:"url"`
	Summary   string       `json:"summary"`
	Links     []cache.Link `json:"links"`
	UpdatedAt string       `json:"updated_at,omitempty"`
}

func newRecordView(rec cache.Record) recordView {
	v := recordView{
		URL:     rec.URL(),
		Summary: rec.Summary,
		Links:   rec.Links,
	}
	if !rec.Timestamp.IsZero() {
		v.UpdatedAt = rec.Timestamp.Format(time.RFC3339)
	}

	return v
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		rec := a.cache.Get(ctx, args[0])
		if rec.IsNone() {
			return fmt.Errorf("no summary cached for %s", args[0])
		}

		view := newRecordView(rec.UnsafeFromSome())
		if outputFormat == "json" {
			return outputJSON(view)
		}

		fmt.Printf("%s (updated %s)\n\n%s\n", view.URL, view.UpdatedAt,
			view.Summary)
		return nil
	}

	records := a.cache.Records(ctx)
	views := make([]recordView, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		views = append(views, newRecordView(records[i]))
	}

	if outputFormat == "json" {
		return outputJSON(views)
	}

	if len(views) == 0 {
		fmt.Println("No cached summaries")
		return nil
	}
	for _, v := range views {
		fmt.Printf("%-25s %s\n", v.UpdatedAt, v.URL)
	}

	return nil
}
