package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roasbeef/canvasrca/internal/extract"
	"github.com/roasbeef/canvasrca/internal/popup"
	"github.com/spf13/cobra"
)

var (
	// htmlFile is saved page markup to summarize instead of fetching.
	htmlFile string

	// forceRegenerate skips the cache.
	forceRegenerate bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <url>",
	Short: "Summarize an assignment page",
	Long: `Summarize the assignment at <url>, reusing the cached summary unless
--force is given. The page is fetched unless --html points at saved markup.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVar(&htmlFile, "html", "",
		"Summarize this saved HTML file instead of fetching the page")
	summarizeCmd.Flags().BoolVar(&forceRegenerate, "force", false,
		"Regenerate even if a summary is cached")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	pageURL := args[0]

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	var source extract.Source = extract.NewHTTPSource(userAgent())
	if htmlFile != "" {
		data, err := os.ReadFile(htmlFile)
		if err != nil {
			return fmt.Errorf("read html: %w", err)
		}
		source = extract.HTMLSource(data)
	}

	svc, err := a.summarizer(ctx)
	if err != nil {
		return err
	}

	view := popup.NewStateView()
	ctrl := popup.New(popup.Config{
		Cache:      a.cache,
		Source:     source,
		Summarizer: svc,
		View:       view,
		Log:        a.log.Logger,
	}, popup.TabContext{URL: pageURL})

	if !ctrl.Activate() {
		return fmt.Errorf("%s: %s", pageURL, view.Snapshot().Status)
	}

	if forceRegenerate {
		err = ctrl.Regenerate(ctx)
	} else {
		err = ctrl.Toggle(ctx, true)
	}
	if err != nil {
		return errors.New(popup.UserMessage(err))
	}

	state := view.Snapshot()
	if outputFormat == "json" {
		return outputJSON(state)
	}

	fmt.Println(state.Summary)
	for _, l := range state.Links {
		fmt.Printf("- %s <%s>\n", l.Text, l.URL)
	}

	return nil
}
