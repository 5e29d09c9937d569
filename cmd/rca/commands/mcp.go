package commands

import (
	"context"
	"os/signal"
	"syscall"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/roasbeef/canvasrca/internal/build"
	"github.com/roasbeef/canvasrca/internal/extract"
	"github.com/roasbeef/canvasrca/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the summary tools over MCP on stdio",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.summarizer(ctx)
	if err != nil {
		return err
	}

	srv, err := mcp.NewServer(mcp.Config{
		Cache:      a.cache,
		Summarizer: svc,
		Fetcher:    extract.NewHTTPSource(userAgent()),
		Version:    build.Version(),
		Log:        a.log.Logger,
	})
	if err != nil {
		return err
	}

	return srv.Run(ctx, &sdkmcp.StdioTransport{})
}
