package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/BalansCollective/weavemesh-git/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients detect conflicts, record resolutions, and query
tracked repositories. Configure a client with:

  {
    "mcpServers": {
      "weavegit": { "command": "weavegit", "args": ["mcp"] }
    }
  }

Available tools: weavegit_detect_conflicts, weavegit_conflict_statistics,
weavegit_record_resolution, weavegit_learn_patterns,
weavegit_track_repository, weavegit_list_repositories,
weavegit_rescan_repository, weavegit_repository_health`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun() error {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	s, err := getStore()
	if err != nil {
		return err
	}
	d, err := newDetector(ctx, s)
	if err != nil {
		return err
	}
	t, err := newTracker(ctx, s)
	if err != nil {
		return err
	}

	return mcp.NewServer(d, t, buildVersion).ServeStdio(ctx)
}
