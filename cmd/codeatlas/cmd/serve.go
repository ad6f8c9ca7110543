package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeatlas-ai/codeatlas/internal/billing"
	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/logging"
	"github.com/codeatlas-ai/codeatlas/internal/mcp"
)

// sweepInterval is how often stuck jobs are failed while serving.
const sweepInterval = 5 * time.Minute

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve indexing and search as MCP tools over stdio",
		Long: `Serve exposes search_code, index_repository, job_status, and
cancel_job as Model Context Protocol tools on stdio.

Stdout carries JSON-RPC exclusively: logs are written to the log file
only. Configure it via server.log_file or ATLAS_LOG_FILE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			cleanup, err := logging.SetupMCPMode(cfg.Server.LogLevel)
			if err != nil {
				return err
			}
			defer cleanup()
			logger := slog.Default()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			collector := billing.NewCollector(logger)
			pl, err := a.buildPipeline(collector)
			if err != nil {
				return err
			}
			engine, err := a.buildEngine()
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(ctx, engine, pl, a.jobs, logger)
			if err != nil {
				return err
			}

			go a.jobs.RunSweeper(ctx, sweepInterval)

			return server.Serve(ctx, a.cfg.Server.Transport)
		},
	}
	return cmd
}
