package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeatlas-ai/codeatlas/internal/billing"
	"github.com/codeatlas-ai/codeatlas/internal/pipeline"
	"github.com/codeatlas-ai/codeatlas/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var (
		branch string
		full   bool
		plain  bool
	)

	cmd := &cobra.Command{
		Use:   "index <owner>/<repo>",
		Short: "Index a GitHub repository",
		Long: `Index fetches a repository from GitHub, chunks its source files,
embeds each chunk, and stores the result for retrieval.

Re-running against an already-indexed repository only processes files
whose content changed; use --full to force a complete re-index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			owner, repo, ok := strings.Cut(args[0], "/")
			if !ok || owner == "" || repo == "" {
				return fmt.Errorf("repository must be <owner>/<repo>, got %q", args[0])
			}

			cfg, logger, cleanup, err := bootCLI()
			if err != nil {
				return err
			}
			defer cleanup()

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

			result, err := a.jobs.Start(ctx, args[0])
			if err != nil {
				return err
			}
			if !result.IsNew {
				return fmt.Errorf("job %s for %s is already %s; cancel it first or wait for it to finish",
					result.JobID, args[0], result.ExistingStatus)
			}

			renderer := ui.NewRenderer(ui.Config{ForcePlain: plain})
			started := time.Now()

			err = pl.Run(ctx, result.JobID, pipeline.Request{
				RepositoryID: args[0],
				Owner:        owner,
				Repo:         repo,
				Branch:       branch,
				Full:         full,
			}, func(phase string, progress int, message string) {
				renderer.UpdateProgress(ui.ProgressEvent{
					Phase:    phase,
					Progress: progress,
					Message:  message,
				})
			})
			if err != nil {
				renderer.Fail(err.Error())
				return err
			}

			chunks := 0
			if job, err := a.jobs.Get(ctx, result.JobID); err == nil {
				chunks = job.ChunksCreated
			}
			renderer.Complete(ui.CompletionStats{
				Chunks:   chunks,
				Duration: time.Since(started).Round(time.Second),
			})

			for usage, tokens := range collector.Totals() {
				logger.Info("token usage",
					"type", string(usage),
					"input_tokens", tokens[0],
					"output_tokens", tokens[1])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "branch to index (default: the repository's default branch)")
	cmd.Flags().BoolVar(&full, "full", false, "force a full re-index, ignoring stored file hashes")
	cmd.Flags().BoolVar(&plain, "plain", false, "line-based progress output instead of the progress bar")
	return cmd
}
