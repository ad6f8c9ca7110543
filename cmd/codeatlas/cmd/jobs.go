package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codeatlas-ai/codeatlas/internal/store"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and cancel indexing jobs",
	}
	cmd.AddCommand(newJobsStatusCmd())
	cmd.AddCommand(newJobsCancelCmd())
	return cmd
}

func newJobsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of an indexing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			jobID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
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

			job, err := a.jobs.Get(ctx, jobID)
			if err != nil {
				return err
			}
			printJob(cmd, job)
			return nil
		},
	}
}

func newJobsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running indexing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			jobID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
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

			job, err := a.jobs.Cancel(ctx, jobID)
			if err != nil {
				return err
			}
			printJob(cmd, job)
			return nil
		},
	}
}

func printJob(cmd *cobra.Command, job *store.Job) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Job:        %s\n", job.ID)
	fmt.Fprintf(w, "Repository: %s\n", job.RepositoryID)
	fmt.Fprintf(w, "Status:     %s\n", job.Status)
	if job.Phase != "" {
		fmt.Fprintf(w, "Phase:      %s (%d%%)\n", job.Phase, job.Progress)
	}
	if job.FilesTotal > 0 {
		fmt.Fprintf(w, "Files:      %d/%d\n", job.FilesProcessed, job.FilesTotal)
	}
	if job.ChunksCreated > 0 {
		fmt.Fprintf(w, "Chunks:     %d\n", job.ChunksCreated)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:      %s\n", job.ErrorMessage)
	}
	if job.StartedAt != nil {
		fmt.Fprintf(w, "Started:    %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Fprintf(w, "Completed:  %s\n", job.CompletedAt.Format(time.RFC3339))
	}
}
