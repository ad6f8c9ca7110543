// Package cmd provides the CLI commands for CodeAtlas.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeatlas-ai/codeatlas/pkg/version"
)

var configPath string

// NewRootCmd creates the root command for the codeatlas CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codeatlas",
		Short: "Repository indexation and hybrid code retrieval",
		Long: `CodeAtlas indexes code repositories into a searchable store:
files are chunked along AST boundaries, enriched with LLM-generated
context, embedded, and served through hybrid vector+keyword retrieval.

Run 'codeatlas serve' to expose search and indexing as MCP tools for
an AI assistant, or use 'index' and 'search' directly.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("codeatlas version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: codeatlas.yaml if present)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newJobsCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
