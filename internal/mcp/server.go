// Package mcp exposes indexation and retrieval as Model Context
// Protocol tools, so an LLM assistant can index repositories and search
// them over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeatlas-ai/codeatlas/internal/errors"
	"github.com/codeatlas-ai/codeatlas/internal/jobs"
	"github.com/codeatlas-ai/codeatlas/internal/pipeline"
	"github.com/codeatlas-ai/codeatlas/internal/search"
	"github.com/codeatlas-ai/codeatlas/pkg/version"
)

// Runner starts a pipeline run for a job. Detached from the concrete
// pipeline so tests can observe launches without running one.
type Runner interface {
	Run(ctx context.Context, jobID uuid.UUID, req pipeline.Request, onProgress pipeline.ProgressFunc) error
}

var _ Runner = (*pipeline.Pipeline)(nil)

// Server bridges MCP clients with the search engine and the indexation
// pipeline.
type Server struct {
	mcp    *mcp.Server
	engine *search.Engine
	runner Runner
	jobs   *jobs.Manager
	logger *slog.Logger

	// runCtx is the lifetime for background indexing runs, detached
	// from the per-request context that launched them.
	runCtx context.Context
}

// NewServer wires the tools. runCtx bounds background indexing runs;
// pass the process context, not a request context.
func NewServer(runCtx context.Context, engine *search.Engine, runner Runner, jm *jobs.Manager, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.ValidationError("search engine is required", nil)
	}
	if jm == nil {
		return nil, errors.ValidationError("job manager is required", nil)
	}

	s := &Server{
		engine: engine,
		runner: runner,
		jobs:   jm,
		logger: logger.With("component", "mcp"),
		runCtx: runCtx,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "CodeAtlas",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Search an indexed repository. Routes identifier queries to symbol lookup, enumeration questions to structural filters, and everything else to hybrid semantic+keyword search. Results carry path:startLine-endLine citations.",
	}, s.searchCodeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_repository",
		Description: "Start indexing a repository in the background. Returns immediately with a job id; poll job_status for progress. Re-indexing an already-indexed repository only processes changed files.",
	}, s.indexRepositoryHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "job_status",
		Description: "Check the status, phase, and progress percentage of an indexing job.",
	}, s.jobStatusHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cancel_job",
		Description: "Cancel a running indexing job. The pipeline stops at the next batch boundary.",
	}, s.cancelJobHandler)

	s.logger.Info("MCP tools registered", "count", 4)
}

// Serve runs the server until the context ends. Only stdio transport
// is supported; logs must already be routed away from stdout.
func (s *Server) Serve(ctx context.Context, transport string) error {
	if transport != "stdio" {
		return errors.ConfigError(fmt.Sprintf("unknown transport %q (supported: stdio)", transport), nil)
	}
	s.logger.Info("starting MCP server", "transport", transport)

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped", "error", err)
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}
