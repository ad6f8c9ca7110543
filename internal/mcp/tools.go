package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeatlas-ai/codeatlas/internal/errors"
	"github.com/codeatlas-ai/codeatlas/internal/pipeline"
	"github.com/codeatlas-ai/codeatlas/internal/search"
	"github.com/codeatlas-ai/codeatlas/internal/store"
)

// SearchCodeInput is the input schema for the search_code tool.
type SearchCodeInput struct {
	Repository string   `json:"repository" jsonschema:"repository identifier, e.g. owner/repo"`
	Query      string   `json:"query" jsonschema:"the search query"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Paths      []string `json:"paths,omitempty" jsonschema:"restrict results to file paths containing any of these fragments"`
	ChunkTypes []string `json:"chunk_types,omitempty" jsonschema:"restrict results to chunk types: function, class, type, config, markdown, generic"`
}

// SearchCodeOutput is the output schema for the search_code tool.
type SearchCodeOutput struct {
	Results    []SearchResultOutput `json:"results"`
	Strategy   string               `json:"strategy" jsonschema:"retrieval strategy used: symbol, metadata, expansion, hybrid, vector"`
	QueryType  string               `json:"query_type" jsonschema:"classified query type"`
	Reranked   bool                 `json:"reranked" jsonschema:"true when a rerank pass reordered the results"`
	TotalFound int                  `json:"total_found" jsonschema:"candidate count before the limit was applied"`
}

// SearchResultOutput is one retrieved chunk with a citation the
// assistant can quote directly.
type SearchResultOutput struct {
	Citation  string  `json:"citation" jsonschema:"source citation in path:startLine-endLine form"`
	FilePath  string  `json:"file_path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Content   string  `json:"content"`
	Context   string  `json:"context,omitempty" jsonschema:"generated natural-language description of the chunk"`
	Language  string  `json:"language,omitempty"`
	ChunkType string  `json:"chunk_type,omitempty"`
	Symbol    string  `json:"symbol,omitempty"`
	Score     float64 `json:"score"`
}

// IndexRepositoryInput is the input schema for the index_repository tool.
type IndexRepositoryInput struct {
	Repository string `json:"repository" jsonschema:"repository identifier, e.g. owner/repo"`
	Branch     string `json:"branch,omitempty" jsonschema:"branch to index, defaults to the repository default branch"`
	Full       bool   `json:"full,omitempty" jsonschema:"force a full re-index instead of an incremental one"`
}

// IndexRepositoryOutput is the output schema for the index_repository tool.
type IndexRepositoryOutput struct {
	JobID          string `json:"job_id"`
	IsNew          bool   `json:"is_new" jsonschema:"false when an active job for this repository already existed"`
	ExistingStatus string `json:"existing_status,omitempty" jsonschema:"status of the pre-existing job when is_new is false"`
}

// JobStatusInput is the input schema for the job_status tool.
type JobStatusInput struct {
	JobID string `json:"job_id"`
}

// JobStatusOutput is the output schema for the job_status tool.
type JobStatusOutput struct {
	JobID          string `json:"job_id"`
	Repository     string `json:"repository"`
	Status         string `json:"status"`
	Phase          string `json:"phase,omitempty"`
	Progress       int    `json:"progress" jsonschema:"percentage 0-100"`
	FilesTotal     int    `json:"files_total,omitempty"`
	FilesProcessed int    `json:"files_processed,omitempty"`
	ChunksCreated  int    `json:"chunks_created,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	StartedAt      string `json:"started_at,omitempty"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// CancelJobInput is the input schema for the cancel_job tool.
type CancelJobInput struct {
	JobID string `json:"job_id"`
}

// CancelJobOutput is the output schema for the cancel_job tool.
type CancelJobOutput struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (s *Server) searchCodeHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchCodeInput) (*mcp.CallToolResult, SearchCodeOutput, error) {
	if input.Repository == "" {
		return nil, SearchCodeOutput{}, errors.ValidationError("repository is required", nil)
	}

	resp, err := s.engine.SmartRetrieve(ctx, input.Repository, input.Query, search.Options{
		Limit:        input.Limit,
		PathPatterns: input.Paths,
		ChunkTypes:   input.ChunkTypes,
	})
	if err != nil {
		return nil, SearchCodeOutput{}, err
	}

	out := SearchCodeOutput{
		Results:    make([]SearchResultOutput, len(resp.Chunks)),
		Strategy:   string(resp.Strategy),
		QueryType:  string(resp.QueryType),
		Reranked:   resp.Reranked,
		TotalFound: resp.TotalFound,
	}
	for i, c := range resp.Chunks {
		out.Results[i] = SearchResultOutput{
			Citation:  fmt.Sprintf("%s:%d-%d", c.FilePath, c.StartLine, c.EndLine),
			FilePath:  c.FilePath,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Content:   c.Content,
			Context:   c.Context,
			Language:  c.Language,
			ChunkType: c.ChunkType,
			Symbol:    c.SymbolName,
			Score:     c.Score,
		}
	}
	return nil, out, nil
}

func (s *Server) indexRepositoryHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexRepositoryInput) (*mcp.CallToolResult, IndexRepositoryOutput, error) {
	owner, repo, err := splitRepository(input.Repository)
	if err != nil {
		return nil, IndexRepositoryOutput{}, err
	}

	result, err := s.jobs.Start(ctx, input.Repository)
	if err != nil {
		return nil, IndexRepositoryOutput{}, err
	}

	out := IndexRepositoryOutput{JobID: result.JobID.String(), IsNew: result.IsNew}
	if !result.IsNew {
		out.ExistingStatus = string(result.ExistingStatus)
		return nil, out, nil
	}

	req := pipeline.Request{
		RepositoryID: input.Repository,
		Owner:        owner,
		Repo:         repo,
		Branch:       input.Branch,
		Full:         input.Full,
	}
	// The run outlives this request; errors land on the job row.
	go func() {
		if runErr := s.runner.Run(s.runCtx, result.JobID, req, nil); runErr != nil {
			s.logger.Warn("background indexing run finished with error",
				"job_id", result.JobID, "repository", input.Repository, "error", runErr)
		}
	}()

	return nil, out, nil
}

func (s *Server) jobStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, input JobStatusInput) (*mcp.CallToolResult, JobStatusOutput, error) {
	jobID, err := parseJobID(input.JobID)
	if err != nil {
		return nil, JobStatusOutput{}, err
	}

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, JobStatusOutput{}, err
	}
	return nil, jobStatusOutput(job), nil
}

func (s *Server) cancelJobHandler(ctx context.Context, _ *mcp.CallToolRequest, input CancelJobInput) (*mcp.CallToolResult, CancelJobOutput, error) {
	jobID, err := parseJobID(input.JobID)
	if err != nil {
		return nil, CancelJobOutput{}, err
	}

	job, err := s.jobs.Cancel(ctx, jobID)
	if err != nil {
		return nil, CancelJobOutput{}, err
	}
	return nil, CancelJobOutput{JobID: job.ID.String(), Status: string(job.Status)}, nil
}

func jobStatusOutput(job *store.Job) JobStatusOutput {
	out := JobStatusOutput{
		JobID:          job.ID.String(),
		Repository:     job.RepositoryID,
		Status:         string(job.Status),
		Phase:          job.Phase,
		Progress:       job.Progress,
		FilesTotal:     job.FilesTotal,
		FilesProcessed: job.FilesProcessed,
		ChunksCreated:  job.ChunksCreated,
		ErrorMessage:   job.ErrorMessage,
	}
	if job.StartedAt != nil {
		out.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		out.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return out
}

func parseJobID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.ValidationError(fmt.Sprintf("invalid job id %q", raw), err)
	}
	return id, nil
}

// splitRepository parses "owner/repo" identifiers.
func splitRepository(repository string) (string, string, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", errors.ValidationError(
			fmt.Sprintf("repository must be owner/repo, got %q", repository), nil)
	}
	return owner, repo, nil
}
