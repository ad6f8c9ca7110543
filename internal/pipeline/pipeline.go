// Package pipeline runs one indexation pass for a repository: fetch,
// filter, chunk, describe, embed, and a two-phase storage swap.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codeatlas-ai/codeatlas/internal/billing"
	"github.com/codeatlas-ai/codeatlas/internal/chunk"
	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/describe"
	"github.com/codeatlas-ai/codeatlas/internal/embed"
	"github.com/codeatlas-ai/codeatlas/internal/errors"
	"github.com/codeatlas-ai/codeatlas/internal/filter"
	"github.com/codeatlas-ai/codeatlas/internal/jobs"
	"github.com/codeatlas-ai/codeatlas/internal/source"
	"github.com/codeatlas-ai/codeatlas/internal/store"
)

// insertBatchSize bounds rows per insert round-trip during finalize.
const insertBatchSize = 100

// Request identifies what to index.
type Request struct {
	RepositoryID string
	Owner        string
	Repo         string
	Branch       string

	// Full forces a full re-index even when stored file hashes would
	// allow an incremental run.
	Full bool
}

// ProgressFunc observes phase transitions and progress.
type ProgressFunc func(phase string, progress int, message string)

// Pipeline wires the indexation stages together.
type Pipeline struct {
	source    source.Source
	embedder  embed.Embedder
	describer *describe.Describer
	chunks    store.ChunkWriter
	jobs      *jobs.Manager
	billing   billing.Recorder
	cfg       config.PipelineConfig
	model     string
	logger    *slog.Logger
}

func New(
	src source.Source,
	embedder embed.Embedder,
	describer *describe.Describer,
	chunks store.ChunkWriter,
	jm *jobs.Manager,
	rec billing.Recorder,
	cfg config.PipelineConfig,
	embeddingModel string,
	logger *slog.Logger,
) *Pipeline {
	if cfg.FetchBatchSize <= 0 {
		cfg.FetchBatchSize = 10
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 50
	}
	if rec == nil {
		rec = billing.Discard{}
	}
	return &Pipeline{
		source:    src,
		embedder:  embedder,
		describer: describer,
		chunks:    chunks,
		jobs:      jm,
		billing:   rec,
		cfg:       cfg,
		model:     embeddingModel,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run executes the pipeline for one job. Any failure is recorded on
// the job before returning; a detected cancellation stops at the next
// batch boundary and leaves the job cancelled.
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID, req Request, onProgress ProgressFunc) error {
	err := p.run(ctx, jobID, req, onProgress)
	if err == nil {
		return nil
	}
	if errors.GetCode(err) == errors.ErrCodeJobCancelled {
		p.logger.Info("indexing run cancelled", "job_id", jobID, "repository", req.RepositoryID)
		return err
	}

	p.logger.Error("indexing run failed",
		"job_id", jobID, "repository", req.RepositoryID, "error", err)
	if failErr := p.jobs.Fail(ctx, jobID, err.Error()); failErr != nil {
		p.logger.Error("failed to record job failure", "job_id", jobID, "error", failErr)
	}
	return err
}

func (p *Pipeline) run(ctx context.Context, jobID uuid.UUID, req Request, onProgress ProgressFunc) error {
	report := func(phase string, progress int, message string) {
		if onProgress != nil {
			onProgress(phase, progress, message)
		}
	}

	// Phase: fetching (0-10).
	if err := p.jobs.Transition(ctx, jobID, store.JobFetching, jobs.PhaseFetching); err != nil {
		return err
	}
	report(jobs.PhaseFetching, 0, "fetching repository structure")

	structure, err := p.source.FetchStructure(ctx, req.Owner, req.Repo, req.Branch)
	if err != nil {
		return err
	}

	files := make([]filter.FileInfo, len(structure.Files))
	for i, f := range structure.Files {
		files[i] = filter.FileInfo{Path: f.Path, Size: int64(f.Size), SHA: f.SHA}
	}
	result := filter.FilterFiles(files, structure.Gitignore)
	if result.Warning != "" {
		p.logger.Warn("filter warning", "repository", req.RepositoryID, "warning", result.Warning)
	}

	// Empty is success-with-zero, not failure.
	if result.Empty {
		report(jobs.PhaseFinalizing, 100, "no indexable files")
		return p.jobs.Complete(ctx, jobID, 0)
	}

	plan, err := p.planRun(ctx, req, result.Included)
	if err != nil {
		return err
	}
	report(jobs.PhaseFetching, 10,
		fmt.Sprintf("%d files selected (%d to process)", len(result.Included), len(plan.process)))
	if err := p.jobs.UpdateProgress(ctx, jobID, jobs.PhaseFetching, 10, len(plan.process), 0, 0); err != nil {
		return err
	}

	if len(plan.process) == 0 && len(plan.deletedPaths) == 0 {
		report(jobs.PhaseFinalizing, 100, "repository unchanged")
		return p.jobs.Complete(ctx, jobID, 0)
	}

	// Phase: parsing (10-50). Content fetch and chunking run together
	// in small parallel batches.
	if err := p.checkCancelled(ctx, jobID); err != nil {
		return err
	}
	if err := p.jobs.Transition(ctx, jobID, store.JobParsing, jobs.PhaseParsing); err != nil {
		return err
	}
	allChunks, err := p.fetchAndChunk(ctx, jobID, req, plan.process, report)
	if err != nil {
		return err
	}
	if err := p.jobs.UpdateProgress(ctx, jobID, jobs.PhaseParsing, 50,
		len(plan.process), len(plan.process), len(allChunks)); err != nil {
		return err
	}

	// Phase: context (50-60), optional quality enhancement.
	withContext := p.describer != nil
	if withContext {
		if err := p.checkCancelled(ctx, jobID); err != nil {
			return err
		}
		report(jobs.PhaseContext, 50, "generating chunk descriptions")
		usage, err := p.describer.DescribeChunks(ctx, allChunks, func(done int) {
			report(jobs.PhaseContext, jobs.BandContext.Progress(done, len(allChunks)),
				fmt.Sprintf("described %d/%d chunks", done, len(allChunks)))
		})
		if err != nil {
			return err
		}
		p.billing.Record(billing.Event{
			Type: billing.UsageLLM, RepositoryID: req.RepositoryID,
			InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens,
		})
	}

	// Phase: embedding (60-95, or 50-95 without context).
	if err := p.checkCancelled(ctx, jobID); err != nil {
		return err
	}
	if err := p.jobs.Transition(ctx, jobID, store.JobEmbedding, jobs.PhaseEmbedding); err != nil {
		return err
	}
	band := jobs.BandEmbedding
	if !withContext {
		band = jobs.BandEmbeddingNoContext
	}
	vectors, err := p.embedChunks(ctx, jobID, req, allChunks, band, report)
	if err != nil {
		return err
	}

	// Phase: finalizing (95-100). Two-phase insert-then-delete swap.
	report(jobs.PhaseFinalizing, 95, "storing chunks")
	if err := p.checkCancelled(ctx, jobID); err != nil {
		return err
	}
	sw := newSwap(p.chunks, req.RepositoryID, plan)
	if err := sw.insert(ctx, buildRows(req.RepositoryID, allChunks, vectors)); err != nil {
		return err
	}
	if err := sw.commit(ctx); err != nil {
		return err
	}

	total, err := p.chunks.CountChunks(ctx, req.RepositoryID)
	if err != nil {
		// Counting is informational only.
		p.logger.Warn("chunk count failed", "repository", req.RepositoryID, "error", err)
		total = len(allChunks)
	}

	report(jobs.PhaseFinalizing, 100, fmt.Sprintf("indexed %d chunks", total))
	return p.jobs.Complete(ctx, jobID, total)
}

// checkCancelled is the cooperative cancellation token, consulted
// before each batch. In-flight calls are never aborted; the run stops
// at the next boundary.
func (p *Pipeline) checkCancelled(ctx context.Context, jobID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return errors.New(errors.ErrCodeJobCancelled, "run context cancelled", err)
	}
	cancelled, err := p.jobs.IsCancelled(ctx, jobID)
	if err != nil {
		return err
	}
	if cancelled {
		return errors.New(errors.ErrCodeJobCancelled, "job cancelled", nil)
	}
	return nil
}

// fetchAndChunk pulls file contents and chunks them, preserving file
// order. Per-file fetch failures are logged and skipped. Each batch
// gets its own parser context.
func (p *Pipeline) fetchAndChunk(ctx context.Context, jobID uuid.UUID, req Request, files []filter.FileInfo, report ProgressFunc) ([]chunk.Chunk, error) {
	perFile := make([][]chunk.Chunk, len(files))
	processed := 0

	for start := 0; start < len(files); start += p.cfg.FetchBatchSize {
		if err := p.checkCancelled(ctx, jobID); err != nil {
			return nil, err
		}
		end := min(start+p.cfg.FetchBatchSize, len(files))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				f := files[i]
				if p.cfg.MaxFileSize > 0 && int64(f.Size) > p.cfg.MaxFileSize {
					p.logger.Debug("skipping oversized file", "path", f.Path, "size", f.Size)
					return nil
				}

				content, err := p.source.FetchFileContent(gctx, req.Owner, req.Repo, f.Path, f.SHA)
				if err != nil {
					p.logger.Warn("file fetch failed, skipping",
						"path", f.Path, "repository", req.RepositoryID, "error", err)
					return nil
				}

				chunker := chunk.NewChunker()
				defer chunker.Close()
				cs, err := chunker.ChunkFile(gctx, f.Path, content.Content)
				if err != nil {
					p.logger.Warn("chunking failed, skipping", "path", f.Path, "error", err)
					return nil
				}
				for j := range cs {
					cs[j].FileHash = f.SHA
				}
				perFile[i] = cs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		processed = end
		progress := jobs.BandParsing.Progress(processed, len(files))
		report(jobs.PhaseParsing, progress, fmt.Sprintf("parsed %d/%d files", processed, len(files)))
		if err := p.jobs.UpdateProgress(ctx, jobID, jobs.PhaseParsing, progress, len(files), processed, 0); err != nil {
			return nil, err
		}
	}

	var all []chunk.Chunk
	for _, cs := range perFile {
		all = append(all, cs...)
	}
	return all, nil
}

// embedChunks produces index-aligned vectors in provider batches with
// an inter-batch delay. A batch failure aborts the run.
func (p *Pipeline) embedChunks(ctx context.Context, jobID uuid.UUID, req Request, allChunks []chunk.Chunk, band jobs.Band, report ProgressFunc) ([][]float32, error) {
	vectors := make([][]float32, 0, len(allChunks))

	for start := 0; start < len(allChunks); start += p.cfg.EmbedBatchSize {
		if err := p.checkCancelled(ctx, jobID); err != nil {
			return nil, err
		}
		end := min(start+p.cfg.EmbedBatchSize, len(allChunks))

		texts := make([]string, 0, end-start)
		for _, c := range allChunks[start:end] {
			texts = append(texts, c.EmbedText())
		}

		res, err := p.embedder.Embed(ctx, texts, embed.ModeDocument)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, res.Vectors...)
		p.billing.Record(billing.Event{
			Type: billing.UsageEmbedding, Model: p.model,
			RepositoryID: req.RepositoryID, InputTokens: res.TotalTokens,
		})

		progress := band.Progress(end, len(allChunks))
		report(jobs.PhaseEmbedding, progress,
			fmt.Sprintf("embedded %d/%d chunks", end, len(allChunks)))
		// chunksCreated already holds the parsed total; the running
		// embedded count would make it shrink mid-run.
		if err := p.jobs.UpdateProgress(ctx, jobID, jobs.PhaseEmbedding, progress, 0, 0, 0); err != nil {
			return nil, err
		}

		if end < len(allChunks) && p.cfg.InterBatchDelay > 0 {
			select {
			case <-time.After(p.cfg.InterBatchDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return vectors, nil
}

func buildRows(repositoryID string, chunks []chunk.Chunk, vectors [][]float32) []store.StoredChunk {
	rows := make([]store.StoredChunk, len(chunks))
	for i, c := range chunks {
		rows[i] = store.StoredChunk{
			RowID:        uuid.New(),
			ChunkID:      c.ID,
			RepositoryID: repositoryID,
			FilePath:     c.FilePath,
			Content:      c.Content,
			Context:      c.Context,
			StartLine:    c.StartLine,
			EndLine:      c.EndLine,
			Language:     c.Language.String(),
			ChunkType:    string(c.Type),
			SymbolName:   c.SymbolName,
			Dependencies: c.Dependencies,
			FileHash:     c.FileHash,
			Embedding:    vectors[i],
		}
	}
	return rows
}
