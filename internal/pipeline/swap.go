package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/codeatlas-ai/codeatlas/internal/errors"
	"github.com/codeatlas-ai/codeatlas/internal/filter"
	"github.com/codeatlas-ai/codeatlas/internal/store"
)

// runPlan is the outcome of incremental diffing: which files to
// process and which stored paths disappeared from the repository.
type runPlan struct {
	full         bool
	process      []filter.FileInfo
	changedPaths []string
	deletedPaths []string
}

// planRun diffs the filtered file set against stored file hashes.
// Diffing is file-grained: a file whose blob SHA matches its stored
// hash keeps all its chunks untouched.
func (p *Pipeline) planRun(ctx context.Context, req Request, included []filter.FileInfo) (*runPlan, error) {
	if req.Full {
		return &runPlan{full: true, process: included}, nil
	}

	stored, err := p.chunks.FileHashes(ctx, req.RepositoryID)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		// Nothing indexed yet; an incremental run degenerates to full.
		return &runPlan{full: true, process: included}, nil
	}

	plan := &runPlan{}
	present := make(map[string]bool, len(included))
	for _, f := range included {
		present[f.Path] = true
		prev, ok := stored[f.Path]
		if !ok {
			plan.process = append(plan.process, f)
			continue
		}
		if prev != f.SHA {
			plan.process = append(plan.process, f)
			plan.changedPaths = append(plan.changedPaths, f.Path)
		}
	}
	for path := range stored {
		if !present[path] {
			plan.deletedPaths = append(plan.deletedPaths, path)
		}
	}

	p.logger.Info("incremental plan",
		"repository", req.RepositoryID,
		"changed_or_added", len(plan.process),
		"deleted", len(plan.deletedPaths))
	return plan, nil
}

// swapState tracks the two-phase replace saga. Delete runs only after
// every insert succeeded; a crash mid-insert leaves old and new rows
// present, and the next successful run's delete step reconciles them.
type swapState int

const (
	swapInserting swapState = iota
	swapInserted
	swapSwapped
)

type swap struct {
	writer       store.ChunkWriter
	repositoryID string
	plan         *runPlan
	state        swapState
	insertedIDs  []uuid.UUID
}

func newSwap(writer store.ChunkWriter, repositoryID string, plan *runPlan) *swap {
	return &swap{writer: writer, repositoryID: repositoryID, plan: plan}
}

// insert writes all new rows in bounded batches. Only after the last
// batch lands does the saga advance to inserted.
func (s *swap) insert(ctx context.Context, rows []store.StoredChunk) error {
	if s.state != swapInserting {
		return errors.New(errors.ErrCodeInternal, "swap insert called out of order", nil)
	}

	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if err := s.writer.InsertChunks(ctx, rows[start:end]); err != nil {
			return err
		}
		for _, r := range rows[start:end] {
			s.insertedIDs = append(s.insertedIDs, r.RowID)
		}
	}

	s.state = swapInserted
	return nil
}

// commit deletes superseded rows. Idempotent: re-running after a crash
// between insert and delete removes the same rows again.
func (s *swap) commit(ctx context.Context) error {
	if s.state != swapInserted {
		return errors.New(errors.ErrCodeInternal, "swap commit before insert completed", nil)
	}

	if s.plan.full {
		if _, err := s.writer.DeleteChunksExcept(ctx, s.repositoryID, s.insertedIDs); err != nil {
			return err
		}
	} else {
		if _, err := s.writer.DeleteFileChunksExcept(ctx, s.repositoryID, s.plan.changedPaths, s.insertedIDs); err != nil {
			return err
		}
		if _, err := s.writer.DeleteChunksForFiles(ctx, s.repositoryID, s.plan.deletedPaths); err != nil {
			return err
		}
	}

	s.state = swapSwapped
	return nil
}
