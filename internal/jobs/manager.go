// Package jobs owns the indexing-job lifecycle: at most one job per
// repository, a pending→active→terminal state machine, and the stale
// sweep that guarantees eventual termination after a crash.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeatlas-ai/codeatlas/internal/errors"
	"github.com/codeatlas-ai/codeatlas/internal/store"
)

const staleJobMessage = "job timed out: no progress past the stale threshold"

// Manager enforces job-lifecycle invariants over a JobStore.
type Manager struct {
	store      store.JobStore
	staleAfter time.Duration
	logger     *slog.Logger
}

// StartResult reports what Start did. IsNew is false when an active
// job already covered the repository; JobID then names that job.
type StartResult struct {
	JobID          uuid.UUID
	IsNew          bool
	ExistingStatus store.JobStatus
}

func NewManager(js store.JobStore, staleAfter time.Duration, logger *slog.Logger) *Manager {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &Manager{
		store:      js,
		staleAfter: staleAfter,
		logger:     logger.With("component", "jobs"),
	}
}

// Start creates a pending job for the repository. A non-terminal
// existing job is returned as-is instead of creating a duplicate; a
// terminal one is deleted first, since history is not retained.
func (m *Manager) Start(ctx context.Context, repositoryID string) (*StartResult, error) {
	existing, err := m.store.GetJobByRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.Status.Terminal() {
			return &StartResult{
				JobID:          existing.ID,
				IsNew:          false,
				ExistingStatus: existing.Status,
			}, nil
		}
		if err := m.store.DeleteJob(ctx, existing.ID); err != nil {
			return nil, err
		}
	}

	job := &store.Job{
		ID:           uuid.New(),
		RepositoryID: repositoryID,
		Status:       store.JobPending,
	}
	if err := m.store.InsertJob(ctx, job); err != nil {
		// A concurrent Start won the insert race; surface its job.
		if errors.GetCode(err) == errors.ErrCodeJobConflict {
			winner, getErr := m.store.GetJobByRepository(ctx, repositoryID)
			if getErr == nil && winner != nil {
				return &StartResult{JobID: winner.ID, IsNew: false, ExistingStatus: winner.Status}, nil
			}
		}
		return nil, err
	}

	m.logger.Info("indexing job created", "job_id", job.ID, "repository", repositoryID)
	return &StartResult{JobID: job.ID, IsNew: true}, nil
}

// Get returns the job by id.
func (m *Manager) Get(ctx context.Context, jobID uuid.UUID) (*store.Job, error) {
	return m.store.GetJob(ctx, jobID)
}

// Cancel flips a non-terminal job to cancelled. Cancelling a terminal
// job is a no-op; the pipeline notices the flip at its next batch
// boundary.
func (m *Manager) Cancel(ctx context.Context, jobID uuid.UUID) (*store.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	job.Status = store.JobCancelled
	now := time.Now().UTC()
	job.CompletedAt = &now
	if err := m.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	m.logger.Info("indexing job cancelled", "job_id", jobID)
	return job, nil
}

// IsCancelled is the cancellation token the pipeline checks at batch
// boundaries.
func (m *Manager) IsCancelled(ctx context.Context, jobID uuid.UUID) (bool, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.Status == store.JobCancelled, nil
}

// Transition moves the job to an active status, setting startedAt on
// the first activation only.
func (m *Manager) Transition(ctx context.Context, jobID uuid.UUID, status store.JobStatus, phase string) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return errors.New(errors.ErrCodeJobConflict,
			"cannot transition terminal job "+jobID.String(), nil)
	}

	job.Status = status
	job.Phase = phase
	if job.StartedAt == nil {
		now := time.Now().UTC()
		job.StartedAt = &now
	}
	return m.store.UpdateJob(ctx, job)
}

// UpdateProgress records phase progress and counters. Progress is
// monotonic within a run; a lower value than the stored one is
// clamped, never written back.
func (m *Manager) UpdateProgress(ctx context.Context, jobID uuid.UUID, phase string, progress, filesTotal, filesProcessed, chunksCreated int) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	if progress > job.Progress {
		job.Progress = progress
	}
	job.Phase = phase
	if filesTotal > 0 {
		job.FilesTotal = filesTotal
	}
	if filesProcessed > 0 {
		job.FilesProcessed = filesProcessed
	}
	if chunksCreated > 0 {
		job.ChunksCreated = chunksCreated
	}
	return m.store.UpdateJob(ctx, job)
}

// Complete marks the job completed, forcing progress to 100 and
// setting completedAt once.
func (m *Manager) Complete(ctx context.Context, jobID uuid.UUID, chunksCreated int) error {
	return m.finish(ctx, jobID, store.JobCompleted, "", chunksCreated)
}

// Fail marks the job failed with the error message.
func (m *Manager) Fail(ctx context.Context, jobID uuid.UUID, message string) error {
	return m.finish(ctx, jobID, store.JobFailed, message, 0)
}

func (m *Manager) finish(ctx context.Context, jobID uuid.UUID, status store.JobStatus, message string, chunksCreated int) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		// A cancel or the stale sweep got there first.
		return nil
	}

	job.Status = status
	job.ErrorMessage = message
	if status == store.JobCompleted {
		job.Progress = 100
		job.Phase = PhaseFinalizing
		if chunksCreated > 0 {
			job.ChunksCreated = chunksCreated
		}
	}
	if job.CompletedAt == nil {
		now := time.Now().UTC()
		job.CompletedAt = &now
	}
	if err := m.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	m.logger.Info("indexing job finished",
		"job_id", jobID, "status", string(status), "chunks", job.ChunksCreated)
	return nil
}

// CleanupStaleJobs fails every non-terminal job older than the stale
// threshold.
func (m *Manager) CleanupStaleJobs(ctx context.Context) (int64, error) {
	n, err := m.store.FailStaleJobs(ctx, m.staleAfter, staleJobMessage)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Warn("stale jobs failed by sweep", "count", n)
	}
	return n, nil
}

// RunSweeper periodically runs the stale sweep until the context ends.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.CleanupStaleJobs(ctx); err != nil {
				m.logger.Error("stale job sweep failed", "error", err)
			}
		}
	}
}
