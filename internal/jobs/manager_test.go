package jobs

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-ai/codeatlas/internal/errors"
	"github.com/codeatlas-ai/codeatlas/internal/store"
)

// memJobStore is an in-memory store.JobStore.
type memJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*store.Job
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[uuid.UUID]*store.Job)}
}

func (m *memJobStore) InsertJob(_ context.Context, job *store.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.RepositoryID == job.RepositoryID {
			return errors.New(errors.ErrCodeJobConflict, "duplicate repository", nil)
		}
	}
	cp := *job
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobStore) GetJob(_ context.Context, id uuid.UUID) (*store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeSourceNotFound, "job not found", nil)
	}
	cp := *j
	return &cp, nil
}

func (m *memJobStore) GetJobByRepository(_ context.Context, repositoryID string) (*store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.RepositoryID == repositoryID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memJobStore) UpdateJob(_ context.Context, job *store.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return errors.New(errors.ErrCodeSourceNotFound, "job not found", nil)
	}
	cp := *job
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobStore) DeleteJob(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

func (m *memJobStore) FailStaleJobs(_ context.Context, olderThan time.Duration, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var n int64
	for _, j := range m.jobs {
		if !j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			j.Status = store.JobFailed
			j.ErrorMessage = message
			now := time.Now().UTC()
			j.CompletedAt = &now
			n++
		}
	}
	return n, nil
}

func newTestManager() (*Manager, *memJobStore) {
	ms := newMemJobStore()
	return NewManager(ms, time.Minute, slog.Default()), ms
}

func TestStartCreatesPendingJob(t *testing.T) {
	m, ms := newTestManager()

	res, err := m.Start(context.Background(), "acme/widgets")
	require.NoError(t, err)
	assert.True(t, res.IsNew)

	job := ms.jobs[res.JobID]
	require.NotNil(t, job)
	assert.Equal(t, store.JobPending, job.Status)
	assert.Nil(t, job.StartedAt)
}

func TestStartReturnsActiveJobUnchanged(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	first, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)
	require.NoError(t, m.Transition(ctx, first.JobID, store.JobFetching, PhaseFetching))

	second, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, store.JobFetching, second.ExistingStatus)

	third, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.False(t, third.IsNew)
	assert.Equal(t, first.JobID, third.JobID)
}

func TestStartReplacesTerminalJob(t *testing.T) {
	m, ms := newTestManager()
	ctx := context.Background()

	first, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)
	require.NoError(t, m.Transition(ctx, first.JobID, store.JobFetching, PhaseFetching))
	require.NoError(t, m.Complete(ctx, first.JobID, 42))

	second, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.True(t, second.IsNew)
	assert.NotEqual(t, first.JobID, second.JobID)
	assert.NotContains(t, ms.jobs, first.JobID, "history is not retained")
}

func TestStartedAtSetOnce(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	res, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)

	require.NoError(t, m.Transition(ctx, res.JobID, store.JobFetching, PhaseFetching))
	job, err := m.Get(ctx, res.JobID)
	require.NoError(t, err)
	require.NotNil(t, job.StartedAt)
	first := *job.StartedAt

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, m.Transition(ctx, res.JobID, store.JobParsing, PhaseParsing))
	job, err = m.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, first, *job.StartedAt)
}

func TestProgressMonotonic(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	res, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)
	require.NoError(t, m.Transition(ctx, res.JobID, store.JobParsing, PhaseParsing))

	require.NoError(t, m.UpdateProgress(ctx, res.JobID, PhaseParsing, 30, 100, 50, 0))
	require.NoError(t, m.UpdateProgress(ctx, res.JobID, PhaseParsing, 20, 100, 40, 0))

	job, err := m.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, 30, job.Progress, "progress never decreases within a run")
}

func TestCompleteForcesProgress(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	res, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)
	require.NoError(t, m.Transition(ctx, res.JobID, store.JobEmbedding, PhaseEmbedding))
	require.NoError(t, m.UpdateProgress(ctx, res.JobID, PhaseEmbedding, 80, 0, 0, 120))

	require.NoError(t, m.Complete(ctx, res.JobID, 120))

	job, err := m.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 120, job.ChunksCreated)
	require.NotNil(t, job.CompletedAt)
}

func TestFailKeepsProgress(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	res, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)
	require.NoError(t, m.Transition(ctx, res.JobID, store.JobEmbedding, PhaseEmbedding))
	require.NoError(t, m.UpdateProgress(ctx, res.JobID, PhaseEmbedding, 70, 0, 0, 0))

	require.NoError(t, m.Fail(ctx, res.JobID, "provider exploded"))

	job, err := m.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.JobFailed, job.Status)
	assert.Equal(t, "provider exploded", job.ErrorMessage)
	assert.Equal(t, 70, job.Progress, "progress forced to 100 only on completed")
}

func TestCancelNonTerminal(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	res, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)
	require.NoError(t, m.Transition(ctx, res.JobID, store.JobFetching, PhaseFetching))

	job, err := m.Cancel(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCancelled, job.Status)

	cancelled, err := m.IsCancelled(ctx, res.JobID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	// Cancelling again is a no-op.
	again, err := m.Cancel(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCancelled, again.Status)
}

func TestCancelDoesNotResurrectCompleted(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	res, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)
	require.NoError(t, m.Transition(ctx, res.JobID, store.JobFetching, PhaseFetching))
	require.NoError(t, m.Complete(ctx, res.JobID, 1))

	job, err := m.Cancel(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCompleted, job.Status)
}

func TestFinishAfterCancelIsNoOp(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	res, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)
	require.NoError(t, m.Transition(ctx, res.JobID, store.JobEmbedding, PhaseEmbedding))
	_, err = m.Cancel(ctx, res.JobID)
	require.NoError(t, err)

	// The pipeline may still report completion for an in-flight run.
	require.NoError(t, m.Complete(ctx, res.JobID, 9))

	job, err := m.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCancelled, job.Status)
}

func TestCleanupStaleJobs(t *testing.T) {
	ms := newMemJobStore()
	m := NewManager(ms, time.Millisecond, slog.Default())
	ctx := context.Background()

	res, err := m.Start(ctx, "acme/widgets")
	require.NoError(t, err)
	require.NoError(t, m.Transition(ctx, res.JobID, store.JobEmbedding, PhaseEmbedding))

	time.Sleep(5 * time.Millisecond)
	n, err := m.CleanupStaleJobs(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	job, err := m.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.JobFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "timed out")
}
