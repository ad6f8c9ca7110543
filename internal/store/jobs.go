package store

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/codeatlas-ai/codeatlas/internal/errors"
)

// JobStore is the job persistence surface the job manager consumes.
type JobStore interface {
	InsertJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	GetJobByRepository(ctx context.Context, repositoryID string) (*Job, error)
	UpdateJob(ctx context.Context, job *Job) error
	DeleteJob(ctx context.Context, id uuid.UUID) error
	FailStaleJobs(ctx context.Context, olderThan time.Duration, message string) (int64, error)
}

var _ JobStore = (*Store)(nil)

const jobColumns = `
	id, repository_id, status, phase, progress, files_total,
	files_processed, chunks_created, error_message,
	started_at, completed_at, created_at, updated_at`

// InsertJob creates a job row. The unique constraint on repository_id
// is the storage-level backstop for the one-job-per-repository
// invariant; a violation surfaces as a conflict error.
func (s *Store) InsertJob(ctx context.Context, job *Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexing_jobs (
			id, repository_id, status, phase, progress, files_total,
			files_processed, chunks_created, error_message, started_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		job.ID, job.RepositoryID, job.Status, job.Phase, job.Progress, job.FilesTotal,
		job.FilesProcessed, job.ChunksCreated, job.ErrorMessage, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.New(errors.ErrCodeJobConflict, "job already exists for repository", err)
		}
		return errors.New(errors.ErrCodeStoreQuery, "insert job", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM indexing_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// GetJobByRepository returns the repository's job, or nil when none
// exists.
func (s *Store) GetJobByRepository(ctx context.Context, repositoryID string) (*Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM indexing_jobs WHERE repository_id = $1`, repositoryID)
	job, err := scanJob(row)
	if err != nil && errors.GetCode(err) == errors.ErrCodeSourceNotFound {
		return nil, nil
	}
	return job, err
}

// UpdateJob writes all mutable fields and bumps updated_at.
func (s *Store) UpdateJob(ctx context.Context, job *Job) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE indexing_jobs SET
			status = $2, phase = $3, progress = $4, files_total = $5,
			files_processed = $6, chunks_created = $7, error_message = $8,
			started_at = $9, completed_at = $10, updated_at = now()
		WHERE id = $1`,
		job.ID, job.Status, job.Phase, job.Progress, job.FilesTotal,
		job.FilesProcessed, job.ChunksCreated, job.ErrorMessage,
		job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return errors.New(errors.ErrCodeStoreQuery, "update job", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeSourceNotFound, "job not found: "+job.ID.String(), nil)
	}
	return nil
}

func (s *Store) DeleteJob(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM indexing_jobs WHERE id = $1`, id); err != nil {
		return errors.New(errors.ErrCodeStoreQuery, "delete job", err)
	}
	return nil
}

// FailStaleJobs marks non-terminal jobs older than the threshold as
// failed. This is the recovery path after a crash mid-run.
func (s *Store) FailStaleJobs(ctx context.Context, olderThan time.Duration, message string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE indexing_jobs SET
			status = 'failed', error_message = $1,
			completed_at = now(), updated_at = now()
		WHERE status NOT IN ('completed','failed','cancelled')
		  AND updated_at < now() - make_interval(secs => $2)`,
		message, olderThan.Seconds(),
	)
	if err != nil {
		return 0, errors.New(errors.ErrCodeStoreQuery, "fail stale jobs", err)
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.RepositoryID, &j.Status, &j.Phase, &j.Progress, &j.FilesTotal,
		&j.FilesProcessed, &j.ChunksCreated, &j.ErrorMessage,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeSourceNotFound, "job not found", err)
		}
		return nil, errors.New(errors.ErrCodeStoreQuery, "scan job row", err)
	}
	return &j, nil
}

func isUniqueViolation(err error) bool {
	type sqlStater interface{ SQLState() string }
	var st sqlStater
	return stderrors.As(err, &st) && st.SQLState() == "23505"
}
