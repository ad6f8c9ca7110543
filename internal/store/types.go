package store

import (
	"time"

	"github.com/google/uuid"
)

// StoredChunk is a persisted code chunk. RowID is generated fresh on
// every insert so a re-index never collides with existing rows;
// ChunkID is the stable content-derived identifier used for
// deduplication at query time.
type StoredChunk struct {
	RowID        uuid.UUID
	ChunkID      string
	RepositoryID string
	FilePath     string
	Content      string
	Context      string
	StartLine    int
	EndLine      int
	Language     string
	ChunkType    string
	SymbolName   string
	Dependencies []string
	FileHash     string
	Embedding    []float32
	CreatedAt    time.Time
}

// RetrievedChunk is a query-time view of a chunk plus a score whose
// meaning depends on the retrieval primitive that produced it.
type RetrievedChunk struct {
	StoredChunk
	Score float64
}

// JobStatus is the lifecycle state of an indexing job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobFetching  JobStatus = "fetching"
	JobParsing   JobStatus = "parsing"
	JobEmbedding JobStatus = "embedding"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Job is one indexing run for a repository. At most one row exists per
// repository; history is not retained.
type Job struct {
	ID             uuid.UUID
	RepositoryID   string
	Status         JobStatus
	Phase          string
	Progress       int
	FilesTotal     int
	FilesProcessed int
	ChunksCreated  int
	ErrorMessage   string
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
