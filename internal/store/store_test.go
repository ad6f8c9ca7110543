package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-ai/codeatlas/internal/config"
)

const testDims = 4

// testStore connects to the database named by ATLAS_TEST_DATABASE_URL
// and skips otherwise, so the suite runs without Postgres present.
func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("ATLAS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ATLAS_TEST_DATABASE_URL not set")
	}

	s, err := New(context.Background(), config.DatabaseConfig{URL: url}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(context.Background(), testDims))
	return s
}

func testChunk(repo, path, symbol string, line int) StoredChunk {
	return StoredChunk{
		RowID:        uuid.New(),
		ChunkID:      fmt.Sprintf("%s-%s-%d", path, symbol, line),
		RepositoryID: repo,
		FilePath:     path,
		Content:      "func " + symbol + "() { return }",
		StartLine:    line,
		EndLine:      line + 3,
		Language:     "go",
		ChunkType:    "function",
		SymbolName:   symbol,
		Dependencies: []string{"fmt"},
		FileHash:     "hash-" + path,
		Embedding:    []float32{0.1, 0.2, 0.3, 0.4},
	}
}

func TestJobStatusTerminal(t *testing.T) {
	for _, s := range []JobStatus{JobCompleted, JobFailed, JobCancelled} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []JobStatus{JobPending, JobFetching, JobParsing, JobEmbedding} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestInsertAndSwapChunks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	repo := "swap-" + uuid.NewString()

	old := []StoredChunk{
		testChunk(repo, "src/a.go", "Alpha", 1),
		testChunk(repo, "src/b.go", "Beta", 10),
	}
	require.NoError(t, s.InsertChunks(ctx, old))

	fresh := []StoredChunk{
		testChunk(repo, "src/a.go", "Alpha", 1),
		testChunk(repo, "src/c.go", "Gamma", 20),
	}
	require.NoError(t, s.InsertChunks(ctx, fresh))

	// Both generations visible between insert and delete.
	n, err := s.CountChunks(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	keep := []uuid.UUID{fresh[0].RowID, fresh[1].RowID}
	deleted, err := s.DeleteChunksExcept(ctx, repo, keep)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	n, err = s.CountChunks(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFileHashesAndFileDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	repo := "hashes-" + uuid.NewString()

	require.NoError(t, s.InsertChunks(ctx, []StoredChunk{
		testChunk(repo, "src/a.go", "Alpha", 1),
		testChunk(repo, "src/a.go", "Alpha2", 30),
		testChunk(repo, "src/b.go", "Beta", 1),
	}))

	hashes, err := s.FileHashes(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"src/a.go": "hash-src/a.go",
		"src/b.go": "hash-src/b.go",
	}, hashes)

	deleted, err := s.DeleteChunksForFiles(ctx, repo, []string{"src/a.go"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}

func TestSearchPrimitives(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	repo := "search-" + uuid.NewString()

	auth := testChunk(repo, "src/auth/login.go", "authenticateUser", 1)
	auth.Content = "func authenticateUser(token string) error { return validate(token) }"
	auth.Embedding = []float32{1, 0, 0, 0}
	other := testChunk(repo, "src/util/strings.go", "padLeft", 1)
	other.Embedding = []float32{0, 1, 0, 0}
	require.NoError(t, s.InsertChunks(ctx, []StoredChunk{auth, other}))

	t.Run("vector", func(t *testing.T) {
		got, err := s.VectorSearch(ctx, repo, []float32{1, 0, 0, 0}, 10)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, "authenticateUser", got[0].SymbolName)
		assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	})

	t.Run("vector score clamped", func(t *testing.T) {
		// Opposite direction: cosine distance 2 would score -1 unclamped.
		got, err := s.VectorSearch(ctx, repo, []float32{-1, 0, 0, 0}, 10)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		for _, c := range got {
			assert.GreaterOrEqual(t, c.Score, 0.0)
		}
	})

	t.Run("lexical", func(t *testing.T) {
		got, err := s.LexicalSearch(ctx, repo, "authenticate token", 10)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, "src/auth/login.go", got[0].FilePath)
	})

	t.Run("symbol", func(t *testing.T) {
		got, err := s.SymbolSearch(ctx, repo, "authenticate", 10)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, "authenticateUser", got[0].SymbolName)
	})

	t.Run("file", func(t *testing.T) {
		got, err := s.FileSearch(ctx, repo, "auth/login", 10)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, "src/auth/login.go", got[0].FilePath)
	})

	t.Run("metadata", func(t *testing.T) {
		got, err := s.MetadataSearch(ctx, repo, MetadataFilter{
			PathPatterns: []string{"src/auth/"},
			ChunkTypes:   []string{"function"},
		}, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 1.0, got[0].Score)
	})
}

func TestJobLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	repo := "jobs-" + uuid.NewString()

	job := &Job{ID: uuid.New(), RepositoryID: repo, Status: JobPending}
	require.NoError(t, s.InsertJob(ctx, job))

	dup := &Job{ID: uuid.New(), RepositoryID: repo, Status: JobPending}
	err := s.InsertJob(ctx, dup)
	require.Error(t, err, "unique repository constraint")

	now := time.Now().UTC()
	job.Status = JobFetching
	job.Phase = "Fetching files"
	job.Progress = 5
	job.StartedAt = &now
	require.NoError(t, s.UpdateJob(ctx, job))

	got, err := s.GetJobByRepository(ctx, repo)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, JobFetching, got.Status)
	assert.Equal(t, 5, got.Progress)
	require.NotNil(t, got.StartedAt)

	require.NoError(t, s.DeleteJob(ctx, job.ID))
	got, err = s.GetJobByRepository(ctx, repo)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFailStaleJobs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	repo := "stale-" + uuid.NewString()

	job := &Job{ID: uuid.New(), RepositoryID: repo, Status: JobEmbedding}
	require.NoError(t, s.InsertJob(ctx, job))

	// A zero threshold treats every non-terminal job as stale.
	n, err := s.FailStaleJobs(ctx, 0, "job timed out")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, got.Status)
	assert.Equal(t, "job timed out", got.ErrorMessage)
	assert.NotNil(t, got.CompletedAt)
}
