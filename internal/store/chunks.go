package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/codeatlas-ai/codeatlas/internal/errors"
)

// ChunkWriter is the persistence surface the pipeline writes through.
type ChunkWriter interface {
	InsertChunks(ctx context.Context, chunks []StoredChunk) error
	DeleteChunksExcept(ctx context.Context, repositoryID string, keepRowIDs []uuid.UUID) (int64, error)
	DeleteChunksForFiles(ctx context.Context, repositoryID string, paths []string) (int64, error)
	DeleteFileChunksExcept(ctx context.Context, repositoryID string, paths []string, keepRowIDs []uuid.UUID) (int64, error)
	FileHashes(ctx context.Context, repositoryID string) (map[string]string, error)
	CountChunks(ctx context.Context, repositoryID string) (int, error)
}

var _ ChunkWriter = (*Store)(nil)

// InsertChunks writes a batch of chunks in one implicit transaction.
// Callers assign fresh RowIDs; inserting never touches existing rows,
// which is what keeps a reader from observing an empty repository
// mid-reindex.
func (s *Store) InsertChunks(ctx context.Context, chunks []StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const q = `
		INSERT INTO code_chunks (
			id, chunk_id, repository_id, file_path, content, context,
			start_line, end_line, language, chunk_type, symbol_name,
			dependencies, file_hash, embedding
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	for _, c := range chunks {
		var emb any
		if c.Embedding != nil {
			emb = pgvector.NewVector(c.Embedding)
		}
		batch.Queue(q,
			c.RowID, c.ChunkID, c.RepositoryID, c.FilePath, c.Content, c.Context,
			c.StartLine, c.EndLine, c.Language, c.ChunkType, c.SymbolName,
			c.Dependencies, c.FileHash, emb,
		)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.New(errors.ErrCodeStoreQuery, "insert chunk batch", err)
	}
	return nil
}

// DeleteChunksExcept removes every chunk of the repository whose row
// id is not in keepRowIDs. This is the second phase of the
// insert-then-delete swap, and doubles as orphan reconciliation for
// rows a crashed earlier run left behind.
func (s *Store) DeleteChunksExcept(ctx context.Context, repositoryID string, keepRowIDs []uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM code_chunks WHERE repository_id = $1 AND NOT (id = ANY($2))`,
		repositoryID, keepRowIDs)
	if err != nil {
		return 0, errors.New(errors.ErrCodeStoreQuery, "delete superseded chunks", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteChunksForFiles removes chunks belonging to specific files,
// used by incremental runs for deleted or changed files.
func (s *Store) DeleteChunksForFiles(ctx context.Context, repositoryID string, paths []string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM code_chunks WHERE repository_id = $1 AND file_path = ANY($2)`,
		repositoryID, paths)
	if err != nil {
		return 0, errors.New(errors.ErrCodeStoreQuery, "delete file chunks", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteFileChunksExcept removes old chunks of the given files while
// keeping freshly inserted rows, the incremental-run counterpart of
// DeleteChunksExcept.
func (s *Store) DeleteFileChunksExcept(ctx context.Context, repositoryID string, paths []string, keepRowIDs []uuid.UUID) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM code_chunks
		WHERE repository_id = $1 AND file_path = ANY($2) AND NOT (id = ANY($3))`,
		repositoryID, paths, keepRowIDs)
	if err != nil {
		return 0, errors.New(errors.ErrCodeStoreQuery, "delete superseded file chunks", err)
	}
	return tag.RowsAffected(), nil
}

// FileHashes returns the stored content hash per file path, the input
// to incremental diffing. Files chunked in multiple rows share one
// hash.
func (s *Store) FileHashes(ctx context.Context, repositoryID string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT file_path, file_hash FROM code_chunks WHERE repository_id = $1`,
		repositoryID)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "load file hashes", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, errors.New(errors.ErrCodeStoreQuery, "scan file hash", err)
		}
		hashes[path] = hash
	}
	return hashes, rows.Err()
}

// CountChunks returns the number of chunks stored for a repository.
func (s *Store) CountChunks(ctx context.Context, repositoryID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM code_chunks WHERE repository_id = $1`, repositoryID).Scan(&n)
	if err != nil {
		return 0, errors.New(errors.ErrCodeStoreQuery, "count chunks", err)
	}
	return n, nil
}
