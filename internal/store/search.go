package store

import (
	"context"
	"fmt"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/codeatlas-ai/codeatlas/internal/errors"
)

// MetadataFilter narrows retrieval to structural criteria instead of
// relevance, for enumeration-style queries.
type MetadataFilter struct {
	// PathPatterns are matched against file_path with ILIKE; a chunk
	// matches if any pattern does.
	PathPatterns []string

	// ChunkTypes restricts by chunk type when non-empty.
	ChunkTypes []string
}

// Retriever is the query surface the search engine consumes.
type Retriever interface {
	VectorSearch(ctx context.Context, repositoryID string, embedding []float32, limit int) ([]RetrievedChunk, error)
	LexicalSearch(ctx context.Context, repositoryID, query string, limit int) ([]RetrievedChunk, error)
	SymbolSearch(ctx context.Context, repositoryID, symbol string, limit int) ([]RetrievedChunk, error)
	FileSearch(ctx context.Context, repositoryID, pathQuery string, limit int) ([]RetrievedChunk, error)
	MetadataSearch(ctx context.Context, repositoryID string, filter MetadataFilter, limit int) ([]RetrievedChunk, error)
}

var _ Retriever = (*Store)(nil)

const chunkColumns = `
	id, chunk_id, repository_id, file_path, content, context,
	start_line, end_line, language, chunk_type, symbol_name,
	dependencies, file_hash, created_at`

// VectorSearch ranks chunks by cosine similarity to the query
// embedding. Cosine distance spans [0,2], so the similarity is clamped
// to keep scores in [0,1], higher is closer.
func (s *Store) VectorSearch(ctx context.Context, repositoryID string, embedding []float32, limit int) ([]RetrievedChunk, error) {
	q := fmt.Sprintf(`
		SELECT %s, GREATEST(0, 1 - (embedding <=> $2)) AS score
		FROM code_chunks
		WHERE repository_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3`, chunkColumns)

	rows, err := s.pool.Query(ctx, q, repositoryID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "vector search", err)
	}
	return scanRetrieved(rows)
}

// LexicalSearch ranks chunks by full-text relevance over symbol name,
// path, context, and content. Query terms are OR-combined so partial
// matches still rank.
func (s *Store) LexicalSearch(ctx context.Context, repositoryID, query string, limit int) ([]RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "lexical query is empty", nil)
	}

	q := fmt.Sprintf(`
		WITH q AS (
			SELECT websearch_to_tsquery('english', $2) AS tq
		)
		SELECT %s, ts_rank_cd(ts_content, (SELECT tq FROM q)) AS score
		FROM code_chunks
		WHERE repository_id = $1 AND ts_content @@ (SELECT tq FROM q)
		ORDER BY score DESC
		LIMIT $3`, chunkColumns)

	rows, err := s.pool.Query(ctx, q, repositoryID, query, limit)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "lexical search", err)
	}
	return scanRetrieved(rows)
}

// SymbolSearch fuzzy-matches symbol names by trigram similarity, with
// exact and prefix matches ranked first.
func (s *Store) SymbolSearch(ctx context.Context, repositoryID, symbol string, limit int) ([]RetrievedChunk, error) {
	q := fmt.Sprintf(`
		SELECT %s,
			CASE
				WHEN lower(symbol_name) = lower($2) THEN 1.0
				WHEN lower(symbol_name) LIKE lower($2) || '%%' THEN 0.9
				ELSE similarity(lower(symbol_name), lower($2))
			END AS score
		FROM code_chunks
		WHERE repository_id = $1
		  AND symbol_name <> ''
		  AND (lower(symbol_name) LIKE '%%' || lower($2) || '%%'
		       OR similarity(lower(symbol_name), lower($2)) > 0.3)
		ORDER BY score DESC
		LIMIT $3`, chunkColumns)

	rows, err := s.pool.Query(ctx, q, repositoryID, symbol, limit)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "symbol search", err)
	}
	return scanRetrieved(rows)
}

// FileSearch fuzzy-matches file paths.
func (s *Store) FileSearch(ctx context.Context, repositoryID, pathQuery string, limit int) ([]RetrievedChunk, error) {
	q := fmt.Sprintf(`
		SELECT %s, similarity(lower(file_path), lower($2)) AS score
		FROM code_chunks
		WHERE repository_id = $1
		  AND (file_path ILIKE '%%' || $2 || '%%'
		       OR similarity(lower(file_path), lower($2)) > 0.2)
		ORDER BY score DESC
		LIMIT $3`, chunkColumns)

	rows, err := s.pool.Query(ctx, q, repositoryID, pathQuery, limit)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "file search", err)
	}
	return scanRetrieved(rows)
}

// MetadataSearch returns chunks matching structural filters, ordered
// by path and line for stable enumeration. Score is constant 1.
func (s *Store) MetadataSearch(ctx context.Context, repositoryID string, filter MetadataFilter, limit int) ([]RetrievedChunk, error) {
	args := []any{repositoryID}
	where := "repository_id = $1"
	next := 2

	if len(filter.PathPatterns) > 0 {
		var clauses []string
		for _, p := range filter.PathPatterns {
			clauses = append(clauses, fmt.Sprintf("file_path ILIKE $%d", next))
			args = append(args, "%"+strings.Trim(p, "%")+"%")
			next++
		}
		where += " AND (" + strings.Join(clauses, " OR ") + ")"
	}
	if len(filter.ChunkTypes) > 0 {
		where += fmt.Sprintf(" AND chunk_type = ANY($%d)", next)
		args = append(args, filter.ChunkTypes)
		next++
	}

	args = append(args, limit)
	q := fmt.Sprintf(`
		SELECT %s, 1.0 AS score
		FROM code_chunks
		WHERE %s
		ORDER BY file_path, start_line
		LIMIT $%d`, chunkColumns, where, next)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "metadata search", err)
	}
	return scanRetrieved(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

func scanRetrieved(rows pgxRows) ([]RetrievedChunk, error) {
	defer rows.Close()

	var out []RetrievedChunk
	for rows.Next() {
		var c RetrievedChunk
		if err := rows.Scan(
			&c.RowID, &c.ChunkID, &c.RepositoryID, &c.FilePath, &c.Content, &c.Context,
			&c.StartLine, &c.EndLine, &c.Language, &c.ChunkType, &c.SymbolName,
			&c.Dependencies, &c.FileHash, &c.CreatedAt, &c.Score,
		); err != nil {
			return nil, errors.New(errors.ErrCodeStoreQuery, "scan chunk row", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
