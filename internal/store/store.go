// Package store persists code chunks and indexing jobs in Postgres,
// using pgvector for similarity search and full-text/trigram indexes
// for lexical and symbol search.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/errors"
)

// Store provides chunk and job persistence over a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to the database and verifies connectivity.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New(errors.ErrCodeMissingSecret, "database URL is not set", nil).
			WithSuggestion("set ATLAS_DATABASE_URL")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.ConfigError("invalid database URL", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "connect to database", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "database ping failed", err)
	}

	return &Store{pool: pool, logger: logger.With("component", "store")}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Ping checks database connectivity with a short deadline.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return errors.New(errors.ErrCodeStoreUnavailable, "database ping failed", err)
	}
	return nil
}

// Migrate creates extensions, tables, and indexes. Idempotent; safe to
// run at every startup.
func (s *Store) Migrate(ctx context.Context, embeddingDim int) error {
	if embeddingDim <= 0 {
		return errors.ConfigError("embedding dimension must be positive", nil)
	}

	q := `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS code_chunks (
  id            UUID PRIMARY KEY,
  chunk_id      TEXT NOT NULL,
  repository_id TEXT NOT NULL,
  file_path     TEXT NOT NULL,
  content       TEXT NOT NULL,
  context       TEXT NOT NULL DEFAULT '',
  start_line    INT NOT NULL,
  end_line      INT NOT NULL,
  language      TEXT NOT NULL,
  chunk_type    TEXT NOT NULL,
  symbol_name   TEXT NOT NULL DEFAULT '',
  dependencies  TEXT[] NOT NULL DEFAULT '{}',
  file_hash     TEXT NOT NULL DEFAULT '',
  embedding     vector(%d),
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  ts_content    tsvector GENERATED ALWAYS AS (
    setweight(to_tsvector('english', coalesce(symbol_name,'')), 'A') ||
    setweight(to_tsvector('english',
      regexp_replace(coalesce(file_path,''), '[^A-Za-z0-9]+', ' ', 'g')), 'B') ||
    setweight(to_tsvector('english', coalesce(context,'')), 'B') ||
    setweight(to_tsvector('english', coalesce(content,'')), 'C')
  ) STORED
);

CREATE INDEX IF NOT EXISTS code_chunks_repository_idx
  ON code_chunks (repository_id);
CREATE INDEX IF NOT EXISTS code_chunks_repo_path_idx
  ON code_chunks (repository_id, file_path);
CREATE INDEX IF NOT EXISTS code_chunks_ts_gin
  ON code_chunks USING GIN (ts_content);
CREATE INDEX IF NOT EXISTS code_chunks_symbol_trgm
  ON code_chunks USING GIN (symbol_name gin_trgm_ops);
CREATE INDEX IF NOT EXISTS code_chunks_path_trgm
  ON code_chunks USING GIN (file_path gin_trgm_ops);
CREATE INDEX IF NOT EXISTS code_chunks_embedding_idx
  ON code_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

CREATE TABLE IF NOT EXISTS indexing_jobs (
  id              UUID PRIMARY KEY,
  repository_id   TEXT NOT NULL UNIQUE,
  status          TEXT NOT NULL,
  phase           TEXT NOT NULL DEFAULT '',
  progress        INT NOT NULL DEFAULT 0,
  files_total     INT NOT NULL DEFAULT 0,
  files_processed INT NOT NULL DEFAULT 0,
  chunks_created  INT NOT NULL DEFAULT 0,
  error_message   TEXT NOT NULL DEFAULT '',
  started_at      TIMESTAMPTZ,
  completed_at    TIMESTAMPTZ,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(q, embeddingDim)); err != nil {
		return errors.New(errors.ErrCodeStoreMigration, "apply migrations", err)
	}
	s.logger.Info("migrations applied", "embedding_dim", embeddingDim)
	return nil
}
