package cmd

import (
	"context"
	"log/slog"

	"github.com/codeatlas-ai/codeatlas/internal/billing"
	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/describe"
	"github.com/codeatlas-ai/codeatlas/internal/embed"
	"github.com/codeatlas-ai/codeatlas/internal/jobs"
	"github.com/codeatlas-ai/codeatlas/internal/llm"
	"github.com/codeatlas-ai/codeatlas/internal/logging"
	"github.com/codeatlas-ai/codeatlas/internal/pipeline"
	"github.com/codeatlas-ai/codeatlas/internal/rerank"
	"github.com/codeatlas-ai/codeatlas/internal/search"
	"github.com/codeatlas-ai/codeatlas/internal/source"
	"github.com/codeatlas-ai/codeatlas/internal/store"
)

// app bundles the shared backends the commands wire up.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	jobs   *jobs.Manager
}

// bootCLI loads configuration and sets up logging for the
// terminal-facing commands. With a log file configured, slog output
// goes to the file so it does not interleave with progress rendering.
func bootCLI() (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, cleanup, err := logging.Setup(logging.Config{
		Level:    cfg.Server.LogLevel,
		FilePath: cfg.Server.LogFile,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, cleanup, nil
}

// newApp connects the shared backends for an already-loaded config.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	st, err := store.New(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		jobs:   jobs.NewManager(st, cfg.Pipeline.StaleJobTimeout, logger),
	}, nil
}

func (a *app) close() {
	a.store.Close()
}

// buildPipeline wires the full indexation stack. The describer is only
// attached when contextual descriptions are enabled.
func (a *app) buildPipeline(rec billing.Recorder) (*pipeline.Pipeline, error) {
	src, err := source.NewGitHubSource(a.cfg.Source, a.logger)
	if err != nil {
		return nil, err
	}
	embedder, err := embed.NewClient(a.cfg.Embedding, a.logger)
	if err != nil {
		return nil, err
	}

	var describer *describe.Describer
	if a.cfg.Describe.Enabled {
		generator, err := llm.NewClient(a.cfg.LLM, a.logger)
		if err != nil {
			return nil, err
		}
		describer = describe.NewDescriber(generator, a.cfg.Describe, a.logger)
	}

	return pipeline.New(src, embedder, describer, a.store, a.jobs, rec,
		a.cfg.Pipeline, a.cfg.Embedding.Model, a.logger), nil
}

// buildEngine wires hybrid retrieval. The expander and reranker are
// optional quality layers; their absence degrades to plain hybrid.
func (a *app) buildEngine() (*search.Engine, error) {
	embedder, err := embed.NewClient(a.cfg.Embedding, a.logger)
	if err != nil {
		return nil, err
	}

	var expander *search.Expander
	if generator, err := llm.NewClient(a.cfg.LLM, a.logger); err == nil {
		expander = search.NewExpander(generator, a.logger)
	} else {
		a.logger.Warn("query expansion disabled", "error", err)
	}

	var reranker *search.Reranker
	if a.cfg.Rerank.Enabled {
		provider, err := rerank.NewClient(a.cfg.Rerank, a.logger)
		if err != nil {
			a.logger.Warn("reranking disabled", "error", err)
		} else {
			reranker = search.NewReranker(provider, a.logger)
		}
	}

	return search.New(a.store, embedder, expander, reranker, a.cfg.Search, a.logger), nil
}
