package search

import (
	"context"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/embed"
	"github.com/codeatlas-ai/codeatlas/internal/errors"
	"github.com/codeatlas-ai/codeatlas/internal/store"
)

// queryEmbedCacheSize bounds the query-embedding LRU. Assistant
// sessions re-embed the same few queries constantly.
const queryEmbedCacheSize = 2000

// Engine routes queries across the retrieval primitives: symbol lookup
// for identifier-shaped queries, metadata filters for enumeration
// questions, and RRF-fused hybrid search for everything else.
type Engine struct {
	retriever  store.Retriever
	embedder   embed.Embedder
	classifier *Classifier
	expander   *Expander
	reranker   *Reranker
	fusion     *RRFFusion
	embedCache *lru.Cache[string, []float32]
	cfg        config.SearchConfig
	logger     *slog.Logger
}

// New builds an engine. expander and reranker may be nil; the matching
// strategies then degrade to hybrid search.
func New(
	retriever store.Retriever,
	embedder embed.Embedder,
	expander *Expander,
	reranker *Reranker,
	cfg config.SearchConfig,
	logger *slog.Logger,
) *Engine {
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = DefaultRRFConstant
	}
	if cfg.CandidatePool <= 0 {
		cfg.CandidatePool = 50
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.RerankThreshold <= 0 {
		cfg.RerankThreshold = 3
	}
	// Weights left entirely unset mean unweighted fusion; a lone zero
	// weight stays zero so callers can disable one signal.
	if cfg.LexicalWeight == 0 && cfg.VectorWeight == 0 {
		cfg.LexicalWeight = 1
		cfg.VectorWeight = 1
	}
	cache, _ := lru.New[string, []float32](queryEmbedCacheSize)
	return &Engine{
		retriever:  retriever,
		embedder:   embedder,
		classifier: NewClassifier(),
		expander:   expander,
		reranker:   reranker,
		fusion:     NewRRFFusion(cfg.RRFConstant),
		embedCache: cache,
		cfg:        cfg,
		logger:     logger.With("component", "search"),
	}
}

// VectorSearch embeds the query and ranks by cosine similarity.
func (e *Engine) VectorSearch(ctx context.Context, repositoryID, query string, limit int) ([]store.RetrievedChunk, error) {
	embedding, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.retriever.VectorSearch(ctx, repositoryID, embedding, limit)
}

// LexicalSearch ranks by full-text relevance.
func (e *Engine) LexicalSearch(ctx context.Context, repositoryID, query string, limit int) ([]store.RetrievedChunk, error) {
	return e.retriever.LexicalSearch(ctx, repositoryID, query, limit)
}

// HybridSearch runs vector and lexical retrieval over independent
// candidate pools and fuses them with RRF.
func (e *Engine) HybridSearch(ctx context.Context, repositoryID, query string, limit int) ([]store.RetrievedChunk, error) {
	pool := e.cfg.CandidatePool

	vec, err := e.VectorSearch(ctx, repositoryID, query, pool)
	if err != nil {
		// Lexical search still works without an embedding; a provider
		// outage narrows recall instead of killing the query.
		e.logger.Warn("vector pass failed, lexical only", "error", err)
		vec = nil
	}
	lex, err := e.retriever.LexicalSearch(ctx, repositoryID, query, pool)
	if err != nil {
		if vec == nil {
			return nil, err
		}
		e.logger.Warn("lexical pass failed, vector only", "error", err)
		lex = nil
	}

	fused := e.fusion.Fuse(vec, lex, Weights{Lexical: e.cfg.LexicalWeight, Vector: e.cfg.VectorWeight})
	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}
	out := make([]store.RetrievedChunk, len(fused))
	for i, f := range fused {
		out[i] = f.Chunk
	}
	return out, nil
}

// SymbolSearch looks up chunks by symbol name.
func (e *Engine) SymbolSearch(ctx context.Context, repositoryID, symbol string, limit int) ([]store.RetrievedChunk, error) {
	return e.retriever.SymbolSearch(ctx, repositoryID, symbol, limit)
}

// FileSearch looks up chunks by file path.
func (e *Engine) FileSearch(ctx context.Context, repositoryID, pathQuery string, limit int) ([]store.RetrievedChunk, error) {
	return e.retriever.FileSearch(ctx, repositoryID, pathQuery, limit)
}

// SmartRetrieve classifies the query and picks the retrieval strategy,
// in priority order: identifier-shaped queries go to symbol search
// (hybrid fallback on zero matches); enumeration queries over a
// recognized domain get a pure metadata filter; low-confidence queries
// are LLM-expanded and merged with hybrid results; everything else is
// hybrid RRF. Large-enough candidate sets get a rerank pass.
func (e *Engine) SmartRetrieve(ctx context.Context, repositoryID, query string, opts Options) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.MaxResults
	}

	cls := e.classifier.Classify(query)
	resp := &Response{QueryType: cls.Type}

	// Caller-supplied filters short-circuit strategy selection.
	if len(opts.PathPatterns) > 0 || len(opts.ChunkTypes) > 0 {
		chunks, err := e.retriever.MetadataSearch(ctx, repositoryID, store.MetadataFilter{
			PathPatterns: opts.PathPatterns,
			ChunkTypes:   opts.ChunkTypes,
		}, e.cfg.CandidatePool)
		if err != nil {
			return nil, err
		}
		resp.Strategy = StrategyMetadata
		return e.finish(ctx, query, resp, chunks, limit, opts)
	}

	chunks, strategy, err := e.route(ctx, repositoryID, query, cls, opts)
	if err != nil {
		return nil, err
	}
	resp.Strategy = strategy
	return e.finish(ctx, query, resp, chunks, limit, opts)
}

func (e *Engine) route(ctx context.Context, repositoryID, query string, cls Classification, opts Options) ([]store.RetrievedChunk, Strategy, error) {
	pool := e.cfg.CandidatePool

	if cls.Type == QueryTypeIdentifier {
		chunks, err := e.retriever.SymbolSearch(ctx, repositoryID, query, pool)
		if err != nil {
			return nil, "", err
		}
		if len(chunks) > 0 {
			return chunks, StrategySymbol, nil
		}
		// Zero symbol matches: the identifier may only appear in
		// bodies, so fall through to hybrid.
		e.logger.Debug("no symbol match, falling back to hybrid", "query", query)
		chunks, err = e.HybridSearch(ctx, repositoryID, query, pool)
		return chunks, StrategyHybrid, err
	}

	if cls.Filter != nil && cls.IsList && cls.Confidence >= 0.7 {
		chunks, err := e.retriever.MetadataSearch(ctx, repositoryID, *cls.Filter, pool)
		if err != nil {
			return nil, "", err
		}
		if len(chunks) > 0 {
			return chunks, StrategyMetadata, nil
		}
		// The filter found nothing in this repository's layout.
	}

	if e.expander != nil && !opts.SkipExpansion && cls.Confidence < 0.7 {
		if exp := e.expander.Expand(ctx, query); exp != nil {
			if paths := exp.UsablePaths(); len(paths) > 0 {
				filtered, err := e.retriever.MetadataSearch(ctx, repositoryID,
					store.MetadataFilter{PathPatterns: paths}, pool)
				if err != nil {
					return nil, "", err
				}
				hybrid, err := e.HybridSearch(ctx, repositoryID, exp.SearchTerms(query), pool)
				if err != nil {
					return nil, "", err
				}
				return dedupeByChunkID(hybrid, filtered), StrategyExpansion, nil
			}
			query = exp.SearchTerms(query)
		}
	}

	if e.cfg.LexicalWeight == 0 {
		chunks, err := e.VectorSearch(ctx, repositoryID, query, pool)
		return chunks, StrategyVector, err
	}
	chunks, err := e.HybridSearch(ctx, repositoryID, query, pool)
	return chunks, StrategyHybrid, err
}

// finish applies reranking and the result limit.
func (e *Engine) finish(ctx context.Context, query string, resp *Response, chunks []store.RetrievedChunk, limit int, opts Options) (*Response, error) {
	resp.TotalFound = len(chunks)

	// Symbol hits are already precise name matches; second-guessing
	// them with a relevance model reorders exact lookups.
	rerankable := resp.Strategy != StrategySymbol
	if rerankable && !opts.SkipRerank && len(chunks) > e.cfg.RerankThreshold {
		chunks, resp.Reranked = e.reranker.Rerank(ctx, query, chunks, limit)
	}

	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	resp.Chunks = chunks
	return resp, nil
}

// embedQuery embeds with query-mode instructions, caching per query.
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if cached, ok := e.embedCache.Get(key); ok {
		return cached, nil
	}
	res, err := e.embedder.Embed(ctx, []string{query}, embed.ModeQuery)
	if err != nil {
		return nil, err
	}
	if len(res.Vectors) != 1 {
		return nil, errors.New(errors.ErrCodeProviderResponse, "embedding provider returned no query vector", nil)
	}
	e.embedCache.Add(key, res.Vectors[0])
	return res.Vectors[0], nil
}
