package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeatlas-ai/codeatlas/internal/rerank"
	"github.com/codeatlas-ai/codeatlas/internal/store"
)

// Reranker re-scores a candidate set with the rerank provider. Each
// document is prefixed with chunk metadata so the provider sees what
// kind of code it is scoring, not just the raw text.
type Reranker struct {
	provider rerank.Reranker
	logger   *slog.Logger
}

func NewReranker(provider rerank.Reranker, logger *slog.Logger) *Reranker {
	return &Reranker{provider: provider, logger: logger.With("component", "reranker")}
}

// Rerank reorders chunks by provider relevance. The boolean reports
// whether reranking actually happened: provider failures degrade to the
// original order rather than failing the query.
func (r *Reranker) Rerank(ctx context.Context, query string, chunks []store.RetrievedChunk, topK int) ([]store.RetrievedChunk, bool) {
	if r == nil || r.provider == nil || len(chunks) == 0 {
		return chunks, false
	}

	docs := make([]string, len(chunks))
	for i, c := range chunks {
		docs[i] = buildRerankDocument(c)
	}

	rankings, err := r.provider.Rerank(ctx, query, docs, topK)
	if err != nil {
		r.logger.Warn("rerank failed, keeping original order", "error", err)
		return chunks, false
	}
	if len(rankings) == 0 {
		return chunks, false
	}

	reordered := make([]store.RetrievedChunk, 0, len(rankings))
	for _, rk := range rankings {
		if rk.Index < 0 || rk.Index >= len(chunks) {
			continue
		}
		c := chunks[rk.Index]
		c.Score = rk.RelevanceScore
		reordered = append(reordered, c)
	}
	if len(reordered) == 0 {
		return chunks, false
	}
	return reordered, true
}

// buildRerankDocument prefixes the content with type, symbol, and file
// range so short snippets stay distinguishable.
func buildRerankDocument(c store.RetrievedChunk) string {
	header := c.ChunkType
	if c.SymbolName != "" {
		header += " " + c.SymbolName
	}
	return fmt.Sprintf("[%s | %s:%d-%d]\n%s", header, c.FilePath, c.StartLine, c.EndLine, c.Content)
}
