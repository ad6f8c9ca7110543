package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeatlas-ai/codeatlas/internal/llm"
)

const expanderCacheSize = 2000

const expanderSystemPrompt = `You analyze code-search queries. Respond with a JSON object only, no prose:
{"keywords": ["..."], "pathHints": ["..."], "architecture": true|false}
keywords: up to 5 code-level terms likely to appear in matching source (function names, library names, technical vocabulary).
pathHints: up to 3 likely file-path fragments (e.g. "auth/", "middleware", "config"). Empty array if none.
architecture: true only if the query asks about overall structure, layers, or how components fit together.`

// Expansion is the LLM's broadened view of a generic query.
type Expansion struct {
	Keywords     []string `json:"keywords"`
	PathHints    []string `json:"pathHints"`
	Architecture bool     `json:"architecture"`
}

// infraPathHints are appended for architecture-style questions, where
// the relevant code lives in wiring rather than features.
var infraPathHints = []string{"main", "cmd/", "config", "server", "app"}

// Expander asks an LLM to extract keywords and path hints from
// low-confidence queries. Failures degrade to no expansion.
type Expander struct {
	generator llm.Generator
	cache     *lru.Cache[string, Expansion]
	logger    *slog.Logger
}

// NewExpander returns an expander, or nil when no generator is
// available so callers can skip expansion with a nil check.
func NewExpander(generator llm.Generator, logger *slog.Logger) *Expander {
	if generator == nil {
		return nil
	}
	cache, _ := lru.New[string, Expansion](expanderCacheSize)
	return &Expander{
		generator: generator,
		cache:     cache,
		logger:    logger.With("component", "expander"),
	}
}

// Expand returns the expansion for a query, or nil when the LLM call
// fails. A nil expansion is not an error for retrieval.
func (e *Expander) Expand(ctx context.Context, query string) *Expansion {
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return nil
	}
	if cached, ok := e.cache.Get(key); ok {
		cp := cached
		return &cp
	}

	var exp Expansion
	_, err := e.generator.GenerateJSON(ctx, expanderSystemPrompt,
		fmt.Sprintf("Query: %s", query), &exp)
	if err != nil {
		e.logger.Warn("query expansion failed", "query", query, "error", err)
		return nil
	}

	if exp.Architecture {
		exp.PathHints = dedupeStrings(append(exp.PathHints, infraPathHints...))
	}

	e.cache.Add(key, exp)
	return &exp
}

// SearchTerms joins the original query with the expansion keywords for
// a broadened lexical pass.
func (exp *Expansion) SearchTerms(query string) string {
	if exp == nil || len(exp.Keywords) == 0 {
		return query
	}
	return query + " " + strings.Join(exp.Keywords, " ")
}

// UsablePaths filters hints down to fragments safe to use as path
// filters.
func (exp *Expansion) UsablePaths() []string {
	if exp == nil {
		return nil
	}
	var out []string
	for _, h := range exp.PathHints {
		h = strings.TrimSpace(h)
		if len(h) >= 3 && !strings.ContainsAny(h, "*?%") {
			out = append(out, h)
		}
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
