// Package search provides hybrid retrieval over indexed code chunks,
// combining vector and lexical search with Reciprocal Rank Fusion (RRF)
// and a strategy selector for identifier, enumeration, and semantic
// queries.
package search

import (
	"github.com/codeatlas-ai/codeatlas/internal/store"
)

// Strategy names the retrieval path a query was routed through.
type Strategy string

const (
	StrategySymbol    Strategy = "symbol"
	StrategyMetadata  Strategy = "metadata"
	StrategyExpansion Strategy = "expansion"
	StrategyHybrid    Strategy = "hybrid"
	StrategyVector    Strategy = "vector"
)

// QueryType is the classifier's coarse label for a query.
type QueryType string

const (
	QueryTypeIdentifier QueryType = "identifier"
	QueryTypeEnumerate  QueryType = "enumerate"
	QueryTypeSemantic   QueryType = "semantic"
	QueryTypeMixed      QueryType = "mixed"
)

// Weights bias the two fusion signals. 1.0 each is the plain RRF
// formula; lowering one de-emphasizes that signal.
type Weights struct {
	Lexical float64
	Vector  float64
}

// DefaultWeights applies no bias to either signal.
func DefaultWeights() Weights {
	return Weights{Lexical: 1, Vector: 1}
}

// Options configures a single retrieval call.
type Options struct {
	// Limit caps returned results. Zero means the configured default.
	Limit int

	// PathPatterns restricts results to matching file paths.
	PathPatterns []string

	// ChunkTypes restricts results to the given chunk types.
	ChunkTypes []string

	// SkipRerank disables the second-pass reranker for this call.
	SkipRerank bool

	// SkipExpansion disables LLM query expansion for this call.
	SkipExpansion bool
}

// Response is the outcome of SmartRetrieve: the ranked chunks plus
// enough routing metadata for the caller to explain the answer.
type Response struct {
	Chunks     []store.RetrievedChunk
	Strategy   Strategy
	QueryType  QueryType
	Reranked   bool
	TotalFound int
}
