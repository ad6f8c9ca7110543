package search

import (
	"sort"

	"github.com/codeatlas-ai/codeatlas/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains.
const DefaultRRFConstant = 60

// FusedResult is one chunk after RRF fusion of the vector and lexical
// candidate lists.
type FusedResult struct {
	Chunk       store.RetrievedChunk
	RRFScore    float64
	VectorRank  int // 1-indexed, 0 if absent from the vector list
	LexicalRank int // 1-indexed, 0 if absent from the lexical list
	InBothLists bool
}

// RRFFusion combines two ranked lists with Reciprocal Rank Fusion:
//
//	score(d) = Σ weight_i / (k + rank_i)
//
// where rank_i is the 1-indexed position of d in list i. A chunk absent
// from a list simply contributes nothing for that signal.
type RRFFusion struct {
	K int
}

// NewRRFFusion returns a fuser with the given smoothing constant,
// defaulting to 60 when k is not positive.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse merges vector and lexical candidates by chunk id. Ties are
// broken by both-lists presence, then chunk id for determinism.
func (f *RRFFusion) Fuse(vector, lexical []store.RetrievedChunk, weights Weights) []FusedResult {
	if len(vector) == 0 && len(lexical) == 0 {
		return []FusedResult{}
	}

	scores := make(map[string]*FusedResult, len(vector)+len(lexical))

	for rank, c := range vector {
		r := f.getOrCreate(scores, c)
		r.VectorRank = rank + 1
		r.RRFScore += weights.Vector / float64(f.K+rank+1)
	}
	for rank, c := range lexical {
		r := f.getOrCreate(scores, c)
		r.LexicalRank = rank + 1
		r.RRFScore += weights.Lexical / float64(f.K+rank+1)
	}

	results := make([]FusedResult, 0, len(scores))
	for _, r := range scores {
		r.InBothLists = r.VectorRank > 0 && r.LexicalRank > 0
		r.Chunk.Score = r.RRFScore
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].RRFScore != results[j].RRFScore {
			return results[i].RRFScore > results[j].RRFScore
		}
		if results[i].InBothLists != results[j].InBothLists {
			return results[i].InBothLists
		}
		return results[i].Chunk.ChunkID < results[j].Chunk.ChunkID
	})
	return results
}

func (f *RRFFusion) getOrCreate(scores map[string]*FusedResult, c store.RetrievedChunk) *FusedResult {
	if r, ok := scores[c.ChunkID]; ok {
		return r
	}
	r := &FusedResult{Chunk: c}
	scores[c.ChunkID] = r
	return r
}

// dedupeByChunkID merges result sets, keeping the higher score when the
// same chunk appears more than once. Input order is preserved for the
// first occurrence; the final slice is re-sorted by score.
func dedupeByChunkID(sets ...[]store.RetrievedChunk) []store.RetrievedChunk {
	seen := make(map[string]int)
	var merged []store.RetrievedChunk
	for _, set := range sets {
		for _, c := range set {
			if i, ok := seen[c.ChunkID]; ok {
				if c.Score > merged[i].Score {
					merged[i] = c
				}
				continue
			}
			seen[c.ChunkID] = len(merged)
			merged = append(merged, c)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged
}
