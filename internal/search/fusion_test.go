package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-ai/codeatlas/internal/store"
)

func rc(chunkID string, score float64) store.RetrievedChunk {
	c := store.RetrievedChunk{Score: score}
	c.ChunkID = chunkID
	return c
}

func TestRRFScoreBothLists(t *testing.T) {
	f := NewRRFFusion(60)
	vector := []store.RetrievedChunk{rc("a", 0.95)}
	lexical := []store.RetrievedChunk{rc("a", 3.1)}

	fused := f.Fuse(vector, lexical, DefaultWeights())
	require.Len(t, fused, 1)

	// Rank 1 in both lists: 1/61 + 1/61 ≈ 0.0328.
	assert.InDelta(t, 2.0/61.0, fused[0].RRFScore, 1e-9)
	assert.InDelta(t, 0.0328, fused[0].RRFScore, 1e-4)
	assert.True(t, fused[0].InBothLists)
	assert.Equal(t, 1, fused[0].VectorRank)
	assert.Equal(t, 1, fused[0].LexicalRank)
}

func TestRRFScoreSingleList(t *testing.T) {
	f := NewRRFFusion(60)
	fused := f.Fuse([]store.RetrievedChunk{rc("a", 0.9)}, nil, DefaultWeights())
	require.Len(t, fused, 1)

	assert.InDelta(t, 1.0/61.0, fused[0].RRFScore, 1e-9)
	assert.False(t, fused[0].InBothLists)
	assert.Zero(t, fused[0].LexicalRank)
}

func TestRRFOrdering(t *testing.T) {
	f := NewRRFFusion(60)
	vector := []store.RetrievedChunk{rc("v1", 0.9), rc("both", 0.8)}
	lexical := []store.RetrievedChunk{rc("both", 2.0), rc("l2", 1.0)}

	fused := f.Fuse(vector, lexical, Weights{Lexical: 0.5, Vector: 0.5})
	require.Len(t, fused, 3)

	// both: 0.5/62 + 0.5/61 beats v1: 0.5/61 and l2: 0.5/62.
	assert.Equal(t, "both", fused[0].Chunk.ChunkID)
	assert.Equal(t, "v1", fused[1].Chunk.ChunkID)
	assert.Equal(t, "l2", fused[2].Chunk.ChunkID)

	// Fused chunks carry the RRF score, not the raw signal score.
	assert.InDelta(t, fused[0].RRFScore, fused[0].Chunk.Score, 1e-9)
}

func TestRRFEmptyInputs(t *testing.T) {
	f := NewRRFFusion(0) // defaults to 60
	assert.Equal(t, 60, f.K)
	assert.Empty(t, f.Fuse(nil, nil, DefaultWeights()))
}

func TestDedupeByChunkIDKeepsHigherScore(t *testing.T) {
	a := []store.RetrievedChunk{rc("x", 0.3), rc("y", 0.9)}
	b := []store.RetrievedChunk{rc("x", 0.7), rc("z", 0.5)}

	merged := dedupeByChunkID(a, b)
	require.Len(t, merged, 3)

	assert.Equal(t, "y", merged[0].ChunkID)
	assert.Equal(t, "x", merged[1].ChunkID)
	assert.InDelta(t, 0.7, merged[1].Score, 1e-9, "conflict keeps the higher score")
	assert.Equal(t, "z", merged[2].ChunkID)
}
