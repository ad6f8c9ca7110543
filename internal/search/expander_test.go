package search

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-ai/codeatlas/internal/errors"
)

func TestExpandParsesResponse(t *testing.T) {
	gen := &scriptedGenerator{json: `{"keywords":["jwt","middleware"],"pathHints":["auth/","x"],"architecture":false}`}
	e := NewExpander(gen, slog.Default())

	exp := e.Expand(context.Background(), "how is auth handled")
	require.NotNil(t, exp)

	assert.Equal(t, []string{"jwt", "middleware"}, exp.Keywords)
	assert.Equal(t, []string{"auth/"}, exp.UsablePaths(), "hints under 3 chars are dropped")
	assert.Equal(t, "how is auth handled jwt middleware", exp.SearchTerms("how is auth handled"))
}

func TestExpandArchitectureAddsInfraPaths(t *testing.T) {
	gen := &scriptedGenerator{json: `{"keywords":[],"pathHints":["server"],"architecture":true}`}
	e := NewExpander(gen, slog.Default())

	exp := e.Expand(context.Background(), "how do the layers fit together")
	require.NotNil(t, exp)

	paths := exp.UsablePaths()
	assert.Contains(t, paths, "server")
	assert.Contains(t, paths, "cmd/")
	assert.Contains(t, paths, "config")
}

func TestExpandFailureReturnsNil(t *testing.T) {
	gen := &scriptedGenerator{err: errors.TransientError("llm down", nil)}
	e := NewExpander(gen, slog.Default())

	assert.Nil(t, e.Expand(context.Background(), "some query"))
}

func TestExpandNilGenerator(t *testing.T) {
	assert.Nil(t, NewExpander(nil, slog.Default()))
}

func TestExpansionNilSafe(t *testing.T) {
	var exp *Expansion
	assert.Equal(t, "query", exp.SearchTerms("query"))
	assert.Nil(t, exp.UsablePaths())
}
