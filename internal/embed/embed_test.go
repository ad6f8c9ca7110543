package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/errors"
)

const testDims = 8

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.EmbeddingConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "voyage-code-3",
		Dimensions: testDims,
		BatchSize:  2,
		Timeout:    5 * time.Second,
	}, slog.Default())
	require.NoError(t, err)
	c.retryCfg = errors.RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	return c
}

func embedHandler(t *testing.T, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp embedResponse
		for i := range req.Input {
			vec := make([]float32, testDims)
			vec[0] = float32(len(req.Input[i]))
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: vec})
		}
		resp.Usage.TotalTokens = 7 * len(req.Input)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestEmbedBatchesAndTokens(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, embedHandler(t, &calls))

	texts := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	res, err := c.Embed(context.Background(), texts, ModeDocument)
	require.NoError(t, err)

	require.Len(t, res.Vectors, 5)
	for i, v := range res.Vectors {
		require.Len(t, v, testDims)
		assert.Equal(t, float32(len(texts[i])), v[0])
	}
	assert.Equal(t, 7*5, res.TotalTokens)
	assert.Equal(t, int32(3), calls.Load(), "5 texts at batch size 2 is 3 requests")
}

func TestEmbedEmptyInputsZeroVector(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, embedHandler(t, &calls))

	res, err := c.Embed(context.Background(), []string{"real text", "", "   \n\t"}, ModeDocument)
	require.NoError(t, err)

	require.Len(t, res.Vectors, 3)
	assert.NotEqual(t, make([]float32, testDims), res.Vectors[0])
	assert.Equal(t, make([]float32, testDims), res.Vectors[1])
	assert.Equal(t, make([]float32, testDims), res.Vectors[2])
	assert.Equal(t, int32(1), calls.Load(), "only the non-empty text hits the provider")
}

func TestEmbedNoTexts(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("provider should not be called")
	})

	res, err := c.Embed(context.Background(), nil, ModeQuery)
	require.NoError(t, err)
	assert.Empty(t, res.Vectors)
	assert.Zero(t, res.TotalTokens)
}

func TestEmbedRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	inner := embedHandler(t, &calls)
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Load() == 0 {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":"rate limited"}`)
			return
		}
		inner(w, r)
	})

	res, err := c.Embed(context.Background(), []string{"text"}, ModeDocument)
	require.NoError(t, err)
	require.Len(t, res.Vectors, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedAuthErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad key"}`)
	})

	_, err := c.Embed(context.Background(), []string{"text"}, ModeDocument)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "auth failures must not retry")
	assert.Equal(t, errors.ErrCodeEmbeddingFailed, errors.GetCode(err))
}

func TestEmbedDimensionMismatch(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.1,0.2]}],"usage":{"total_tokens":1}}`)
	})

	_, err := c.Embed(context.Background(), []string{"text"}, ModeDocument)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDimensionMismatch, errors.GetCode(err))
}

func TestEmbedQueryMode(t *testing.T) {
	var gotType string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotType = req.InputType

		vec := make([]float32, testDims)
		fmt.Fprintf(w, `{"data":[{"index":0,"embedding":%s}],"usage":{"total_tokens":1}}`, floatsJSON(vec))
	})

	_, err := c.Embed(context.Background(), []string{"how does auth work"}, ModeQuery)
	require.NoError(t, err)
	assert.Equal(t, "query", gotType)
}

func TestNewClientValidation(t *testing.T) {
	logger := slog.Default()

	_, err := NewClient(config.EmbeddingConfig{Dimensions: 1024, BatchSize: 64}, logger)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMissingSecret, errors.GetCode(err))

	_, err = NewClient(config.EmbeddingConfig{APIKey: "k", Dimensions: 0, BatchSize: 64}, logger)
	require.Error(t, err)

	_, err = NewClient(config.EmbeddingConfig{APIKey: "k", Dimensions: 1024, BatchSize: 200}, logger)
	require.Error(t, err)
}

func floatsJSON(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
