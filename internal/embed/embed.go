// Package embed turns chunk text into fixed-dimension vectors via a
// remote embedding provider.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/errors"
)

// Mode selects the provider-side input type. Document and query
// embeddings live in the same space but are encoded differently.
type Mode string

const (
	ModeDocument Mode = "document"
	ModeQuery    Mode = "query"
)

// Result carries the vectors plus token usage for cost accounting.
type Result struct {
	Vectors     [][]float32
	TotalTokens int
}

// Embedder is the provider surface consumed by the pipeline and the
// retriever.
type Embedder interface {
	Embed(ctx context.Context, texts []string, mode Mode) (*Result, error)
	Dimensions() int
}

// Client talks to a Voyage-style /embeddings endpoint.
type Client struct {
	httpClient *http.Client
	cfg        config.EmbeddingConfig
	retryCfg   errors.RetryConfig
	logger     *slog.Logger
}

var _ Embedder = (*Client)(nil)

// NewClient validates the configuration and returns a ready client.
func NewClient(cfg config.EmbeddingConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeMissingSecret, "embedding API key is not set", nil).
			WithSuggestion("set ATLAS_EMBEDDING_API_KEY")
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.ConfigError("embedding dimensions must be positive", nil)
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > 128 {
		return nil, errors.ConfigError(
			fmt.Sprintf("embedding batch size %d outside (0,128]", cfg.BatchSize), nil)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		retryCfg:   errors.DefaultRetryConfig(),
		logger:     logger.With("component", "embed"),
	}, nil
}

// Dimensions returns the fixed vector width every call produces.
func (c *Client) Dimensions() int {
	return c.cfg.Dimensions
}

// Embed encodes texts in provider-capped sub-batches. Empty or
// whitespace-only inputs never reach the provider; they get a local
// zero vector at the same index.
func (c *Client) Embed(ctx context.Context, texts []string, mode Mode) (*Result, error) {
	if len(texts) == 0 {
		return &Result{}, nil
	}

	vectors := make([][]float32, len(texts))
	totalTokens := 0

	// Indexes of texts that actually need a provider call.
	var sendIdx []int
	var sendTexts []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			vectors[i] = make([]float32, c.cfg.Dimensions)
			continue
		}
		sendIdx = append(sendIdx, i)
		sendTexts = append(sendTexts, text)
	}

	for start := 0; start < len(sendTexts); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(sendTexts))
		batch := sendTexts[start:end]

		resp, err := errors.RetryProvider(ctx, c.retryCfg, func() (*embedResponse, error) {
			return c.request(ctx, batch, mode)
		})
		if err != nil {
			return nil, errors.New(errors.ErrCodeEmbeddingFailed, "embedding batch failed", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, errors.New(errors.ErrCodeProviderResponse,
				fmt.Sprintf("provider returned %d vectors for %d inputs", len(resp.Data), len(batch)), nil)
		}

		for j, d := range resp.Data {
			if len(d.Embedding) != c.cfg.Dimensions {
				return nil, errors.New(errors.ErrCodeDimensionMismatch,
					fmt.Sprintf("vector has %d dimensions, want %d", len(d.Embedding), c.cfg.Dimensions), nil)
			}
			vectors[sendIdx[start+j]] = d.Embedding
		}
		totalTokens += resp.Usage.TotalTokens
	}

	c.logger.Debug("embedded texts", "count", len(texts), "mode", string(mode), "tokens", totalTokens)
	return &Result{Vectors: vectors, TotalTokens: totalTokens}, nil
}

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	InputType string   `json:"input_type,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *Client) request(ctx context.Context, batch []string, mode Mode) (*embedResponse, error) {
	body, err := json.Marshal(embedRequest{
		Model:     c.cfg.Model,
		Input:     batch,
		InputType: string(mode),
	})
	if err != nil {
		return nil, errors.InternalError("marshal embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.InternalError("build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.TransientError("embedding request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.FromHTTPResponse("embedding", resp)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.New(errors.ErrCodeProviderResponse, "decode embedding response", err)
	}
	return &parsed, nil
}
