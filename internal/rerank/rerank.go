// Package rerank scores documents against a query via a remote
// reranking provider for second-pass result ordering.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/errors"
)

// Ranking is one scored document, indexed by the caller's original
// document position.
type Ranking struct {
	Index          int
	RelevanceScore float64
}

// Reranker is the provider surface the retriever consumes.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]Ranking, error)
}

// Client talks to a Voyage-style /rerank endpoint.
type Client struct {
	httpClient *http.Client
	cfg        config.RerankConfig
	retryCfg   errors.RetryConfig
	logger     *slog.Logger
}

var _ Reranker = (*Client)(nil)

func NewClient(cfg config.RerankConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeMissingSecret, "rerank API key is not set", nil).
			WithSuggestion("set ATLAS_RERANK_API_KEY")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		retryCfg:   errors.DefaultRetryConfig(),
		logger:     logger.With("component", "rerank"),
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Data []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"data"`
}

// Rerank scores documents against the query, sorted by provider
// relevance. Empty documents are filtered before the call; returned
// indexes always refer to the caller's original slice positions.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Ranking, error) {
	if query == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "rerank query is empty", nil)
	}
	if len(documents) == 0 {
		return nil, nil
	}

	// Filter empty docs, remembering original positions.
	var sent []string
	var origIdx []int
	for i, doc := range documents {
		if strings.TrimSpace(doc) == "" {
			continue
		}
		sent = append(sent, doc)
		origIdx = append(origIdx, i)
	}
	if len(sent) == 0 {
		return nil, nil
	}

	resp, err := errors.RetryProvider(ctx, c.retryCfg, func() (*rerankResponse, error) {
		return c.request(ctx, query, sent, topK)
	})
	if err != nil {
		return nil, err
	}

	rankings := make([]Ranking, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(origIdx) {
			return nil, errors.New(errors.ErrCodeProviderResponse, "rerank index out of range", nil)
		}
		rankings = append(rankings, Ranking{
			Index:          origIdx[d.Index],
			RelevanceScore: d.RelevanceScore,
		})
	}

	c.logger.Debug("reranked documents", "sent", len(sent), "returned", len(rankings))
	return rankings, nil
}

func (c *Client) request(ctx context.Context, query string, documents []string, topK int) (*rerankResponse, error) {
	body, err := json.Marshal(rerankRequest{
		Model:     c.cfg.Model,
		Query:     query,
		Documents: documents,
		TopK:      topK,
	})
	if err != nil {
		return nil, errors.InternalError("marshal rerank request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, errors.InternalError("build rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.TransientError("rerank request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.FromHTTPResponse("rerank", resp)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.New(errors.ErrCodeProviderResponse, "decode rerank response", err)
	}
	return &parsed, nil
}
