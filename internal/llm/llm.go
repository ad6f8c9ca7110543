// Package llm is a thin chat-completion client used for contextual
// chunk descriptions and query expansion. Calls run behind a circuit
// breaker so a misbehaving provider degrades those features instead of
// stalling every request on timeouts.
package llm

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

// Usage reports token consumption for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Generator is the completion surface describe and search consume.
type Generator interface {
	// GenerateText returns the raw completion for a prompt.
	GenerateText(ctx context.Context, system, prompt string) (string, Usage, error)

	// GenerateJSON parses the completion into out. The prompt must
	// instruct the model to answer with JSON only; code fences around
	// the payload are tolerated.
	GenerateJSON(ctx context.Context, system, prompt string, out any) (Usage, error)
}

// Client talks to an OpenAI-style /chat/completions endpoint.
type Client struct {
	httpClient *http.Client
	cfg        config.LLMConfig
	breaker    *errors.CircuitBreaker
	logger     *slog.Logger
}

var _ Generator = (*Client)(nil)

func NewClient(cfg config.LLMConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeMissingSecret, "LLM API key is not set", nil).
			WithSuggestion("set ATLAS_LLM_API_KEY")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		breaker:    errors.NewCircuitBreaker("llm"),
		logger:     logger.With("component", "llm"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *Client) GenerateText(ctx context.Context, system, prompt string) (string, Usage, error) {
	resp, err := errors.CircuitDo(c.breaker, func() (*chatResponse, error) {
		return c.request(ctx, system, prompt)
	})
	if err != nil {
		return "", Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, errors.New(errors.ErrCodeProviderResponse, "completion has no choices", nil)
	}

	usage := Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	return resp.Choices[0].Message.Content, usage, nil
}

func (c *Client) GenerateJSON(ctx context.Context, system, prompt string, out any) (Usage, error) {
	text, usage, err := c.GenerateText(ctx, system, prompt)
	if err != nil {
		return usage, err
	}
	if err := json.Unmarshal([]byte(StripFences(text)), out); err != nil {
		return usage, errors.New(errors.ErrCodeProviderResponse, "completion is not valid JSON", err)
	}
	return usage, nil
}

func (c *Client) request(ctx context.Context, system, prompt string) (*chatResponse, error) {
	messages := []chatMessage{}
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{Model: c.cfg.Model, Messages: messages})
	if err != nil {
		return nil, errors.InternalError("marshal completion request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.InternalError("build completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.TransientError("completion request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.FromHTTPResponse("llm", resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.New(errors.ErrCodeProviderResponse, "decode completion response", err)
	}
	return &parsed, nil
}

// StripFences removes a surrounding markdown code fence, which models
// add around JSON answers even when told not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
