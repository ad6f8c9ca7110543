// Package describe generates short natural-language descriptions for
// code chunks before embedding. A chunk embedded together with a
// one-sentence description of what it does retrieves better than the
// raw code alone, especially for short or generic snippets.
package describe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeatlas-ai/codeatlas/internal/chunk"
	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/errors"
	"github.com/codeatlas-ai/codeatlas/internal/llm"
)

const (
	maxDescriptionWords = 40

	// Rate-limit backoff in the batched path is a fixed wait, not
	// exponential: batches are already serialized, so escalation only
	// stretches the run.
	rateLimitBackoff = 5 * time.Second

	// maxSnippetChars bounds how much of each chunk goes into the
	// prompt.
	maxSnippetChars = 1500
)

const systemPrompt = `You annotate code snippets for a search index. ` +
	`For each numbered snippet, write one description of at most 40 words ` +
	`stating what the code does and what it is for. Respond with a JSON ` +
	`array of strings, one per snippet, in input order. JSON only.`

// Describer fills Chunk.Context in place.
type Describer struct {
	generator llm.Generator
	cfg       config.DescribeConfig
	logger    *slog.Logger

	// backoff is overridable in tests.
	backoff time.Duration
}

// Usage accumulates token consumption across all batches of a run.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

func NewDescriber(generator llm.Generator, cfg config.DescribeConfig, logger *slog.Logger) *Describer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 12
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Describer{
		generator: generator,
		cfg:       cfg,
		logger:    logger.With("component", "describe"),
		backoff:   rateLimitBackoff,
	}
}

// DescribeChunks sets Context on each chunk. Description is an
// optional enhancement: a batch that exhausts its retries leaves empty
// contexts rather than failing the caller, and only context
// cancellation aborts the pass.
func (d *Describer) DescribeChunks(ctx context.Context, chunks []chunk.Chunk, onProgress func(done int)) (Usage, error) {
	var usage Usage
	if !d.cfg.Enabled || len(chunks) == 0 {
		return usage, nil
	}

	for start := 0; start < len(chunks); start += d.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return usage, err
		}
		end := min(start+d.cfg.BatchSize, len(chunks))
		batch := chunks[start:end]

		descriptions, batchUsage, err := d.describeBatch(ctx, batch)
		usage.InputTokens += batchUsage.InputTokens
		usage.OutputTokens += batchUsage.OutputTokens
		if err != nil {
			if ctx.Err() != nil {
				return usage, ctx.Err()
			}
			d.logger.Warn("description batch degraded to empty contexts",
				"batch_start", start, "size", len(batch), "error", err)
			descriptions = make([]string, len(batch))
		}

		for i := range batch {
			chunks[start+i].Context = strings.TrimSpace(descriptions[i])
		}
		if onProgress != nil {
			onProgress(end)
		}
	}

	return usage, nil
}

// describeBatch retries the same batch up to MaxRetries times. Rate
// limits wait a fixed backoff; malformed JSON retries immediately.
func (d *Describer) describeBatch(ctx context.Context, batch []chunk.Chunk) ([]string, Usage, error) {
	prompt := buildPrompt(batch)

	var usage Usage
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		var descriptions []string
		u, err := d.generator.GenerateJSON(ctx, systemPrompt, prompt, &descriptions)
		usage.InputTokens += u.InputTokens
		usage.OutputTokens += u.OutputTokens

		if err == nil {
			if len(descriptions) < len(batch) {
				lastErr = errors.New(errors.ErrCodeProviderResponse,
					fmt.Sprintf("got %d descriptions for %d chunks", len(descriptions), len(batch)), nil)
				continue
			}
			return descriptions[:len(batch)], usage, nil
		}
		lastErr = err

		if errors.IsFatal(err) || ctx.Err() != nil {
			break
		}
		// Auth, validation, and config failures will not improve on a
		// re-send of the same batch; only transient provider errors and
		// malformed output are worth another attempt.
		if !errors.IsRetryable(err) && errors.GetCode(err) != errors.ErrCodeProviderResponse {
			break
		}
		if errors.IsRateLimited(err) {
			select {
			case <-time.After(d.backoff):
			case <-ctx.Done():
				return nil, usage, ctx.Err()
			}
		}
	}

	return nil, usage, lastErr
}

func buildPrompt(batch []chunk.Chunk) string {
	var b strings.Builder
	for i, c := range batch {
		content := c.Content
		if len(content) > maxSnippetChars {
			content = content[:maxSnippetChars]
		}
		fmt.Fprintf(&b, "--- snippet %d (%s, %s", i+1, c.FilePath, c.Type)
		if c.SymbolName != "" {
			fmt.Fprintf(&b, ", symbol %s", c.SymbolName)
		}
		b.WriteString(") ---\n")
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	return b.String()
}
