// Package billing collects token-usage events emitted by pipeline runs
// and search-time provider calls for downstream cost accounting.
package billing

import (
	"log/slog"
	"sync"
	"time"
)

// UsageType identifies which provider surface consumed tokens.
type UsageType string

const (
	UsageEmbedding UsageType = "embedding"
	UsageRerank    UsageType = "rerank"
	UsageLLM       UsageType = "llm"
)

// Event is one token-usage record.
type Event struct {
	Type         UsageType
	Model        string
	RepositoryID string
	InputTokens  int
	OutputTokens int
	At           time.Time
}

// Recorder consumes usage events. The pipeline emits through this
// interface so the billing backend is swappable.
type Recorder interface {
	Record(event Event)
}

// Collector is an in-process Recorder that aggregates per-model totals
// and logs each event.
type Collector struct {
	mu     sync.Mutex
	events []Event
	logger *slog.Logger
}

var _ Recorder = (*Collector)(nil)

func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{logger: logger.With("component", "billing")}
}

func (c *Collector) Record(event Event) {
	if event.InputTokens == 0 && event.OutputTokens == 0 {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	c.logger.Info("token usage",
		"type", string(event.Type), "model", event.Model,
		"repository", event.RepositoryID,
		"input_tokens", event.InputTokens, "output_tokens", event.OutputTokens)
}

// Events returns a copy of all recorded events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Totals sums input and output tokens per usage type.
func (c *Collector) Totals() map[UsageType][2]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	totals := make(map[UsageType][2]int)
	for _, e := range c.events {
		t := totals[e.Type]
		t[0] += e.InputTokens
		t[1] += e.OutputTokens
		totals[e.Type] = t
	}
	return totals
}

// Discard is a Recorder that drops every event, for contexts where
// billing is not wired.
type Discard struct{}

func (Discard) Record(Event) {}
