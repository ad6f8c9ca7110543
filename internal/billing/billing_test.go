package billing

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectorAggregates(t *testing.T) {
	c := NewCollector(slog.Default())

	c.Record(Event{Type: UsageEmbedding, Model: "voyage-code-3", InputTokens: 1000})
	c.Record(Event{Type: UsageEmbedding, Model: "voyage-code-3", InputTokens: 500})
	c.Record(Event{Type: UsageLLM, Model: "gpt-4o-mini", InputTokens: 200, OutputTokens: 80})

	events := c.Events()
	assert.Len(t, events, 3)
	assert.False(t, events[0].At.IsZero())

	totals := c.Totals()
	assert.Equal(t, [2]int{1500, 0}, totals[UsageEmbedding])
	assert.Equal(t, [2]int{200, 80}, totals[UsageLLM])
}

func TestCollectorDropsEmptyEvents(t *testing.T) {
	c := NewCollector(slog.Default())
	c.Record(Event{Type: UsageRerank, Model: "rerank-2.5"})
	assert.Empty(t, c.Events())
}
