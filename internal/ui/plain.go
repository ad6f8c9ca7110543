package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer prints one line per progress update, for CI and pipes.
type PlainRenderer struct {
	mu        sync.Mutex
	out       io.Writer
	lastPhase string
	lastPct   int
}

func NewPlainRenderer(out io.Writer) *PlainRenderer {
	return &PlainRenderer{out: out, lastPct: -1}
}

// UpdateProgress prints a line when the phase or percentage moved.
// Pipelines report the same percentage many times per batch; repeating
// it would drown CI logs.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Phase == r.lastPhase && event.Progress == r.lastPct {
		return
	}
	r.lastPhase = event.Phase
	r.lastPct = event.Progress

	if event.Message != "" {
		fmt.Fprintf(r.out, "[%3d%%] %s: %s\n", event.Progress, event.Phase, event.Message)
		return
	}
	fmt.Fprintf(r.out, "[%3d%%] %s\n", event.Progress, event.Phase)
}

func (r *PlainRenderer) Warn(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "WARN: %s\n", message)
}

func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "Complete: %d chunks indexed in %s",
		stats.Chunks, stats.Duration.Round(100*time.Millisecond))
	if stats.Warnings > 0 {
		fmt.Fprintf(r.out, " (%d warnings)", stats.Warnings)
	}
	fmt.Fprintln(r.out)
}

func (r *PlainRenderer) Fail(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "FAILED: %s\n", message)
}
