package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlainRendererDeduplicates(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(&buf)

	r.UpdateProgress(ProgressEvent{Phase: "Parsing code", Progress: 30, Message: "parsed 5/10 files"})
	r.UpdateProgress(ProgressEvent{Phase: "Parsing code", Progress: 30, Message: "parsed 5/10 files"})
	r.UpdateProgress(ProgressEvent{Phase: "Parsing code", Progress: 50})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, "[ 30%] Parsing code: parsed 5/10 files", lines[0])
	assert.Equal(t, "[ 50%] Parsing code", lines[1])
}

func TestPlainRendererComplete(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(&buf)

	r.Complete(CompletionStats{Chunks: 42, Duration: 3210 * time.Millisecond, Warnings: 1})
	assert.Equal(t, "Complete: 42 chunks indexed in 3.2s (1 warnings)\n", buf.String())
}

func TestPlainRendererFail(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(&buf)

	r.Fail("embedding provider unavailable")
	assert.Equal(t, "FAILED: embedding provider unavailable\n", buf.String())
}

func TestStyledRendererNoColorOutput(t *testing.T) {
	var buf bytes.Buffer
	r := NewStyledRenderer(&buf, true)

	r.UpdateProgress(ProgressEvent{Phase: "Generating embeddings", Progress: 77, Message: "embedded 54/100 chunks"})
	out := buf.String()

	assert.Contains(t, out, " 77%")
	assert.Contains(t, out, "Generating embeddings")
	assert.NotContains(t, out, "\x1b[38;5;", "noColor output must not carry color codes")
}

func TestRenderBarBounds(t *testing.T) {
	assert.Equal(t, "["+strings.Repeat("░", barWidth)+"]", renderBar(-5))
	assert.Equal(t, "["+strings.Repeat("█", barWidth)+"]", renderBar(150))
	assert.Equal(t, barWidth+2, len([]rune(renderBar(50))))
}

func TestNewRendererPlainForNonTTY(t *testing.T) {
	r := NewRenderer(Config{Output: &bytes.Buffer{}})
	_, plain := r.(*PlainRenderer)
	assert.True(t, plain, "buffer output is not a TTY")
}
