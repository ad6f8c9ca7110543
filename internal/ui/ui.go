// Package ui renders indexing progress and search results on the
// terminal. Interactive terminals get styled output; pipes and CI get
// plain text.
package ui

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// ProgressEvent is one pipeline progress update.
type ProgressEvent struct {
	Phase    string
	Progress int // 0-100
	Message  string
}

// CompletionStats summarizes a finished indexing run.
type CompletionStats struct {
	Chunks   int
	Duration time.Duration
	Warnings int
}

// Renderer displays indexing progress.
type Renderer interface {
	UpdateProgress(event ProgressEvent)
	Warn(message string)
	Complete(stats CompletionStats)
	Fail(message string)
}

// Config configures renderer selection.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
}

// NewRenderer picks a styled renderer for interactive terminals and a
// plain one for pipes and CI.
func NewRenderer(cfg Config) Renderer {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg.Output)
	}
	return NewStyledRenderer(cfg.Output, cfg.NoColor || DetectNoColor())
}

// IsTTY checks whether the writer is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor honors the NO_COLOR convention.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks common CI environment markers.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
