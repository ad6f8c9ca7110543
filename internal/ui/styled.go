package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Color palette: single lime accent.
const (
	colorLime   = "154"
	colorGray   = "245"
	colorRed    = "196"
	colorYellow = "220"
)

const barWidth = 30

// StyledRenderer draws an in-place progress bar for interactive
// terminals.
type StyledRenderer struct {
	mu  sync.Mutex
	out io.Writer

	accent  lipgloss.Style
	label   lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func NewStyledRenderer(out io.Writer, noColor bool) *StyledRenderer {
	r := &StyledRenderer{out: out}
	if noColor {
		r.accent = lipgloss.NewStyle()
		r.label = lipgloss.NewStyle()
		r.warning = lipgloss.NewStyle()
		r.failure = lipgloss.NewStyle()
		return r
	}
	r.accent = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLime))
	r.label = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray))
	r.warning = lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow))
	r.failure = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorRed))
	return r
}

func (r *StyledRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "\r\033[K%s %s %s %s",
		r.accent.Render(renderBar(event.Progress)),
		r.accent.Render(fmt.Sprintf("%3d%%", event.Progress)),
		r.label.Render(event.Phase),
		r.label.Render(event.Message))
}

func (r *StyledRenderer) Warn(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "\r\033[K%s\n", r.warning.Render("WARN: "+message))
}

func (r *StyledRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := fmt.Sprintf("Indexed %d chunks in %s",
		stats.Chunks, stats.Duration.Round(100*time.Millisecond))
	if stats.Warnings > 0 {
		line += fmt.Sprintf(" (%d warnings)", stats.Warnings)
	}
	fmt.Fprintf(r.out, "\r\033[K%s\n", r.accent.Render(line))
}

func (r *StyledRenderer) Fail(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "\r\033[K%s\n", r.failure.Render("Indexing failed: "+message))
}

// renderBar draws a fixed-width unicode bar for pct in [0,100].
func renderBar(pct int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * barWidth / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}
