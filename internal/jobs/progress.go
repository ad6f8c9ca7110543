package jobs

// Progress bands are fixed percentages per phase, not proportional to
// actual work split. Within a band, progress scales linearly with
// items processed.

// Phase names surfaced on jobs and in progress callbacks.
const (
	PhaseFetching   = "Fetching files"
	PhaseParsing    = "Parsing code"
	PhaseContext    = "Generating context"
	PhaseEmbedding  = "Generating embeddings"
	PhaseFinalizing = "Finalizing"
)

// Band is a phase's slice of the 0-100 progress range.
type Band struct {
	Start int
	End   int
}

var (
	BandFetching   = Band{0, 10}
	BandParsing    = Band{10, 50}
	BandContext    = Band{50, 60}
	BandEmbedding  = Band{60, 95}
	BandFinalizing = Band{95, 100}

	// BandEmbeddingNoContext widens the embedding band when the
	// context phase is skipped.
	BandEmbeddingNoContext = Band{50, 95}
)

// Progress maps done/total onto the band.
func (b Band) Progress(done, total int) int {
	if total <= 0 {
		return b.Start
	}
	if done > total {
		done = total
	}
	if done < 0 {
		done = 0
	}
	return b.Start + done*(b.End-b.Start)/total
}

// CalculateProgress resolves a phase name to its default band and
// scales done/total within it.
func CalculateProgress(done, total int, phase string) int {
	return bandFor(phase).Progress(done, total)
}

func bandFor(phase string) Band {
	switch phase {
	case PhaseFetching:
		return BandFetching
	case PhaseParsing:
		return BandParsing
	case PhaseContext:
		return BandContext
	case PhaseEmbedding:
		return BandEmbedding
	case PhaseFinalizing:
		return BandFinalizing
	default:
		return Band{0, 100}
	}
}
