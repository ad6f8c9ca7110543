package chunk

import (
	"regexp"
	"strings"
)

// Regex fallback: per-language declaration patterns with brace- or
// indentation-based block-end detection. Used when no grammar exists or
// AST extraction yields nothing.

type regexPattern struct {
	re        *regexp.Regexp
	chunkType ChunkType
	// indentBlock uses indentation to find the block end instead of
	// brace counting (python-style).
	indentBlock bool
}

var goPatterns = []regexPattern{
	{re: regexp.MustCompile(`^func\s+(\(\s*\w+[^)]*\)\s*)?(\w+)`), chunkType: ChunkTypeFunction},
	{re: regexp.MustCompile(`^type\s+(\w+)\s+interface\b`), chunkType: ChunkTypeInterface},
	{re: regexp.MustCompile(`^type\s+(\w+)\b`), chunkType: ChunkTypeType},
}

var jsPatterns = []regexPattern{
	{re: regexp.MustCompile(`^(export\s+)?(default\s+)?(async\s+)?function\s*\*?\s*(\w+)`), chunkType: ChunkTypeFunction},
	{re: regexp.MustCompile(`^(export\s+)?(abstract\s+)?class\s+(\w+)`), chunkType: ChunkTypeClass},
	{re: regexp.MustCompile(`^(export\s+)?interface\s+(\w+)`), chunkType: ChunkTypeInterface},
	{re: regexp.MustCompile(`^(export\s+)?type\s+(\w+)\s*=`), chunkType: ChunkTypeType},
	{re: regexp.MustCompile(`^(export\s+)?(const|let|var)\s+(\w+)\s*(:[^=]+)?=\s*(async\s*)?(\([^)]*\)|\w+)\s*(:\s*[^=]+)?=>`), chunkType: ChunkTypeFunction},
}

var pythonPatterns = []regexPattern{
	{re: regexp.MustCompile(`^(async\s+)?def\s+(\w+)`), chunkType: ChunkTypeFunction, indentBlock: true},
	{re: regexp.MustCompile(`^class\s+(\w+)`), chunkType: ChunkTypeClass, indentBlock: true},
}

// genericPatterns catch function/class shapes in languages without a
// dedicated table.
var genericPatterns = []regexPattern{
	{re: regexp.MustCompile(`^(public\s+|private\s+|protected\s+|static\s+)*[\w<>\[\]]+\s+(\w+)\s*\([^;]*\)\s*\{`), chunkType: ChunkTypeFunction},
	{re: regexp.MustCompile(`^(export\s+)?(abstract\s+)?class\s+(\w+)`), chunkType: ChunkTypeClass},
	{re: regexp.MustCompile(`^(async\s+)?def\s+(\w+)`), chunkType: ChunkTypeFunction, indentBlock: true},
	{re: regexp.MustCompile(`^function\s+(\w+)`), chunkType: ChunkTypeFunction},
}

func patternsFor(lang Language) []regexPattern {
	switch lang {
	case LanguageGo:
		return goPatterns
	case LanguageJavaScript, LanguageJSX, LanguageTypeScript, LanguageTSX:
		return jsPatterns
	case LanguagePython:
		return pythonPatterns
	default:
		return genericPatterns
	}
}

// regexChunks scans line by line for declaration patterns, extending
// each match to its block end.
func regexChunks(filePath string, lang Language, content, fileHash string) []Chunk {
	patterns := patternsFor(lang)
	lines := strings.Split(content, "\n")

	var chunks []Chunk
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimLeft(lines[i], " \t")
		var matched *regexPattern
		var name string
		for p := range patterns {
			if m := patterns[p].re.FindStringSubmatch(trimmed); m != nil {
				matched = &patterns[p]
				name = lastNonEmptyGroup(m)
				break
			}
		}
		if matched == nil {
			continue
		}

		var end int
		if matched.indentBlock {
			end = findIndentEnd(lines, i)
		} else {
			end = findBraceEnd(lines, i)
		}

		block := strings.Join(lines[i:end+1], "\n")
		if len(block) < MinChunkChars {
			i = end
			continue
		}

		chunks = append(chunks, Chunk{
			ID:         ChunkID(filePath, block),
			FilePath:   filePath,
			Content:    block,
			StartLine:  i + 1,
			EndLine:    end + 1,
			Language:   lang,
			Type:       matched.chunkType,
			SymbolName: name,
			FileHash:   fileHash,
		})
		i = end
	}

	return chunks
}

// findIndentEnd returns the last line of an indentation-delimited block
// starting at start (the def/class line).
func findIndentEnd(lines []string, start int) int {
	baseIndent := indentOf(lines[start])
	end := start
	for i := start + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if indentOf(lines[i]) <= baseIndent {
			break
		}
		end = i
	}
	return end
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

// lastNonEmptyGroup returns the last capture group that looks like an
// identifier, which in all our patterns is the declared name.
func lastNonEmptyGroup(m []string) string {
	for i := len(m) - 1; i >= 1; i-- {
		g := strings.TrimSpace(m[i])
		if g != "" && regexp.MustCompile(`^\w+$`).MatchString(g) {
			return g
		}
	}
	return ""
}

// windowChunks is the final fallback: fixed-size windows with a
// ~100-char overlap so boundary context is not lost.
func windowChunks(filePath string, lang Language, content, fileHash string, chunkType ChunkType) []Chunk {
	lines := strings.Split(content, "\n")

	var chunks []Chunk
	start := 0
	for start < len(lines) {
		var size int
		end := start
		for end < len(lines) && size < SoftMaxChars {
			size += len(lines[end]) + 1
			end++
		}

		window := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, Chunk{
				ID:        ChunkID(filePath, window),
				FilePath:  filePath,
				Content:   window,
				StartLine: start + 1,
				EndLine:   end,
				Language:  lang,
				Type:      chunkType,
				FileHash:  fileHash,
			})
		}

		if end >= len(lines) {
			break
		}

		// Step back enough trailing lines to cover the overlap budget.
		overlap := 0
		backtrack := end
		for backtrack > start+1 && overlap < WindowOverlapChars {
			backtrack--
			overlap += len(lines[backtrack]) + 1
		}
		start = backtrack
	}

	return chunks
}
