// Package chunk splits source files into semantic units for indexing.
// The primary path walks a tree-sitter AST; files without grammar support
// fall back to regex block detection and finally fixed-size windows.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Size bounds for emitted chunks, in characters.
const (
	// MinChunkChars discards trivially small units (a bare closing
	// brace, a one-line constant).
	MinChunkChars = 50

	// SoftMaxChars is a soft ceiling. Semantic units above it are
	// emitted whole, never split.
	SoftMaxChars = 2000

	// WindowOverlapChars is the overlap between adjacent fixed-size
	// windows, preserving context across window boundaries.
	WindowOverlapChars = 100
)

// ChunkType classifies what a chunk contains.
type ChunkType string

const (
	ChunkTypeFunction  ChunkType = "function"
	ChunkTypeClass     ChunkType = "class"
	ChunkTypeInterface ChunkType = "interface"
	ChunkTypeType      ChunkType = "type"
	ChunkTypeConfig    ChunkType = "config"
	ChunkTypeImport    ChunkType = "import"
	ChunkTypeOther     ChunkType = "other"
)

// Chunk is one semantic unit of source code.
// StartLine and EndLine are 1-indexed and inclusive; Content is never
// empty for non-empty input.
type Chunk struct {
	ID           string
	FilePath     string
	Content      string
	StartLine    int
	EndLine      int
	Language     Language
	Type         ChunkType
	SymbolName   string
	Dependencies []string

	// Context is the LLM-generated description, filled in by the
	// describer after chunking. Empty until then.
	Context string

	// FileHash is the content hash of the whole source file, used for
	// incremental change detection.
	FileHash string
}

// EmbedText returns the text to embed: the contextual description, a
// blank line, then the code. Without context it is just the code.
func (c *Chunk) EmbedText() string {
	if c.Context == "" {
		return c.Content
	}
	return c.Context + "\n\n" + c.Content
}

// ChunkID derives a stable chunk identifier from the file path and
// content. Same content in the same file keeps its ID across line
// shifts; moving content between files changes it.
func ChunkID(filePath, content string) string {
	contentHash := sha256.Sum256([]byte(content))
	input := fmt.Sprintf("%s:%s", filePath, hex.EncodeToString(contentHash[:])[:16])
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}

// HashFile returns the content hash recorded on chunks for change
// detection.
func HashFile(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
