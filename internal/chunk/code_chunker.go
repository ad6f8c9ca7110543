package chunk

import (
	"context"
	"path"
	"strings"
)

// Chunker splits files into semantic chunks. Construct one per pipeline
// run; it owns a ParserContext and is not safe for concurrent use.
type Chunker struct {
	parser *ParserContext
}

// NewChunker creates a chunker with its own parser context.
func NewChunker() *Chunker {
	return &Chunker{parser: NewParserContext()}
}

// Close releases parser resources.
func (c *Chunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// ChunkFile splits one file into chunks. It never returns an error for
// unparseable content; parse failures degrade to regex block detection
// and then fixed-size windows. Empty input yields no chunks.
func (c *Chunker) ChunkFile(ctx context.Context, filePath string, content string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	lang := LanguageFromPath(filePath)
	source := []byte(content)
	fileHash := HashFile(source)

	// Special-cased file types come before grammar dispatch.
	switch {
	case path.Base(filePath) == "schema.prisma" || lang == LanguagePrisma:
		return c.chunkPrisma(filePath, content, fileHash), nil
	case lang == LanguageJSON || lang == LanguageYAML:
		return c.chunkConfig(filePath, lang, content, fileHash), nil
	}

	if lang.grammar() == nil {
		return c.fallbackChunks(filePath, lang, content, fileHash), nil
	}

	tree, err := c.parser.Parse(ctx, source, lang)
	if err != nil {
		return c.fallbackChunks(filePath, lang, content, fileHash), nil
	}

	chunks := c.chunkTree(tree, filePath, fileHash)
	if len(chunks) == 0 {
		return c.fallbackChunks(filePath, lang, content, fileHash), nil
	}
	return chunks, nil
}

// chunkTree walks the AST emitting one chunk per top-level semantic
// unit. Descent stops at emitted nodes, so a method inside an emitted
// class is never also emitted on its own.
func (c *Chunker) chunkTree(tree *Tree, filePath, fileHash string) []Chunk {
	spec := tree.Language.spec()
	deps := extractImports(tree)

	var chunks []Chunk
	tree.Root.Walk(func(n *Node) bool {
		if n == tree.Root {
			return true
		}

		// const handler = () => {} is a function, not a variable.
		if name, ok := variableFunction(n, tree.Source); ok {
			if chunk, ok := c.buildChunk(tree, n, filePath, fileHash, ChunkTypeFunction, name, deps); ok {
				chunks = append(chunks, chunk)
			}
			return false
		}

		chunkType, isUnit := spec.nodeTypes[n.Type]
		if !isUnit {
			return true
		}

		name := extractName(n, tree.Source, tree.Language)
		if chunk, ok := c.buildChunk(tree, n, filePath, fileHash, chunkType, name, deps); ok {
			chunks = append(chunks, chunk)
		}
		return false
	})

	return chunks
}

// buildChunk assembles one chunk, discarding units below the minimum
// size. Oversized units are emitted whole; the soft maximum never
// splits a semantic unit.
func (c *Chunker) buildChunk(tree *Tree, n *Node, filePath, fileHash string, chunkType ChunkType, symbolName string, deps []string) (Chunk, bool) {
	content := n.Content(tree.Source)
	if len(content) < MinChunkChars {
		return Chunk{}, false
	}

	return Chunk{
		ID:           ChunkID(filePath, content),
		FilePath:     filePath,
		Content:      content,
		StartLine:    int(n.StartRow) + 1,
		EndLine:      int(n.EndRow) + 1,
		Language:     tree.Language,
		Type:         chunkType,
		SymbolName:   symbolName,
		Dependencies: deps,
		FileHash:     fileHash,
	}, true
}

// chunkPrisma emits one chunk per model/enum block in a Prisma schema.
func (c *Chunker) chunkPrisma(filePath, content, fileHash string) []Chunk {
	lines := strings.Split(content, "\n")

	var chunks []Chunk
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, "model ") && !strings.HasPrefix(trimmed, "enum ") {
			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			continue
		}
		name := fields[1]

		end := findBraceEnd(lines, i)
		block := strings.Join(lines[i:end+1], "\n")

		chunkType := ChunkTypeType
		if strings.HasPrefix(trimmed, "model ") {
			chunkType = ChunkTypeClass
		}

		chunks = append(chunks, Chunk{
			ID:         ChunkID(filePath, block),
			FilePath:   filePath,
			Content:    block,
			StartLine:  i + 1,
			EndLine:    end + 1,
			Language:   LanguagePrisma,
			Type:       chunkType,
			SymbolName: name,
			FileHash:   fileHash,
		})
		i = end
	}

	if len(chunks) == 0 {
		// A schema with no model blocks is still worth one config chunk.
		return c.chunkConfig(filePath, LanguagePrisma, content, fileHash)
	}
	return chunks
}

// chunkConfig emits a config file as a single chunk, unless it is large
// enough that windowing is needed to keep chunks embeddable.
func (c *Chunker) chunkConfig(filePath string, lang Language, content, fileHash string) []Chunk {
	if len(content) > SoftMaxChars {
		return windowChunks(filePath, lang, content, fileHash, ChunkTypeConfig)
	}

	return []Chunk{{
		ID:         ChunkID(filePath, content),
		FilePath:   filePath,
		Content:    content,
		StartLine:  1,
		EndLine:    strings.Count(content, "\n") + 1,
		Language:   lang,
		Type:       ChunkTypeConfig,
		SymbolName: path.Base(filePath),
		FileHash:   fileHash,
	}}
}

// fallbackChunks runs regex block detection, then fixed-size windows if
// the regexes find nothing.
func (c *Chunker) fallbackChunks(filePath string, lang Language, content, fileHash string) []Chunk {
	if chunks := regexChunks(filePath, lang, content, fileHash); len(chunks) > 0 {
		return chunks
	}
	return windowChunks(filePath, lang, content, fileHash, ChunkTypeOther)
}

// findBraceEnd returns the index of the line closing the brace block
// opened at or after start. Falls back to start when unbalanced.
func findBraceEnd(lines []string, start int) int {
	depth := 0
	opened := false
	for i := start; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
				if opened && depth == 0 {
					return i
				}
			}
		}
	}
	return start
}
