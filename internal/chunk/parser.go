package chunk

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// ParserContext wraps a tree-sitter parser for one pipeline run. It is
// not safe for concurrent use; each worker constructs its own. The
// language table itself is immutable and shared.
type ParserContext struct {
	parser *sitter.Parser
}

// NewParserContext creates a parser context for a single run.
func NewParserContext() *ParserContext {
	return &ParserContext{parser: sitter.NewParser()}
}

// Parse parses source code in the given language and returns the AST.
func (p *ParserContext) Parse(ctx context.Context, source []byte, lang Language) (*Tree, error) {
	grammar := lang.grammar()
	if grammar == nil {
		return nil, fmt.Errorf("no grammar for language %s", lang)
	}

	p.parser.SetLanguage(grammar)

	tsTree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("failed to parse source: nil tree")
	}

	return &Tree{
		Root:     convertNode(tsTree.RootNode()),
		Source:   source,
		Language: lang,
	}, nil
}

// Close releases parser resources.
func (p *ParserContext) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

// Tree is a parsed AST detached from tree-sitter's C memory.
type Tree struct {
	Root     *Node
	Source   []byte
	Language Language
}

// Node is a converted AST node.
type Node struct {
	Type      string
	StartByte uint32
	EndByte   uint32
	StartRow  uint32 // 0-indexed
	EndRow    uint32
	Children  []*Node
	HasError  bool
}

func convertNode(tsNode *sitter.Node) *Node {
	if tsNode == nil {
		return nil
	}

	node := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartRow:  tsNode.StartPoint().Row,
		EndRow:    tsNode.EndPoint().Row,
		HasError:  tsNode.HasError(),
		Children:  make([]*Node, 0, int(tsNode.ChildCount())),
	}

	for i := uint32(0); i < tsNode.ChildCount(); i++ {
		if child := tsNode.Child(int(i)); child != nil {
			node.Children = append(node.Children, convertNode(child))
		}
	}

	return node
}

// Content returns the source text covered by the node.
func (n *Node) Content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FindChildByType finds the first direct child with the given type.
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, child := range n.Children {
		if child.Type == nodeType {
			return child
		}
	}
	return nil
}

// Walk traverses the tree depth-first; fn returning false prunes the
// subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}
