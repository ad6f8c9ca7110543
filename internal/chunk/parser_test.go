package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguageFromPath(t *testing.T) {
	cases := []struct {
		path string
		want Language
	}{
		{"main.go", LanguageGo},
		{"app.js", LanguageJavaScript},
		{"app.mjs", LanguageJavaScript},
		{"view.jsx", LanguageJSX},
		{"api.ts", LanguageTypeScript},
		{"view.tsx", LanguageTSX},
		{"worker.py", LanguagePython},
		{"schema.prisma", LanguagePrisma},
		{"package.json", LanguageJSON},
		{"config.yaml", LanguageYAML},
		{"config.yml", LanguageYAML},
		{"README.md", LanguageUnknown},
		{"Invoice.java", LanguageUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LanguageFromPath(tc.path), tc.path)
	}
}

func TestParserParseGo(t *testing.T) {
	p := NewParserContext()
	defer p.Close()

	src := []byte("package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	tree, err := p.Parse(context.Background(), src, LanguageGo)
	require.NoError(t, err)
	require.NotNil(t, tree.Root)

	fn := tree.Root.FindChildByType("function_declaration")
	require.NotNil(t, fn)
	assert.Equal(t, "func main() {\n\tprintln(\"hi\")\n}", fn.Content(src))
	assert.Equal(t, uint32(2), fn.StartRow)
}

func TestParserNoGrammar(t *testing.T) {
	p := NewParserContext()
	defer p.Close()

	_, err := p.Parse(context.Background(), []byte("x"), LanguagePrisma)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no grammar")
}

func TestParserReuseAcrossLanguages(t *testing.T) {
	p := NewParserContext()
	defer p.Close()

	ctx := context.Background()

	goTree, err := p.Parse(ctx, []byte("package a\n\nfunc f() {}\n"), LanguageGo)
	require.NoError(t, err)
	assert.NotNil(t, goTree.Root.FindChildByType("function_declaration"))

	pyTree, err := p.Parse(ctx, []byte("def f():\n    pass\n"), LanguagePython)
	require.NoError(t, err)
	assert.NotNil(t, pyTree.Root.FindChildByType("function_definition"))
}

func TestWalkPrune(t *testing.T) {
	p := NewParserContext()
	defer p.Close()

	src := []byte("package a\n\nfunc outer() {\n\tinner := func() {}\n\t_ = inner\n}\n")
	tree, err := p.Parse(context.Background(), src, LanguageGo)
	require.NoError(t, err)

	var funcs int
	tree.Root.Walk(func(n *Node) bool {
		if n.Type == "function_declaration" || n.Type == "func_literal" {
			funcs++
			return false // prune: nested literals stay inside their parent
		}
		return true
	})
	assert.Equal(t, 1, funcs)
}

func TestChunkIDDeterministic(t *testing.T) {
	a := ChunkID("a.go", "func A() {}")
	b := ChunkID("a.go", "func A() {}")
	c := ChunkID("b.go", "func A() {}")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestEmbedText(t *testing.T) {
	plain := Chunk{Content: "func A() {}"}
	assert.Equal(t, "func A() {}", plain.EmbedText())

	described := Chunk{Content: "func A() {}", Context: "Creates the A widget."}
	assert.Equal(t, "Creates the A widget.\n\nfunc A() {}", described.EmbedText())
}
