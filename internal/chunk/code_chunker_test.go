package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkFileGoFunctions(t *testing.T) {
	src := `package main

import "fmt"

// Greet says hello to the given name and is long enough to keep.
func Greet(name string) string {
	return fmt.Sprintf("hello, %s", name)
}

type Greeter struct {
	prefix     string
	exclaim    bool
	repeatIt   int
}

// Say prints the greeting with the configured prefix attached.
func (g *Greeter) Say(name string) {
	fmt.Println(g.prefix, Greet(name))
}
`
	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "main.go", src)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	byName := map[string]Chunk{}
	for _, ch := range chunks {
		byName[ch.SymbolName] = ch
	}

	greet, ok := byName["Greet"]
	require.True(t, ok)
	assert.Equal(t, ChunkTypeFunction, greet.Type)
	assert.Equal(t, LanguageGo, greet.Language)
	assert.Contains(t, greet.Content, "func Greet")
	assert.Contains(t, greet.Dependencies, "fmt")

	greeter, ok := byName["Greeter"]
	require.True(t, ok)
	assert.Equal(t, ChunkTypeType, greeter.Type)

	say, ok := byName["Say"]
	require.True(t, ok)
	assert.Equal(t, ChunkTypeFunction, say.Type)
}

func TestChunkFileLineBounds(t *testing.T) {
	src := `package main

func First() {
	println("first function body with enough characters")
}

func Second() {
	println("second function body with enough characters")
}
`
	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "main.go", src)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	lines := strings.Split(src, "\n")
	for _, ch := range chunks {
		assert.GreaterOrEqual(t, ch.StartLine, 1)
		assert.LessOrEqual(t, ch.StartLine, ch.EndLine)
		assert.LessOrEqual(t, ch.EndLine, len(lines))
		assert.NotEmpty(t, ch.Content)
		assert.NotEmpty(t, ch.ID)
	}
	assert.Equal(t, 3, chunks[0].StartLine)
	assert.Equal(t, 5, chunks[0].EndLine)
}

func TestChunkFileNestedNotDuplicated(t *testing.T) {
	src := `class Account {
	deposit(amount) {
		this.balance = this.balance + amount;
		return this.balance;
	}

	withdraw(amount) {
		this.balance = this.balance - amount;
		return this.balance;
	}
}
`
	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "account.js", src)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, ChunkTypeClass, chunks[0].Type)
	assert.Equal(t, "Account", chunks[0].SymbolName)
}

func TestChunkFileArrowFunction(t *testing.T) {
	src := `export const fetchUser = async (id) => {
	const res = await fetch("/api/users/" + id);
	return res.json();
};
`
	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "api.ts", src)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, ChunkTypeFunction, chunks[0].Type)
	assert.Equal(t, "fetchUser", chunks[0].SymbolName)
}

func TestChunkFileTypeScriptInterface(t *testing.T) {
	src := `export interface UserRecord {
	id: string;
	email: string;
	createdAt: Date;
}
`
	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "types.ts", src)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, ChunkTypeInterface, chunks[0].Type)
	assert.Equal(t, "UserRecord", chunks[0].SymbolName)
}

func TestChunkFilePython(t *testing.T) {
	src := `import os

class Worker:
    def run(self, task):
        print("running", task)
        return os.getpid()

def standalone_function_with_a_reasonably_long_body():
    value = 40 + 2
    return value
`
	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "worker.py", src)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, ChunkTypeClass, chunks[0].Type)
	assert.Equal(t, "Worker", chunks[0].SymbolName)
	assert.Contains(t, chunks[0].Dependencies, "os")
	assert.Equal(t, ChunkTypeFunction, chunks[1].Type)
}

func TestChunkFileDiscardsTinyChunks(t *testing.T) {
	src := `package main

func a() {}

// Big carries enough body text to clear the minimum chunk size.
func Big() {
	println("this function is comfortably above the minimum size")
}
`
	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "tiny.go", src)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Big", chunks[0].SymbolName)
}

func TestChunkFileOversizedEmittedWhole(t *testing.T) {
	var b strings.Builder
	b.WriteString("package main\n\nfunc Huge() {\n")
	for i := 0; i < 200; i++ {
		b.WriteString("\tprintln(\"line of output that pads the function body\")\n")
	}
	b.WriteString("}\n")

	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "huge.go", b.String())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Greater(t, len(chunks[0].Content), SoftMaxChars)
}

func TestChunkFilePrismaSchema(t *testing.T) {
	src := `datasource db {
  provider = "postgresql"
  url      = env("DATABASE_URL")
}

model User {
  id    String @id @default(uuid())
  email String @unique
  posts Post[]
}

enum Role {
  ADMIN
  MEMBER
  VIEWER
}
`
	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "schema.prisma", src)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, ChunkTypeClass, chunks[0].Type)
	assert.Equal(t, "User", chunks[0].SymbolName)
	assert.Equal(t, ChunkTypeType, chunks[1].Type)
	assert.Equal(t, "Role", chunks[1].SymbolName)
}

func TestChunkFileConfigSingleChunk(t *testing.T) {
	src := `{
  "name": "example",
  "version": "1.0.0",
  "scripts": {
    "build": "tsc",
    "test": "vitest run"
  }
}
`
	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "package.json", src)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, ChunkTypeConfig, chunks[0].Type)
	assert.Equal(t, "package.json", chunks[0].SymbolName)
	assert.Equal(t, src, chunks[0].Content)
}

func TestChunkFileLargeConfigWindowed(t *testing.T) {
	var b strings.Builder
	b.WriteString("services:\n")
	for i := 0; i < 100; i++ {
		b.WriteString("  service:\n    image: registry.example.com/app:latest\n    restart: always\n")
	}

	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "docker-compose.yaml", b.String())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.Equal(t, ChunkTypeConfig, ch.Type)
		assert.LessOrEqual(t, len(ch.Content), SoftMaxChars+200)
	}
}

func TestChunkFileUnknownLanguageFallsBack(t *testing.T) {
	src := `public class Invoice {
    public double total(double[] items) {
        double sum = 0;
        for (double item : items) {
            sum += item;
        }
        return sum;
    }
}
`
	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "Invoice.java", src)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
}

func TestChunkFileEmptyContent(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), "empty.go", "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestWindowChunksOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("line of plain text used to fill the windowing input buffer\n")
	}

	chunks := windowChunks("notes.txt", LanguageUnknown, b.String(), "hash", ChunkTypeOther)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartLine, chunks[i-1].EndLine,
			"window %d should overlap the previous one", i)
	}
	for _, ch := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(ch.Content))
	}
}

func TestRegexChunksGo(t *testing.T) {
	src := `package main

func Alpha() int {
	total := 1 + 2 + 3 + 4
	return total
}

type Shape interface {
	Area() float64
	Perimeter() float64
}
`
	chunks := regexChunks("main.go", LanguageGo, src, "hash")
	require.Len(t, chunks, 2)
	assert.Equal(t, "Alpha", chunks[0].SymbolName)
	assert.Equal(t, ChunkTypeFunction, chunks[0].Type)
	assert.Equal(t, "Shape", chunks[1].SymbolName)
	assert.Equal(t, ChunkTypeInterface, chunks[1].Type)
}

func TestRegexChunksPythonIndent(t *testing.T) {
	src := `def compute(values):
    total = 0
    for v in values:
        total += v
    return total

top_level = compute([1, 2, 3])
`
	chunks := regexChunks("calc.py", LanguagePython, src, "hash")
	require.Len(t, chunks, 1)
	assert.Equal(t, "compute", chunks[0].SymbolName)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 5, chunks[0].EndLine)
	assert.NotContains(t, chunks[0].Content, "top_level")
}
