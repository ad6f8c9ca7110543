package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterFiles_DefaultDirsExcludedRegardlessOfGitignore(t *testing.T) {
	files := []FileInfo{
		{Path: "node_modules/x/index.js", Size: 100},
		{Path: "src/a.ts", Size: 100},
	}

	result := FilterFiles(files, "")

	require.Len(t, result.Included, 1)
	assert.Equal(t, "src/a.ts", result.Included[0].Path)
}

func TestFilterFiles_ExcludesBinariesAndLockfiles(t *testing.T) {
	files := []FileInfo{
		{Path: "logo.png", Size: 5000},
		{Path: "package-lock.json", Size: 90000},
		{Path: "app.min.js", Size: 40000},
		{Path: "bundle.js.map", Size: 40000},
		{Path: "main.go", Size: 300},
	}

	result := FilterFiles(files, "")

	require.Len(t, result.Included, 1)
	assert.Equal(t, "main.go", result.Included[0].Path)
}

func TestFilterFiles_SensitiveFilesNeverIndexed(t *testing.T) {
	files := []FileInfo{
		{Path: ".env", Size: 100},
		{Path: "config/.env.production", Size: 100},
		{Path: "deploy/server.pem", Size: 100},
		{Path: "aws_credentials.json", Size: 100},
		{Path: "src/ok.ts", Size: 100},
	}

	result := FilterFiles(files, "")

	require.Len(t, result.Included, 1)
	assert.Equal(t, "src/ok.ts", result.Included[0].Path)
}

func TestFilterFiles_LanguageAllowlist(t *testing.T) {
	files := []FileInfo{
		{Path: "README.md", Size: 100},
		{Path: "LICENSE", Size: 100},
		{Path: "schema.prisma", Size: 100},
		{Path: "src/app.tsx", Size: 100},
	}

	result := FilterFiles(files, "")

	paths := includedPaths(result)
	assert.ElementsMatch(t, []string{"schema.prisma", "src/app.tsx"}, paths)
}

func TestFilterFiles_EmptyIsSuccessWithZero(t *testing.T) {
	result := FilterFiles([]FileInfo{{Path: "photo.jpg", Size: 100}}, "")

	assert.True(t, result.Empty)
	assert.NotEmpty(t, result.Warning)
	assert.Empty(t, result.Included)
}

func TestGitignore_StarLogPattern(t *testing.T) {
	m := NewGitignoreMatcher("*.log\n")

	assert.True(t, m.Match("error.log"))
	assert.True(t, m.Match("logs/debug.log"))
	assert.False(t, m.Match("file.txt"))
}

func TestGitignore_RootedAndDirectoryPatterns(t *testing.T) {
	m := NewGitignoreMatcher("/secrets.ts\ntemp/\n**/generated\n")

	assert.True(t, m.Match("secrets.ts"))
	assert.False(t, m.Match("src/secrets.ts"), "rooted pattern only matches at root")
	assert.True(t, m.Match("temp/scratch.go"))
	assert.True(t, m.Match("a/b/generated"))
}

func TestGitignore_NegationNeverReincludes(t *testing.T) {
	m := NewGitignoreMatcher("*.log\n!keep.log\n")

	assert.True(t, m.Match("keep.log"), "negation recognized but never re-includes")
	assert.True(t, m.Match("other.log"))
}

func TestGitignore_QuestionMarkWildcard(t *testing.T) {
	m := NewGitignoreMatcher("file?.ts\n")

	assert.True(t, m.Match("file1.ts"))
	assert.False(t, m.Match("file10.ts"))
}

func TestFilterFiles_GitignoreApplied(t *testing.T) {
	files := []FileInfo{
		{Path: "src/a.ts", Size: 100},
		{Path: "src/ignored.ts", Size: 100},
	}

	result := FilterFiles(files, "src/ignored.ts\n")

	paths := includedPaths(result)
	assert.Equal(t, []string{"src/a.ts"}, paths)
}

func TestFilterFiles_LargeRepoRefilter(t *testing.T) {
	// Each file estimates to 25,000 lines; three of them cross the
	// 50,000-line threshold.
	big := int64(25000 * bytesPerLine)
	files := []FileInfo{
		{Path: "docs/examples/huge.ts", Size: big},
		{Path: "src/core.ts", Size: big},
		{Path: "src/extra.ts", Size: big},
		{Path: "package.json", Size: 500},
	}

	result := FilterFiles(files, "")

	require.True(t, result.LargeRepo)
	paths := includedPaths(result)
	// Important root file first, then priority-folder files; the
	// non-priority docs file is dropped.
	require.NotEmpty(t, paths)
	assert.Equal(t, "package.json", paths[0])
	assert.NotContains(t, paths, "docs/examples/huge.ts")
}

func TestFilterFiles_SmallRepoSkipsRefilter(t *testing.T) {
	files := []FileInfo{
		{Path: "src/a.go", Size: 400},
		{Path: "scripts/b.go", Size: 400},
	}

	result := FilterFiles(files, "")

	assert.False(t, result.LargeRepo)
	assert.Len(t, result.Included, 2)
}

func includedPaths(r Result) []string {
	var paths []string
	for _, f := range r.Included {
		paths = append(paths, f.Path)
	}
	return paths
}
