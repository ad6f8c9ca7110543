// Package filter decides which repository files are indexable. All
// decisions are pure functions of path and size plus the repository's
// gitignore text; the package performs no I/O.
package filter

import (
	"path"
	"strings"
)

// FileInfo describes one file from the repository listing.
type FileInfo struct {
	Path string
	Size int64
	SHA  string
}

// Result is the outcome of filtering a repository listing.
type Result struct {
	Included []FileInfo

	// Empty is set when nothing survived filtering. Callers must treat
	// this as success-with-zero, not failure.
	Empty   bool
	Warning string

	// LargeRepo is set when the priority-folder refilter ran.
	LargeRepo      bool
	EstimatedLines int64
}

const (
	// Estimated lines per file = bytes / bytesPerLine.
	bytesPerLine = 40

	// largeRepoLineThreshold triggers the priority-folder refilter.
	largeRepoLineThreshold = 50000
)

// binaryExtensions are never indexed.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".ico": true, ".svg": true, ".bmp": true, ".tiff": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".mp3": true, ".mp4": true, ".wav": true, ".avi": true, ".mov": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true, ".rar": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true,
	".wasm": true, ".pyc": true, ".class": true, ".jar": true, ".o": true, ".a": true,
	".db": true, ".sqlite": true, ".lock": true,
}

// excludedDirs are dependency, build, and VCS directories skipped anywhere
// in the tree, regardless of gitignore content.
var excludedDirs = map[string]bool{
	"node_modules": true, ".git": true, "vendor": true, "__pycache__": true,
	"dist": true, "build": true, "out": true, "target": true, "coverage": true,
	".next": true, ".nuxt": true, ".svelte-kit": true, ".turbo": true,
	".venv": true, "venv": true, ".tox": true, ".mypy_cache": true,
	".idea": true, ".vscode": true, ".cache": true, "tmp": true,
	".aws": true, ".ssh": true,
}

// excludedFilePatterns cover lockfiles and minified/generated artifacts.
var excludedFilePatterns = []string{
	"*.min.js", "*.min.css", "*.map",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "bun.lockb",
	"go.sum", "Cargo.lock", "poetry.lock", "Pipfile.lock", "composer.lock",
	"Gemfile.lock", "*.generated.*", "*.pb.go",
}

// sensitiveFilePatterns are never indexed regardless of other rules.
var sensitiveFilePatterns = []string{
	".env", ".env.*", "*.pem", "*.key", "*.p12", "*.pfx",
	"*credentials*", "*secrets*", ".netrc", ".npmrc", ".pypirc",
	"id_rsa", "id_dsa", "id_ecdsa", "id_ed25519",
}

// codeExtensions is the language allowlist, including config formats the
// chunker handles specially.
var codeExtensions = map[string]bool{
	".go": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true, ".py": true, ".rb": true, ".java": true,
	".kt": true, ".rs": true, ".c": true, ".h": true, ".cpp": true,
	".hpp": true, ".cc": true, ".cs": true, ".php": true, ".swift": true,
	".scala": true, ".sql": true, ".sh": true, ".bash": true,
	".prisma": true, ".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".vue": true, ".svelte": true, ".graphql": true, ".proto": true,
}

// priorityFolders is the refilter allowlist for very large repositories.
var priorityFolders = []string{
	"src", "lib", "app", "pkg", "internal", "cmd", "server", "api",
	"components", "pages", "routes", "services", "handlers", "models", "core",
}

// importantRootFiles are always kept first in large-repository mode.
var importantRootFiles = map[string]bool{
	"package.json": true, "schema.prisma": true, "go.mod": true,
	"tsconfig.json": true, "pyproject.toml": true, "Cargo.toml": true,
	"docker-compose.yml": true, "docker-compose.yaml": true,
}

// FilterFiles applies every exclusion rule in order and returns the
// indexable subset. gitignoreText may be empty.
func FilterFiles(files []FileInfo, gitignoreText string) Result {
	matcher := NewGitignoreMatcher(gitignoreText)

	var included []FileInfo
	for _, f := range files {
		if Excluded(f.Path, matcher) {
			continue
		}
		included = append(included, f)
	}

	if len(included) == 0 {
		return Result{
			Empty:   true,
			Warning: "no indexable files after filtering",
		}
	}

	var totalBytes int64
	for _, f := range included {
		totalBytes += f.Size
	}
	estLines := totalBytes / bytesPerLine

	result := Result{Included: included, EstimatedLines: estLines}
	if estLines > largeRepoLineThreshold {
		result.Included = refilterLargeRepo(included)
		result.LargeRepo = true
		if len(result.Included) == 0 {
			result.Empty = true
			result.Warning = "no indexable files after large-repository refilter"
		}
	}
	return result
}

// Excluded reports whether a single path fails any exclusion rule.
// Order: binary extension, excluded directory, excluded pattern,
// sensitive pattern, gitignore, language allowlist.
func Excluded(p string, matcher *GitignoreMatcher) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	ext := strings.ToLower(path.Ext(p))
	base := path.Base(p)

	if binaryExtensions[ext] {
		return true
	}
	for _, part := range strings.Split(path.Dir(p), "/") {
		if excludedDirs[part] {
			return true
		}
	}
	for _, pat := range excludedFilePatterns {
		if matchGlob(pat, base) {
			return true
		}
	}
	for _, pat := range sensitiveFilePatterns {
		if matchGlob(pat, base) {
			return true
		}
	}
	if matcher != nil && matcher.Match(p) {
		return true
	}
	return !codeExtensions[ext]
}

// refilterLargeRepo keeps always-important root files first, then files
// under priority folders, greedily accumulating by estimated size until
// the line threshold is met.
func refilterLargeRepo(files []FileInfo) []FileInfo {
	var important, priority []FileInfo
	for _, f := range files {
		switch {
		case importantRootFiles[path.Base(f.Path)] && !strings.Contains(f.Path, "/"):
			important = append(important, f)
		case inPriorityFolder(f.Path):
			priority = append(priority, f)
		}
	}

	var kept []FileInfo
	var lines int64
	for _, f := range append(important, priority...) {
		kept = append(kept, f)
		lines += f.Size / bytesPerLine
		if lines >= largeRepoLineThreshold {
			break
		}
	}
	return kept
}

func inPriorityFolder(p string) bool {
	first, _, found := strings.Cut(p, "/")
	if !found {
		return false
	}
	for _, folder := range priorityFolders {
		if first == folder {
			return true
		}
	}
	return false
}

// matchGlob matches a basename against a simple glob with * wildcards.
func matchGlob(pattern, name string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == name
	}
	matched, err := path.Match(pattern, name)
	if err == nil && matched {
		return true
	}
	// path.Match does not cross a literal with multiple * segments the way
	// we need for "*credentials*"; fall back to substring containment.
	trimmed := strings.Trim(pattern, "*")
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && !strings.Contains(trimmed, "*") {
		return strings.Contains(name, trimmed)
	}
	return false
}
