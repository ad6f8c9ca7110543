// Package source fetches repository structure and file contents from a
// hosting provider. The pipeline consumes it through the Source
// interface so tests can substitute an in-memory implementation.
package source

import "context"

// FileEntry is one blob in a repository tree.
type FileEntry struct {
	Path string
	Size int
	SHA  string
}

// Structure is the full shape of a repository at one commit.
type Structure struct {
	Files     []FileEntry
	Gitignore string
	CommitSHA string
}

// FileContent is the decoded content of a single file.
type FileContent struct {
	Content string
	SHA     string
	Size    int
}

// Source is the hosting-provider surface the pipeline depends on.
type Source interface {
	// FetchStructure lists every file in the repository at the given
	// branch (default branch when empty), along with the root
	// .gitignore text if one exists.
	FetchStructure(ctx context.Context, owner, repo, branch string) (*Structure, error)

	// FetchFileContent returns the decoded content of one file. When
	// sha is non-empty the blob API is used directly, skipping a path
	// resolution round-trip.
	FetchFileContent(ctx context.Context, owner, repo, path, sha string) (*FileContent, error)
}
