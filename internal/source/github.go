package source

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/errors"
)

const defaultTimeout = 30 * time.Second

// GitHubSource implements Source against the GitHub REST API. Outbound
// calls are paced by a token bucket so concurrent pipeline runs share
// one budget per client.
type GitHubSource struct {
	client  *gh.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGitHubSource builds a client from configuration. An empty token
// yields an unauthenticated client, which works for public
// repositories at much lower rate limits.
func NewGitHubSource(cfg config.SourceConfig, logger *slog.Logger) (*GitHubSource, error) {
	httpClient := &http.Client{Timeout: defaultTimeout}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = defaultTimeout
	}

	client := gh.NewClient(httpClient)
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, errors.ConfigError("invalid source base URL", err)
		}
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	return &GitHubSource{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		logger:  logger.With("component", "source"),
	}, nil
}

// FetchStructure resolves the branch head and lists the full tree
// recursively in one API call, then pulls the root .gitignore when the
// tree advertises one.
func (s *GitHubSource) FetchStructure(ctx context.Context, owner, repo, branch string) (*Structure, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if branch == "" {
		repository, _, err := s.client.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return nil, s.wrapError(err, owner+"/"+repo)
		}
		branch = repository.GetDefaultBranch()
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ref, _, err := s.client.Git.GetRef(ctx, owner, repo, "heads/"+branch)
	if err != nil {
		return nil, s.wrapError(err, owner+"/"+repo+"@"+branch)
	}
	commitSHA := ref.GetObject().GetSHA()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	tree, _, err := s.client.Git.GetTree(ctx, owner, repo, commitSHA, true)
	if err != nil {
		return nil, s.wrapError(err, owner+"/"+repo)
	}
	if tree.GetTruncated() {
		s.logger.Warn("repository tree truncated by API", "repo", owner+"/"+repo)
	}

	structure := &Structure{CommitSHA: commitSHA}
	var gitignoreSHA string
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		p := entry.GetPath()
		if p == ".gitignore" {
			gitignoreSHA = entry.GetSHA()
		}
		structure.Files = append(structure.Files, FileEntry{
			Path: p,
			Size: entry.GetSize(),
			SHA:  entry.GetSHA(),
		})
	}

	if gitignoreSHA != "" {
		content, err := s.FetchFileContent(ctx, owner, repo, ".gitignore", gitignoreSHA)
		if err != nil {
			// Missing gitignore just means no extra exclusions.
			s.logger.Warn("gitignore fetch failed", "repo", owner+"/"+repo, "error", err)
		} else {
			structure.Gitignore = content.Content
		}
	}

	s.logger.Debug("fetched repository structure",
		"repo", owner+"/"+repo, "commit", commitSHA, "files", len(structure.Files))
	return structure, nil
}

// FetchFileContent fetches one file. With a blob SHA it uses the Git
// data API, which has no 1MB contents-endpoint limit.
func (s *GitHubSource) FetchFileContent(ctx context.Context, owner, repo, path, sha string) (*FileContent, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if sha != "" {
		blob, _, err := s.client.Git.GetBlob(ctx, owner, repo, sha)
		if err != nil {
			return nil, s.wrapError(err, path)
		}
		decoded, err := decodeBlob(blob)
		if err != nil {
			return nil, err
		}
		return &FileContent{Content: decoded, SHA: sha, Size: len(decoded)}, nil
	}

	content, _, _, err := s.client.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return nil, s.wrapError(err, path)
	}
	if content == nil {
		return nil, errors.ValidationError("path is a directory: "+path, nil)
	}
	decoded, err := content.GetContent()
	if err != nil {
		return nil, errors.New(errors.ErrCodeProviderResponse, "decode file content", err)
	}
	return &FileContent{Content: decoded, SHA: content.GetSHA(), Size: len(decoded)}, nil
}

func decodeBlob(blob *gh.Blob) (string, error) {
	raw := blob.GetContent()
	if blob.GetEncoding() != "base64" {
		return raw, nil
	}
	// The API inserts newlines into base64 payloads.
	cleaned := strings.ReplaceAll(raw, "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", errors.New(errors.ErrCodeProviderResponse, "decode blob", err)
	}
	return string(decoded), nil
}

// wrapError maps go-github failures onto the shared taxonomy so the
// retry layer can tell rate limits from hard failures.
func (s *GitHubSource) wrapError(err error, subject string) error {
	var rateErr *gh.RateLimitError
	if stderrors.As(err, &rateErr) {
		return errors.RateLimitError("source", err)
	}
	var abuseErr *gh.AbuseRateLimitError
	if stderrors.As(err, &abuseErr) {
		return errors.RateLimitError("source", err)
	}
	var ghErr *gh.ErrorResponse
	if stderrors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return errors.New(errors.ErrCodeSourceNotFound, "not found: "+subject, err).WithDetail("subject", subject)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.AuthError("source", err)
		}
	}
	return errors.TransientError("source", err)
}
