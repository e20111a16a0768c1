package docsource

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// GitHubSource streams markdown documents from a directory of a GitHub
// repository, for corpora maintained as docs repos rather than local files.
// Listing happens on the first Next call; files are fetched one at a time.
type GitHubSource struct {
	client   *github.Client
	owner    string
	repo     string
	basePath string

	listed  bool
	paths   []string
	pending []Document
}

// NewGitHubSource creates a source over owner/repo limited to basePath.
// Requests go through a rate-limit-aware transport; a non-empty token
// authenticates the client for higher limits.
func NewGitHubSource(owner, repo, basePath, token string) (*GitHubSource, error) {
	transport, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("create rate limit transport: %w", err)
	}

	client := github.NewClient(transport)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &GitHubSource{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
	}, nil
}

// Next returns the next section document, or io.EOF when the repository
// directory is exhausted.
func (s *GitHubSource) Next(ctx context.Context) (Document, error) {
	if !s.listed {
		paths, err := s.list(ctx, s.basePath, "")
		if err != nil {
			return Document{}, fmt.Errorf("list %s/%s: %w", s.owner, s.repo, err)
		}
		s.paths = paths
		s.listed = true
	}

	for {
		if len(s.pending) > 0 {
			doc := s.pending[0]
			s.pending = s.pending[1:]
			return doc, nil
		}
		if len(s.paths) == 0 {
			return Document{}, io.EOF
		}

		rel := s.paths[0]
		s.paths = s.paths[1:]

		content, err := s.fetch(ctx, rel)
		if err != nil {
			return Document{}, err
		}

		docs, err := SplitMarkdown(rel, content)
		if err != nil {
			return Document{}, fmt.Errorf("split %s: %w", rel, err)
		}
		s.pending = docs
	}
}

// list recursively collects .md paths relative to basePath.
func (s *GitHubSource) list(ctx context.Context, fullPath, relPath string) ([]string, error) {
	_, entries, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("get contents of %s: %w", fullPath, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.Type == nil || entry.Name == nil {
			continue
		}
		entryRel := path.Join(relPath, *entry.Name)

		switch *entry.Type {
		case "file":
			if strings.HasSuffix(*entry.Name, ".md") {
				paths = append(paths, entryRel)
			}
		case "dir":
			sub, err := s.list(ctx, path.Join(fullPath, *entry.Name), entryRel)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
		}
	}
	return paths, nil
}

// fetch downloads and decodes one file.
func (s *GitHubSource) fetch(ctx context.Context, rel string) ([]byte, error) {
	full := path.Join(s.basePath, rel)

	file, _, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, full, nil)
	if err != nil {
		return nil, fmt.Errorf("get content of %s: %w", full, err)
	}
	if file == nil || file.Content == nil {
		return nil, fmt.Errorf("no file content returned for %s", full)
	}

	content, err := base64.StdEncoding.DecodeString(*file.Content)
	if err != nil {
		return nil, fmt.Errorf("decode content of %s: %w", full, err)
	}
	return content, nil
}
