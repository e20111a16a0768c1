package docsource

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileSource reads .txt and .md files under a directory tree. Files are
// discovered up front but read lazily, one per Next call; markdown files are
// split into per-section documents.
type FileSource struct {
	root    string
	paths   []string
	pending []Document
}

// NewFileSource walks root and collects every .txt and .md file, in sorted
// order so repeated ingestion runs see a deterministic document sequence.
func NewFileSource(root string) (*FileSource, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .txt or .md documents under %s", root)
	}
	sort.Strings(paths)

	return &FileSource{root: root, paths: paths}, nil
}

// Next returns the next document, or io.EOF when the corpus is exhausted.
func (s *FileSource) Next(ctx context.Context) (Document, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		if len(s.pending) > 0 {
			doc := s.pending[0]
			s.pending = s.pending[1:]
			return doc, nil
		}
		if len(s.paths) == 0 {
			return Document{}, io.EOF
		}

		path := s.paths[0]
		s.paths = s.paths[1:]

		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, fmt.Errorf("read %s: %w", path, err)
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			rel = path
		}

		if strings.EqualFold(filepath.Ext(path), ".md") {
			docs, err := SplitMarkdown(rel, data)
			if err != nil {
				return Document{}, fmt.Errorf("split %s: %w", path, err)
			}
			s.pending = docs
			continue
		}

		text := strings.TrimSpace(string(data))
		if text == "" {
			continue // skip blank files
		}
		return Document{SourceID: rel, Text: text}, nil
	}
}
