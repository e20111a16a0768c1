// Package retrieval answers "which corpus chunks are relevant to this prompt"
// for the conversation path. Retrieval is strictly best-effort: any failure
// degrades to an empty result so a broken index never blocks a reply.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/rishabh0208/health-buddy/internal/embedding"
	"github.com/rishabh0208/health-buddy/internal/index"
)

// DefaultTopK is the number of chunks retrieved per prompt.
const DefaultTopK = 5

// Service embeds prompts and searches the index for relevant chunks.
type Service struct {
	embedder embedding.Embedder
	searcher index.Searcher
	logger   *slog.Logger
}

// New creates a retrieval service. searcher may be nil, in which case every
// retrieval returns no chunks.
func New(embedder embedding.Embedder, searcher index.Searcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embedder: embedder, searcher: searcher, logger: logger}
}

// NewFromFile loads a persisted index from path and wraps it in a service.
// If the index is missing or corrupt the service is still usable; it logs the
// problem and serves empty results until the process is restarted with a
// rebuilt index.
func NewFromFile(embedder embedding.Embedder, path string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	idx, err := index.Load(path)
	if err != nil {
		logger.Warn("index unavailable, retrieval disabled", "path", path, "error", err)
		return New(embedder, nil, logger)
	}

	logger.Info("loaded index", "path", path, "chunks", idx.Len(), "dimension", idx.Dimension())
	return New(embedder, idx, logger)
}

// Retrieve returns the texts of up to k chunks relevant to prompt, most
// relevant first. Embedding or search failures are logged and reported as an
// empty result, never an error.
func (s *Service) Retrieve(ctx context.Context, prompt string, k int) []string {
	if s.searcher == nil {
		return nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	vector, err := s.embedder.Embed(ctx, prompt)
	if err != nil {
		s.logger.Warn("prompt embedding failed, skipping retrieval", "error", err)
		return nil
	}

	results, err := s.searcher.Search(ctx, vector, k)
	if err != nil {
		s.logger.Warn("index search failed, skipping retrieval", "error", err)
		return nil
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Chunk.Text)
	}
	return texts
}
