// Package index provides similarity indexes over (vector, chunk) pairs.
//
// Two backends share one search contract: Flat, an in-process index persisted
// to a single file, and Qdrant, a remote collection for deployments that run a
// Qdrant server. Both rank by inner product, which equals cosine similarity
// because every stored vector is unit-normalized.
package index

import (
	"context"
	"errors"

	"github.com/rishabh0208/health-buddy/internal/chunk"
)

var (
	// ErrUnavailable reports that an index could not be loaded or reached.
	// Retrieval degrades to empty results on this error; it is not fatal to serving.
	ErrUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch reports a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Pair couples an embedding vector with the chunk it was computed from.
type Pair struct {
	Vector []float32
	Chunk  chunk.Chunk
}

// Result is a single search hit.
type Result struct {
	Chunk chunk.Chunk
	Score float32
}

// Searcher answers top-k similarity queries. Implementations must be safe for
// concurrent readers.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]Result, error)
}
