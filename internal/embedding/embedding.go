// Package embedding maps text to fixed-dimension unit-normalized vectors.
//
// A single Embedder instance must be shared between ingestion and retrieval:
// corpus vectors and query vectors produced by different embedding functions
// silently degrade ranking quality instead of erroring.
package embedding

import (
	"context"
	"math"
)

// Embedder converts text into L2-normalized vectors. Implementations must be
// safe for concurrent use and must load any underlying model exactly once.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension reports the fixed output vector length.
	Dimension() int
}

// Normalize scales v to unit L2 norm in place and returns it.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
