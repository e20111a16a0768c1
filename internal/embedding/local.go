package embedding

import (
	"context"
	"hash/fnv"
	"strings"
)

// LocalDimension matches the all-MiniLM family of sentence encoders.
const LocalDimension = 384

// Local is a deterministic, dependency-free embedder that hashes tokens into
// dimension buckets and mean-pools the result. Ranking quality is far below a
// real model; it exists for offline development and tests, where determinism
// and speed matter more than semantics.
type Local struct {
	dim int
}

// NewLocal creates a local embedder. If dim is 0, LocalDimension is used.
func NewLocal(dim int) *Local {
	if dim <= 0 {
		dim = LocalDimension
	}
	return &Local{dim: dim}
}

// Dimension reports the output vector length.
func (l *Local) Dimension() int { return l.dim }

// Embed returns a unit vector derived from the text's token hashes.
func (l *Local) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, l.dim)

	tokens := strings.Fields(strings.ToLower(text))
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()

		bucket := int(sum % uint32(l.dim))
		// Sign from a bit the bucket index doesn't depend on, so collisions
		// don't systematically reinforce.
		if sum&0x80000000 != 0 {
			v[bucket] -= 1
		} else {
			v[bucket] += 1
		}
	}
	if len(tokens) > 0 {
		inv := 1 / float32(len(tokens))
		for i := range v {
			v[i] *= inv
		}
	}

	return Normalize(v), nil
}

// EmbedBatch embeds each text independently, in order.
func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := l.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}
