package index

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rishabh0208/health-buddy/internal/chunk"
)

// Flat is an insertion-ordered brute-force similarity index. Within an
// ingestion run it is append-only; once persisted and loaded for serving it is
// read-only. Equal-score ties resolve to the earliest inserted chunk.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
	chunks  []chunk.Chunk
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	return &Flat{dim: dim}, nil
}

// Build constructs a fresh index from an initial batch of pairs.
func Build(dim int, pairs []Pair) (*Flat, error) {
	f, err := NewFlat(dim)
	if err != nil {
		return nil, err
	}
	if err := f.Add(context.Background(), pairs); err != nil {
		return nil, err
	}
	return f, nil
}

// Add appends pairs to the index. It is safe to call repeatedly with small
// batches; each call only touches the new pairs, never re-scans the corpus.
func (f *Flat) Add(_ context.Context, pairs []Pair) error {
	for i, p := range pairs {
		if len(p.Vector) != f.dim {
			return fmt.Errorf("%w: pair %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(p.Vector), f.dim)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range pairs {
		f.vectors = append(f.vectors, p.Vector)
		f.chunks = append(f.chunks, p.Chunk)
	}
	return nil
}

// Len reports the number of stored pairs.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.chunks)
}

// Dimension reports the index vector dimension.
func (f *Flat) Dimension() int { return f.dim }

// Search returns up to k chunks ranked by descending inner product with the
// query vector. k is clamped to the number of stored pairs.
func (f *Flat) Search(_ context.Context, vector []float32, k int) ([]Result, error) {
	if len(vector) != f.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), f.dim)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if k > len(f.chunks) {
		k = len(f.chunks)
	}
	if k <= 0 {
		return nil, nil
	}

	order := make([]int, len(f.vectors))
	scores := make([]float32, len(f.vectors))
	for i, v := range f.vectors {
		order[i] = i
		scores[i] = dot(v, vector)
	}

	// Stable sort keeps insertion order among equal scores, so the earliest
	// inserted chunk wins ties.
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	results := make([]Result, k)
	for i := 0; i < k; i++ {
		j := order[i]
		results[i] = Result{Chunk: f.chunks[j], Score: scores[j]}
	}
	return results, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// snapshot is the on-disk representation of a Flat index.
type snapshot struct {
	Dim     int
	Vectors [][]float32
	Chunks  []chunk.Chunk
}

// Save writes the index to path. The file is written to a temporary sibling
// and atomically renamed, so a crash mid-save never leaves a partial index
// that a later Load would treat as valid.
func (f *Flat) Save(path string) error {
	f.mu.RLock()
	snap := snapshot{Dim: f.dim, Vectors: f.vectors, Chunks: f.chunks}
	f.mu.RUnlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish index file: %w", err)
	}
	return nil
}

// Load reads a persisted index from path. A missing or corrupt file yields
// ErrUnavailable so callers can degrade gracefully instead of crashing on an
// unrelated error type.
func Load(path string) (*Flat, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, path, err)
	}
	if snap.Dim <= 0 || len(snap.Vectors) != len(snap.Chunks) {
		return nil, fmt.Errorf("%w: %s is malformed", ErrUnavailable, path)
	}
	for i, v := range snap.Vectors {
		if len(v) != snap.Dim {
			return nil, fmt.Errorf("%w: %s vector %d has wrong dimension", ErrUnavailable, path, i)
		}
	}

	return &Flat{dim: snap.Dim, vectors: snap.Vectors, chunks: snap.Chunks}, nil
}
