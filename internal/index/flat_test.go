package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rishabh0208/health-buddy/internal/chunk"
)

func pair(text string, vector ...float32) Pair {
	return Pair{Vector: vector, Chunk: chunk.Chunk{Text: text, SourceID: "test"}}
}

func TestFlat_SearchRanking(t *testing.T) {
	idx, err := Build(3, []Pair{
		pair("east", 1, 0, 0),
		pair("north", 0, 1, 0),
		pair("up", 0, 0, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	// k larger than the index clamps to stored size.
	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Chunk.Text != "east" {
		t.Errorf("top result: expected %q, got %q", "east", results[0].Chunk.Text)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending score order at %d", i)
		}
	}
}

func TestFlat_TiesBreakByInsertionOrder(t *testing.T) {
	idx, err := Build(2, []Pair{
		pair("second-axis", 0, 1),
		pair("first-equal", 1, 0),
		pair("second-equal", 1, 0),
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Chunk.Text != "first-equal" || results[1].Chunk.Text != "second-equal" {
		t.Errorf("tie not broken by insertion order: %q, %q",
			results[0].Chunk.Text, results[1].Chunk.Text)
	}
}

func TestFlat_AddDimensionMismatch(t *testing.T) {
	idx, err := NewFlat(3)
	if err != nil {
		t.Fatal(err)
	}
	err = idx.Add(context.Background(), []Pair{pair("short", 1, 0)})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestFlat_SaveLoadRoundTrip(t *testing.T) {
	idx, err := Build(3, []Pair{
		pair("alpha", 0.9, 0.1, 0),
		pair("beta", 0.1, 0.9, 0),
		pair("gamma", 0, 0.2, 0.8),
	})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "corpus.index")
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != idx.Len() {
		t.Fatalf("loaded %d pairs, expected %d", loaded.Len(), idx.Len())
	}

	query := []float32{0.5, 0.5, 0}
	before, err := idx.Search(context.Background(), query, 3)
	if err != nil {
		t.Fatal(err)
	}
	after, err := loaded.Search(context.Background(), query, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Fatalf("result counts differ: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].Chunk != after[i].Chunk {
			t.Errorf("result %d differs after round trip: %+v vs %+v", i, before[i], after[i])
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.index"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.index")
	if err := os.WriteFile(path, []byte("not a gob stream"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestFlat_IncrementalAddPreservesOrder(t *testing.T) {
	idx, err := NewFlat(2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := idx.Add(ctx, []Pair{pair("batch-one", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, []Pair{pair("batch-two", 1, 0)}); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Chunk.Text != "batch-one" {
		t.Errorf("earlier batch should win ties, got %q first", results[0].Chunk.Text)
	}
}
