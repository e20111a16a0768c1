package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishabh0208/health-buddy/internal/chunk"
	"github.com/rishabh0208/health-buddy/internal/embedding"
	"github.com/rishabh0208/health-buddy/internal/index"
)

type failingEmbedder struct{ embedding.Embedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedder down")
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, []float32, int) ([]index.Result, error) {
	return nil, index.ErrUnavailable
}

func buildIndex(t *testing.T, emb embedding.Embedder, texts ...string) *index.Flat {
	t.Helper()
	pairs := make([]index.Pair, len(texts))
	for i, text := range texts {
		v, err := emb.Embed(context.Background(), text)
		require.NoError(t, err)
		pairs[i] = index.Pair{Vector: v, Chunk: chunk.Chunk{Text: text, SourceID: "doc"}}
	}
	idx, err := index.Build(emb.Dimension(), pairs)
	require.NoError(t, err)
	return idx
}

func TestRetrieve_RanksRelevantFirst(t *testing.T) {
	emb := embedding.NewLocal(32)
	idx := buildIndex(t, emb,
		"headaches are often caused by dehydration",
		"a balanced diet supports cycle health",
	)

	svc := New(emb, idx, slog.Default())
	texts := svc.Retrieve(context.Background(), "headaches caused by dehydration", 2)

	require.Len(t, texts, 2)
	assert.Equal(t, "headaches are often caused by dehydration", texts[0])
}

func TestRetrieve_NilSearcher(t *testing.T) {
	svc := New(embedding.NewLocal(32), nil, nil)
	assert.Empty(t, svc.Retrieve(context.Background(), "anything", 5))
}

func TestRetrieve_EmbedFailureDegrades(t *testing.T) {
	emb := embedding.NewLocal(32)
	idx := buildIndex(t, emb, "some chunk")

	svc := New(failingEmbedder{Embedder: emb}, idx, nil)
	assert.Empty(t, svc.Retrieve(context.Background(), "prompt", 5))
}

func TestRetrieve_SearchFailureDegrades(t *testing.T) {
	svc := New(embedding.NewLocal(32), failingSearcher{}, nil)
	assert.Empty(t, svc.Retrieve(context.Background(), "prompt", 5))
}

func TestRetrieve_DefaultK(t *testing.T) {
	emb := embedding.NewLocal(32)
	idx := buildIndex(t, emb, "one", "two", "three")

	svc := New(emb, idx, nil)
	texts := svc.Retrieve(context.Background(), "one two three", 0)
	assert.Len(t, texts, 3, "k<=0 falls back to the default and clamps to corpus size")
}

func TestNewFromFile(t *testing.T) {
	emb := embedding.NewLocal(32)
	idx := buildIndex(t, emb, "persisted chunk about sleep hygiene")

	path := filepath.Join(t.TempDir(), "corpus.index")
	require.NoError(t, idx.Save(path))

	svc := NewFromFile(emb, path, nil)
	texts := svc.Retrieve(context.Background(), "sleep hygiene", 1)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "sleep hygiene")
}

func TestNewFromFile_MissingIndex(t *testing.T) {
	svc := NewFromFile(embedding.NewLocal(32), filepath.Join(t.TempDir(), "missing.index"), nil)
	assert.Empty(t, svc.Retrieve(context.Background(), "prompt", 5))
}
