package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishabh0208/health-buddy/internal/docsource"
	"github.com/rishabh0208/health-buddy/internal/embedding"
	"github.com/rishabh0208/health-buddy/internal/index"
)

// sliceSource yields a fixed set of documents.
type sliceSource struct {
	docs []docsource.Document
	i    int
}

func (s *sliceSource) Next(ctx context.Context) (docsource.Document, error) {
	if s.i >= len(s.docs) {
		return docsource.Document{}, io.EOF
	}
	doc := s.docs[s.i]
	s.i++
	return doc, nil
}

// countingEmbedder counts embedding calls to verify checkpoint reuse.
type countingEmbedder struct {
	embedding.Embedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.Embedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.Embedder.EmbedBatch(ctx, texts)
}

// fakeRemote is an in-memory RemoteTarget tracking every inserted pair.
type fakeRemote struct {
	points []index.Pair
	clears int
}

func (r *fakeRemote) EnsureCollection(context.Context) error { return nil }

func (r *fakeRemote) Count(context.Context) (uint64, error) {
	return uint64(len(r.points)), nil
}

func (r *fakeRemote) Clear(context.Context) error {
	r.clears++
	r.points = nil
	return nil
}

func (r *fakeRemote) Add(_ context.Context, pairs []index.Pair) error {
	r.points = append(r.points, pairs...)
	return nil
}

func testConfig(t *testing.T, emb embedding.Embedder) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		Embedder:       emb,
		CheckpointPath: filepath.Join(dir, "embeddings.json"),
		IndexPath:      filepath.Join(dir, "corpus.index"),
		InsertPause:    time.Millisecond,
	}
}

func corpus() *sliceSource {
	return &sliceSource{docs: []docsource.Document{
		{SourceID: "a.txt", Text: "headaches are commonly caused by dehydration stress or lack of sleep"},
		{SourceID: "b.txt", Text: "regular menstrual cycles typically span twenty one to thirty five days"},
	}}
}

func TestPipeline_RunProducesLoadableIndex(t *testing.T) {
	emb := embedding.NewLocal(32)
	cfg := testConfig(t, emb)

	p, err := New(cfg)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), corpus())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Documents)
	assert.Greater(t, result.Chunks, 0)
	assert.True(t, result.EmbeddingsComputed)
	assert.True(t, result.IndexBuilt)

	idx, err := index.Load(cfg.IndexPath)
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, idx.Len())

	query, err := emb.Embed(context.Background(), "headaches caused by dehydration")
	require.NoError(t, err)
	results, err := idx.Search(context.Background(), query, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.txt", results[0].Chunk.SourceID)
}

func TestPipeline_IdempotentWithCheckpoints(t *testing.T) {
	counting := &countingEmbedder{Embedder: embedding.NewLocal(32)}
	cfg := testConfig(t, counting)

	p, err := New(cfg)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), corpus())
	require.NoError(t, err)
	firstCalls := counting.calls.Load()
	require.Greater(t, firstCalls, int64(0))

	firstIndex, err := os.ReadFile(cfg.IndexPath)
	require.NoError(t, err)

	// Second run: checkpoint and index both present, so no embedding work and
	// an untouched index file.
	result, err := p.Run(context.Background(), corpus())
	require.NoError(t, err)

	assert.Equal(t, firstCalls, counting.calls.Load(), "re-run recomputed embeddings")
	assert.False(t, result.EmbeddingsComputed)
	assert.False(t, result.IndexBuilt)

	secondIndex, err := os.ReadFile(cfg.IndexPath)
	require.NoError(t, err)
	assert.Equal(t, firstIndex, secondIndex)
}

func TestPipeline_ResumesFromEmbeddingsCheckpoint(t *testing.T) {
	counting := &countingEmbedder{Embedder: embedding.NewLocal(32)}
	cfg := testConfig(t, counting)

	p, err := New(cfg)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), corpus())
	require.NoError(t, err)
	calls := counting.calls.Load()

	// Simulate a crash after the embeddings checkpoint but before the index
	// was published.
	require.NoError(t, os.Remove(cfg.IndexPath))

	result, err := p.Run(context.Background(), corpus())
	require.NoError(t, err)

	assert.Equal(t, calls, counting.calls.Load(), "resume recomputed embeddings")
	assert.True(t, result.IndexBuilt)
	_, err = index.Load(cfg.IndexPath)
	assert.NoError(t, err)
}

func TestPipeline_CorruptCheckpointAborts(t *testing.T) {
	cfg := testConfig(t, embedding.NewLocal(32))
	require.NoError(t, os.WriteFile(cfg.CheckpointPath, []byte("{truncated"), 0o644))

	p, err := New(cfg)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), corpus())
	assert.Error(t, err)
}

func TestPipeline_InsertionOrderAcrossBatches(t *testing.T) {
	emb := embedding.NewLocal(32)
	cfg := testConfig(t, emb)
	cfg.InsertBatch = 1 // force one pair per batch

	// Two identical chunks: tie must resolve to the earlier document.
	src := &sliceSource{docs: []docsource.Document{
		{SourceID: "first", Text: "identical words here"},
		{SourceID: "second", Text: "identical words here"},
	}}

	p, err := New(cfg)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), src)
	require.NoError(t, err)

	idx, err := index.Load(cfg.IndexPath)
	require.NoError(t, err)

	query, err := emb.Embed(context.Background(), "identical words here")
	require.NoError(t, err)
	results, err := idx.Search(context.Background(), query, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Chunk.SourceID)
	assert.Equal(t, "second", results[1].Chunk.SourceID)
}

func TestPipeline_RemoteRunDoesNotDuplicate(t *testing.T) {
	counting := &countingEmbedder{Embedder: embedding.NewLocal(32)}
	cfg := testConfig(t, counting)
	cfg.IndexPath = ""
	remote := &fakeRemote{}
	cfg.Remote = remote

	p, err := New(cfg)
	require.NoError(t, err)

	first, err := p.Run(context.Background(), corpus())
	require.NoError(t, err)
	assert.True(t, first.IndexBuilt)
	inserted := len(remote.points)
	require.Greater(t, inserted, 0)
	calls := counting.calls.Load()

	// Second run: checkpoint present and collection fully populated, so no
	// embedding work and no new points.
	second, err := p.Run(context.Background(), corpus())
	require.NoError(t, err)

	assert.False(t, second.EmbeddingsComputed)
	assert.False(t, second.IndexBuilt)
	assert.Equal(t, calls, counting.calls.Load())
	assert.Len(t, remote.points, inserted, "re-run duplicated points")
	assert.Zero(t, remote.clears)
}

func TestPipeline_RemoteClearsPartialCollection(t *testing.T) {
	cfg := testConfig(t, embedding.NewLocal(32))
	cfg.IndexPath = ""
	remote := &fakeRemote{}
	cfg.Remote = remote

	p, err := New(cfg)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), corpus())
	require.NoError(t, err)
	total := len(remote.points)
	require.Greater(t, total, 1)

	// Simulate an interrupted run that left the collection half filled.
	remote.points = remote.points[:total-1]

	result, err := p.Run(context.Background(), corpus())
	require.NoError(t, err)

	assert.True(t, result.IndexBuilt)
	assert.Equal(t, 1, remote.clears)
	assert.Len(t, remote.points, total, "rebuild must restore the full corpus exactly once")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Embedder: embedding.NewLocal(8)})
	assert.Error(t, err)

	_, err = New(Config{Embedder: embedding.NewLocal(8), CheckpointPath: "cp.json"})
	assert.Error(t, err, "needs an index path or remote target")
}
