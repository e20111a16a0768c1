// Package ingest orchestrates the offline path from raw documents to a
// persisted vector index: extraction, chunking, embedding, batched index
// insertion, and durable publication.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/rishabh0208/health-buddy/internal/chunk"
	"github.com/rishabh0208/health-buddy/internal/docsource"
	"github.com/rishabh0208/health-buddy/internal/embedding"
	"github.com/rishabh0208/health-buddy/internal/index"
)

const (
	// DefaultEmbedBatch is the number of chunks embedded per batch.
	DefaultEmbedBatch = 16

	// DefaultEmbedConcurrency bounds embedding batches in flight at once.
	DefaultEmbedConcurrency = 4

	// DefaultInsertBatch is the number of pairs added to the index per batch.
	// Small batches bound peak memory while the index grows.
	DefaultInsertBatch = 50

	// DefaultInsertPause is the breather between index insertion batches,
	// trading ingestion latency for memory reclaim. Not a correctness knob.
	DefaultInsertPause = 500 * time.Millisecond
)

// RemoteTarget is an index backend whose persistence is managed elsewhere
// (e.g. a Qdrant collection). When configured, the pipeline inserts into it
// instead of building and saving a local flat index. Count and Clear let the
// pipeline treat the collection as a checkpoint: a fully populated collection
// is skipped, a partially populated one is rebuilt.
type RemoteTarget interface {
	EnsureCollection(ctx context.Context) error
	Count(ctx context.Context) (uint64, error)
	Clear(ctx context.Context) error
	Add(ctx context.Context, pairs []index.Pair) error
}

// Config collects pipeline dependencies and tuning. Zero values fall back to
// the defaults above.
type Config struct {
	Embedder       embedding.Embedder
	CheckpointPath string // precomputed embeddings artifact
	IndexPath      string // persisted flat index (ignored with Remote set)
	Remote         RemoteTarget

	ChunkSize        int
	EmbedBatch       int
	EmbedConcurrency int
	InsertBatch      int
	InsertPause      time.Duration

	Logger *slog.Logger
}

// Result summarizes one ingestion run.
type Result struct {
	Documents          int
	Chunks             int
	EmbeddingsComputed bool // false when the checkpoint was reused
	IndexBuilt         bool // false when an existing index was kept
	Duration           time.Duration
}

// Pipeline converts a document source into a searchable, persisted index.
// Runs are idempotent at two checkpoints: the embeddings artifact and the
// index itself. Each checkpoint is complete-or-absent, so re-running after a
// partial failure redoes only the unfinished stage.
type Pipeline struct {
	embedder       embedding.Embedder
	checkpointPath string
	indexPath      string
	remote         RemoteTarget

	chunkSize        int
	embedBatch       int
	embedConcurrency int
	insertBatch      int
	insertPause      time.Duration

	logger *slog.Logger
}

// New creates a pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.CheckpointPath == "" {
		return nil, errors.New("checkpoint path is required")
	}
	if cfg.IndexPath == "" && cfg.Remote == nil {
		return nil, errors.New("index path or remote target is required")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultTargetSize
	}
	if cfg.EmbedBatch <= 0 {
		cfg.EmbedBatch = DefaultEmbedBatch
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = DefaultEmbedConcurrency
	}
	if cfg.InsertBatch <= 0 {
		cfg.InsertBatch = DefaultInsertBatch
	}
	if cfg.InsertPause <= 0 {
		cfg.InsertPause = DefaultInsertPause
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{
		embedder:         cfg.Embedder,
		checkpointPath:   cfg.CheckpointPath,
		indexPath:        cfg.IndexPath,
		remote:           cfg.Remote,
		chunkSize:        cfg.ChunkSize,
		embedBatch:       cfg.EmbedBatch,
		embedConcurrency: cfg.EmbedConcurrency,
		insertBatch:      cfg.InsertBatch,
		insertPause:      cfg.InsertPause,
		logger:           cfg.Logger,
	}, nil
}

// Run executes the full ingestion flow against source.
func (p *Pipeline) Run(ctx context.Context, source docsource.Source) (*Result, error) {
	start := time.Now()
	result := &Result{}

	entries, err := p.loadOrComputeEmbeddings(ctx, source, result)
	if err != nil {
		return nil, err
	}
	result.Chunks = len(entries)

	var built bool
	if p.remote != nil {
		built, err = p.insertRemote(ctx, entries)
	} else {
		built, err = p.buildLocal(ctx, entries)
	}
	if err != nil {
		return nil, err
	}
	result.IndexBuilt = built

	result.Duration = time.Since(start)
	p.logger.Info("ingestion complete",
		"documents", result.Documents,
		"chunks", result.Chunks,
		"embeddings_computed", result.EmbeddingsComputed,
		"index_built", result.IndexBuilt,
		"duration", result.Duration,
	)
	return result, nil
}

// loadOrComputeEmbeddings returns the (chunk, vector) pairs for the corpus,
// reusing the checkpoint when present. Embeddings are always durably
// checkpointed before index construction begins: the vectors are the
// expensive artifact and must survive a later index failure.
func (p *Pipeline) loadOrComputeEmbeddings(ctx context.Context, source docsource.Source, result *Result) ([]checkpointEntry, error) {
	entries, ok, err := readCheckpoint(p.checkpointPath)
	if err != nil {
		return nil, err
	}
	if ok {
		p.logger.Info("reusing embeddings checkpoint", "path", p.checkpointPath, "chunks", len(entries))
		return entries, nil
	}

	chunks, docs, err := p.extractChunks(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("extract documents: %w", err)
	}
	result.Documents = docs
	p.logger.Info("extracted corpus", "documents", docs, "chunks", len(chunks))

	vectors, err := p.embedAll(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	result.EmbeddingsComputed = true

	entries = make([]checkpointEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = checkpointEntry{Text: c.Text, SourceID: c.SourceID, Vector: vectors[i]}
	}

	if err := writeCheckpoint(p.checkpointPath, entries); err != nil {
		return nil, err
	}
	p.logger.Info("wrote embeddings checkpoint", "path", p.checkpointPath)
	return entries, nil
}

// extractChunks drains the source and chunks every document.
func (p *Pipeline) extractChunks(ctx context.Context, source docsource.Source) ([]chunk.Chunk, int, error) {
	var chunks []chunk.Chunk
	docs := 0

	for {
		doc, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return chunks, docs, nil
		}
		if err != nil {
			return nil, 0, err
		}
		docs++
		chunks = append(chunks, chunk.Split(doc.Text, doc.SourceID, p.chunkSize)...)
	}
}

// embedAll computes vectors for all chunks. Batches run concurrently up to
// embedConcurrency; output order matches input order regardless of completion
// order, keeping insertion-order semantics intact downstream.
func (p *Pipeline) embedAll(ctx context.Context, chunks []chunk.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.embedConcurrency)

	for start := 0; start < len(texts); start += p.embedBatch {
		start := start
		end := min(start+p.embedBatch, len(texts))

		g.Go(func() error {
			batch, err := p.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// buildLocal constructs and saves the flat index unless one already exists.
// Returns whether a new index was built.
func (p *Pipeline) buildLocal(ctx context.Context, entries []checkpointEntry) (bool, error) {
	if _, err := os.Stat(p.indexPath); err == nil {
		p.logger.Info("index already exists, skipping build", "path", p.indexPath)
		return false, nil
	}

	dim := p.embedder.Dimension()
	if len(entries) > 0 {
		dim = len(entries[0].Vector)
	}
	idx, err := index.NewFlat(dim)
	if err != nil {
		return false, err
	}

	if err := p.insertBatches(ctx, entries, func(batch []index.Pair) error {
		return idx.Add(ctx, batch)
	}); err != nil {
		return false, err
	}

	// The embeddings are already checkpointed; retrying the save is cheap
	// compared to losing a fully built index to a transient filesystem error.
	save := func() error { return idx.Save(p.indexPath) }
	if err := backoff.Retry(save, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)); err != nil {
		return false, fmt.Errorf("save index: %w", err)
	}

	p.logger.Info("saved index", "path", p.indexPath, "chunks", idx.Len())
	return true, nil
}

// insertRemote pushes all pairs into the remote backend in paced batches.
// Re-runs never duplicate points: a collection that already holds the full
// corpus is left untouched, and a partially filled collection from an
// interrupted run is cleared before re-inserting. Returns whether points
// were inserted.
func (p *Pipeline) insertRemote(ctx context.Context, entries []checkpointEntry) (bool, error) {
	if err := p.remote.EnsureCollection(ctx); err != nil {
		return false, fmt.Errorf("ensure collection: %w", err)
	}

	count, err := p.remote.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count collection: %w", err)
	}
	if count > 0 && count == uint64(len(entries)) {
		p.logger.Info("collection already populated, skipping insert", "points", count)
		return false, nil
	}
	if count > 0 {
		p.logger.Warn("clearing partially populated collection", "points", count, "expected", len(entries))
		if err := p.remote.Clear(ctx); err != nil {
			return false, fmt.Errorf("clear collection: %w", err)
		}
	}

	if err := p.insertBatches(ctx, entries, func(batch []index.Pair) error {
		return p.remote.Add(ctx, batch)
	}); err != nil {
		return false, err
	}
	return true, nil
}

// insertBatches applies pairs strictly in order, insertBatch at a time, with a
// pause between batches so memory can be reclaimed during large ingests.
func (p *Pipeline) insertBatches(ctx context.Context, entries []checkpointEntry, add func([]index.Pair) error) error {
	for start := 0; start < len(entries); start += p.insertBatch {
		end := min(start+p.insertBatch, len(entries))

		batch := make([]index.Pair, 0, end-start)
		for _, e := range entries[start:end] {
			batch = append(batch, index.Pair{
				Vector: e.Vector,
				Chunk:  chunk.Chunk{Text: e.Text, SourceID: e.SourceID},
			})
		}

		if err := add(batch); err != nil {
			return fmt.Errorf("insert batch %d-%d: %w", start, end, err)
		}
		p.logger.Debug("inserted batch", "from", start, "to", end)

		if end < len(entries) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.insertPause):
			}
		}
	}
	return nil
}
