package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/rishabh0208/health-buddy/internal/chunk"
)

// DefaultCollection is the Qdrant collection holding corpus chunks.
const DefaultCollection = "health_chunks"

// qdrantUpsertBatch caps points per upsert request.
const qdrantUpsertBatch = 100

// Qdrant indexes chunks in a remote Qdrant collection. It satisfies the same
// Searcher contract as Flat for deployments that already run a Qdrant server;
// persistence is the server's concern, so Save/Load do not apply.
//
// Each point carries an insertion ordinal as its ID. Qdrant does not promise
// a tie-break among equal scores, so ordering for exact ties is best-effort
// here, unlike Flat.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dim        int

	mu   sync.Mutex
	next uint64 // next insertion ordinal
}

// NewQdrant connects to Qdrant and verifies health with exponential backoff,
// failing fast if the server stays unreachable. An empty collection name
// falls back to DefaultCollection.
func NewQdrant(host string, port int, collection string, dim int) (*Qdrant, error) {
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	q := &Qdrant{client: client, collection: collection, dim: dim}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	ctx := context.Background()
	if err := backoff.Retry(func() error { return q.health(ctx) }, b); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return q, nil
}

func (q *Qdrant) health(ctx context.Context) error {
	result, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the chunk collection if it does not exist and
// primes the insertion ordinal from the current point count. Idempotent.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}

	exists := false
	for _, name := range collections {
		if name == q.collection {
			exists = true
			break
		}
	}

	if !exists {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}

	count, err := q.Count(ctx)
	if err != nil {
		return err
	}

	q.mu.Lock()
	q.next = count
	q.mu.Unlock()
	return nil
}

// Count reports the number of points currently stored in the collection.
func (q *Qdrant) Count(ctx context.Context) (uint64, error) {
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return count, nil
}

// Clear drops and recreates the collection. Used when re-ingesting a corpus.
func (q *Qdrant) Clear(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return q.EnsureCollection(ctx)
}

// Add upserts pairs in batches, assigning consecutive insertion ordinals as
// point IDs. Transient failures are retried with exponential backoff.
func (q *Qdrant) Add(ctx context.Context, pairs []Pair) error {
	for i, p := range pairs {
		if len(p.Vector) != q.dim {
			return fmt.Errorf("%w: pair %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(p.Vector), q.dim)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for start := 0; start < len(pairs); start += qdrantUpsertBatch {
		end := min(start+qdrantUpsertBatch, len(pairs))
		batch := pairs[start:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for i, p := range batch {
			ord := q.next + uint64(start+i)
			points[i] = &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(ord),
				Vectors: qdrant.NewVectors(p.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"text":      p.Chunk.Text,
					"source_id": p.Chunk.SourceID,
					"ord":       int64(ord),
				}),
			}
		}

		if err := q.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}

	q.next += uint64(len(pairs))
	return nil
}

func (q *Qdrant) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// Search returns up to k chunks ranked by descending cosine similarity.
func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if len(vector) != q.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), q.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, point := range points {
		results = append(results, Result{
			Chunk: chunk.Chunk{
				Text:     point.Payload["text"].GetStringValue(),
				SourceID: point.Payload["source_id"].GetStringValue(),
			},
			Score: point.Score,
		})
	}
	return results, nil
}

// Close releases the client connection.
func (q *Qdrant) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
