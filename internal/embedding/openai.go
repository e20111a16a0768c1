package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// OpenAIModel is the embedding model used for both corpus chunks and queries.
	OpenAIModel = "text-embedding-3-small"

	// OpenAIDimension is the vector dimension for text-embedding-3-small.
	OpenAIDimension = 1536

	// DefaultRequestBatch caps texts per API request. Balances requests-per-minute
	// against tokens-per-minute rate limits.
	DefaultRequestBatch = 500
)

// OpenAI generates embeddings through the OpenAI embeddings API. It batches
// requests and retries with exponential backoff on rate limit errors. The
// client holds no per-call state, so one instance serves concurrent callers.
type OpenAI struct {
	client       *openai.Client
	requestBatch int
}

// NewOpenAI creates an embedder backed by the given OpenAI client.
// If requestBatch is 0, DefaultRequestBatch is used.
func NewOpenAI(client *openai.Client, requestBatch int) *OpenAI {
	if requestBatch <= 0 {
		requestBatch = DefaultRequestBatch
	}
	return &OpenAI{client: client, requestBatch: requestBatch}
}

// Dimension reports the output vector length.
func (o *OpenAI) Dimension() int { return OpenAIDimension }

// Embed returns the normalized vector for a single text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns normalized vectors for the given texts, in input order.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32

	for i := 0; i < len(texts); i += o.requestBatch {
		end := min(i+o.requestBatch, len(texts))

		vecs, err := o.embedWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", i, end, err)
		}
		all = append(all, vecs...)
	}

	return all, nil
}

// embedWithRetry issues one embeddings request, retrying with exponential
// backoff on rate limit errors (HTTP 429). Other errors fail immediately.
func (o *OpenAI) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32

	operation := func() error {
		resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: OpenAIModel,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts)))
		}

		vecs = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vecs[i] = Normalize(toFloat32(data.Embedding))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return vecs, err
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts the API's float64 vectors to float32 for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
