package embedding

import (
	"context"
	"math"
	"testing"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if got := norm(v); math.Abs(got-1) > 1e-6 {
		t.Errorf("norm after Normalize: %f", got)
	}

	// Zero vector passes through untouched.
	z := Normalize([]float32{0, 0, 0})
	for i, x := range z {
		if x != 0 {
			t.Errorf("zero vector changed at %d: %f", i, x)
		}
	}
}

func TestLocal_DeterministicUnitVectors(t *testing.T) {
	emb := NewLocal(0)
	if emb.Dimension() != LocalDimension {
		t.Fatalf("dimension: expected %d, got %d", LocalDimension, emb.Dimension())
	}

	ctx := context.Background()
	a, err := emb.Embed(ctx, "I have a headache and mild fever")
	if err != nil {
		t.Fatal(err)
	}
	b, err := emb.Embed(ctx, "I have a headache and mild fever")
	if err != nil {
		t.Fatal(err)
	}

	if len(a) != LocalDimension {
		t.Fatalf("vector length: %d", len(a))
	}
	if got := norm(a); math.Abs(got-1) > 1e-3 {
		t.Errorf("vector not unit length: %f", got)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at index %d", i)
		}
	}
}

func TestLocal_EmbedBatchOrder(t *testing.T) {
	emb := NewLocal(64)
	ctx := context.Background()

	texts := []string{"first text", "second text", "third text"}
	batch, err := emb.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != len(texts) {
		t.Fatalf("batch length: %d", len(batch))
	}

	for i, text := range texts {
		single, err := emb.Embed(ctx, text)
		if err != nil {
			t.Fatal(err)
		}
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("batch[%d] differs from single embedding", i)
			}
		}
	}
}

func TestLocal_DistinguishesTexts(t *testing.T) {
	emb := NewLocal(0)
	ctx := context.Background()

	a, _ := emb.Embed(ctx, "headache and nausea")
	b, _ := emb.Embed(ctx, "completely unrelated gardening topic")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}
}
