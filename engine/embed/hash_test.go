package embed

import (
	"context"
	"math"
	"testing"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHashDeterministic(t *testing.T) {
	h := NewHash(0)
	ctx := context.Background()
	a, _ := h.Embed(ctx, "AI means artificial intelligence")
	b, _ := h.Embed(ctx, "AI means artificial intelligence")
	if len(a) != DefaultHashDims {
		t.Fatalf("dims = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("hash embedder must be deterministic")
		}
	}
	if n := norm(a); math.Abs(n-1) > 1e-5 {
		t.Errorf("expected unit norm, got %v", n)
	}
}

func TestHashEmptyIsZero(t *testing.T) {
	v, _ := NewHash(16).Embed(context.Background(), "  ...  ")
	if norm(v) != 0 {
		t.Error("text without words should embed to the zero vector")
	}
}

func TestHashSimilarity(t *testing.T) {
	h := NewHash(4096)
	ctx := context.Background()
	q, _ := h.Embed(ctx, "artificial intelligence meaning")
	near, _ := h.Embed(ctx, "Artificial intelligence means machines that think")
	far, _ := h.Embed(ctx, "paris weather stays mild")
	if dot(q, near) <= dot(q, far) {
		t.Errorf("expected overlapping text to score higher: near=%v far=%v", dot(q, near), dot(q, far))
	}
}

func TestHashBatchMatchesSingle(t *testing.T) {
	h := NewHash(32)
	ctx := context.Background()
	batch, _ := h.EmbedBatch(ctx, []string{"one", "two words"})
	single, _ := h.Embed(ctx, "two words")
	for i := range single {
		if batch[1][i] != single[i] {
			t.Fatal("batch and single embeddings differ")
		}
	}
}
