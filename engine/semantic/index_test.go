package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/WessleyAI/evalpipe/engine/domain"
)

func TestFlatL2Search(t *testing.T) {
	idx := NewFlatL2(2)
	if err := idx.Add([]float32{0, 0}, []float32{5, 5}, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Search(context.Background(), []float32{0.9, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].Pos != 2 || hits[1].Pos != 0 {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if d := hits[0].Distance; d < 0.0099 || d > 0.0101 {
		t.Errorf("expected squared distance 0.01, got %v", d)
	}
}

func TestFlatL2TiesKeepOrder(t *testing.T) {
	idx := NewFlatL2(1)
	_ = idx.Add([]float32{1}, []float32{-1})
	hits, _ := idx.Search(context.Background(), []float32{0}, 1)
	if hits[0].Pos != 0 {
		t.Fatalf("expected first inserted on tie, got %d", hits[0].Pos)
	}
}

func TestFlatL2DimensionMismatch(t *testing.T) {
	idx := NewFlatL2(2)
	if err := idx.Add([]float32{1, 2, 3}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	_ = idx.Add([]float32{1, 2})
	if _, err := idx.Search(context.Background(), []float32{1}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestNearestChunk(t *testing.T) {
	chunks := []domain.ContextChunk{{ID: "a", Text: "far"}, {ID: "b", Text: "near"}}
	vecs := [][]float32{{10, 10}, {1, 1}}
	m, ok, err := NearestChunk(context.Background(), FlatBuilder{}, []float32{1, 2}, chunks, vecs)
	if err != nil || !ok {
		t.Fatalf("unexpected ok=%v err=%v", ok, err)
	}
	if m.Chunk.ID != "b" || m.Distance != 1 {
		t.Errorf("unexpected match %+v", m)
	}
}

func TestNearestChunkEmpty(t *testing.T) {
	_, ok, err := NearestChunk(context.Background(), nil, []float32{1}, nil, nil)
	if err != nil || ok {
		t.Fatalf("expected no match, ok=%v err=%v", ok, err)
	}
}

func TestNearestChunkCountMismatch(t *testing.T) {
	chunks := []domain.ContextChunk{{ID: "a"}}
	if _, _, err := NearestChunk(context.Background(), nil, []float32{1}, chunks, nil); err == nil {
		t.Fatal("expected error")
	}
}
