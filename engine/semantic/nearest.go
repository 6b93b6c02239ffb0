package semantic

import (
	"context"
	"fmt"

	"github.com/WessleyAI/evalpipe/engine/domain"
)

// Match is the chunk closest to a query and its squared L2 distance.
type Match struct {
	Chunk    domain.ContextChunk
	Distance float64
}

// NearestChunk builds an index over chunkVecs and returns the chunk closest
// to query. ok is false when there are no chunks.
func NearestChunk(ctx context.Context, b Builder, query []float32, chunks []domain.ContextChunk, chunkVecs [][]float32) (m Match, ok bool, err error) {
	if len(chunks) != len(chunkVecs) {
		return Match{}, false, fmt.Errorf("semantic: %d chunks but %d vectors", len(chunks), len(chunkVecs))
	}
	if len(chunks) == 0 {
		return Match{}, false, nil
	}
	if b == nil {
		b = FlatBuilder{}
	}

	idx, err := b.Build(ctx, chunkVecs)
	if err != nil {
		return Match{}, false, fmt.Errorf("semantic: build index: %w", err)
	}
	defer idx.Close(context.WithoutCancel(ctx))

	hits, err := idx.Search(ctx, query, 1)
	if err != nil {
		return Match{}, false, fmt.Errorf("semantic: search: %w", err)
	}
	if len(hits) == 0 {
		return Match{}, false, nil
	}
	h := hits[0]
	if h.Pos < 0 || h.Pos >= len(chunks) {
		return Match{}, false, fmt.Errorf("semantic: hit position %d out of range", h.Pos)
	}
	return Match{Chunk: chunks[h.Pos], Distance: h.Distance}, true, nil
}
