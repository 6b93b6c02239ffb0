package semantic

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrDimensionMismatch is returned when vectors in one index or query differ in length.
var ErrDimensionMismatch = errors.New("semantic: dimension mismatch")

// Hit is one search result: the position of the indexed vector and its
// squared Euclidean distance to the query.
type Hit struct {
	Pos      int
	Distance float64
}

// Index is a nearest-neighbour index over a fixed set of vectors.
type Index interface {
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Close(ctx context.Context) error
}

// Builder creates an Index from vectors. Indexes are built per call and
// closed after use.
type Builder interface {
	Build(ctx context.Context, vecs [][]float32) (Index, error)
}

// FlatL2 is an exhaustive in-memory L2 index.
type FlatL2 struct {
	dims int
	vecs [][]float32
}

// NewFlatL2 creates an empty index for vectors of length dims.
func NewFlatL2(dims int) *FlatL2 {
	return &FlatL2{dims: dims}
}

// Add appends vectors; all must have the index dimension.
func (f *FlatL2) Add(vecs ...[]float32) error {
	for i, v := range vecs {
		if len(v) != f.dims {
			return fmt.Errorf("%w: vector %d has %d dims, index has %d", ErrDimensionMismatch, i, len(v), f.dims)
		}
	}
	f.vecs = append(f.vecs, vecs...)
	return nil
}

// Len returns the number of indexed vectors.
func (f *FlatL2) Len() int { return len(f.vecs) }

// Search returns up to k hits ordered by ascending distance; ties keep insertion order.
func (f *FlatL2) Search(_ context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != f.dims {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimensionMismatch, len(query), f.dims)
	}
	hits := make([]Hit, len(f.vecs))
	for i, v := range f.vecs {
		hits[i] = Hit{Pos: i, Distance: SquaredL2(query, v)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k >= 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *FlatL2) Close(context.Context) error { return nil }

// FlatBuilder builds FlatL2 indexes.
type FlatBuilder struct{}

func (FlatBuilder) Build(_ context.Context, vecs [][]float32) (Index, error) {
	dims := 0
	if len(vecs) > 0 {
		dims = len(vecs[0])
	}
	idx := NewFlatL2(dims)
	if err := idx.Add(vecs...); err != nil {
		return nil, err
	}
	return idx, nil
}
