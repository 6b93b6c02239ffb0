// Package repo provides a generic Neo4j-backed repository keyed by an id property.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no node carries the id.
var ErrNotFound = errors.New("repo: not found")

// Repository is the persistence surface used by the engine.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Save(ctx context.Context, entity T) (T, error)
}

// ListOpts controls pagination and ordering for List.
type ListOpts struct {
	Offset  int
	Limit   int
	OrderBy string // node property; empty keeps store order
	Desc    bool
}
