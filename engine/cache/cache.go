// Package cache is a content-addressed embedding cache. Keys are the SHA-256
// of the exact UTF-8 bytes of a text; no normalisation is applied, so texts
// differing only in case or whitespace are distinct entries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Entry is one cached embedding.
type Entry struct {
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Store persists entries by key. A missing key returns ok=false and a nil
// error; any other failure is returned as an error.
type Store interface {
	Load(ctx context.Context, key string) (Entry, bool, error)
	Save(ctx context.Context, key string, e Entry) error
}

// Cache maps text to embedding vectors over a Store.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL makes entries older than d read as absent. Zero keeps entries forever.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// New creates a Cache backed by store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{store: store, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key derives the cache key for text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for text, or ok=false on a miss.
func (c *Cache) Get(ctx context.Context, text string) ([]float32, bool, error) {
	e, ok, err := c.store.Load(ctx, Key(text))
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	if c.expired(e) {
		return nil, false, nil
	}
	return e.Vector, true, nil
}

// Put stores vec for text. Concurrent puts for the same text are last-write-wins.
func (c *Cache) Put(ctx context.Context, text string, vec []float32) error {
	if err := c.store.Save(ctx, Key(text), Entry{Vector: vec, CreatedAt: c.now().UTC()}); err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

func (c *Cache) expired(e Entry) bool {
	if c.ttl <= 0 || e.CreatedAt.IsZero() {
		return false
	}
	return c.now().Sub(e.CreatedAt) > c.ttl
}
