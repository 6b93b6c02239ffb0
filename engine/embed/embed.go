// Package embed turns text into vectors. A Provider fronts one Embedder
// backend with the embedding cache: single texts go through the cache,
// batches bypass it.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/WessleyAI/evalpipe/engine/cache"
)

// Embedder is an embedding backend. EmbedBatch must preserve input order
// and return exactly one vector per text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Func adapts a single-text function to Embedder.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

func (f Func) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// flightTimeout bounds a shared backend call, which outlives the
// cancellation of any single caller.
const flightTimeout = time.Minute

// Provider is constructed once per process and shared by the scorers.
type Provider struct {
	backend Embedder
	cache   *cache.Cache
	group   singleflight.Group
	logger  *slog.Logger
}

// NewProvider wraps backend with c. A nil cache gets an in-memory one.
func NewProvider(backend Embedder, c *cache.Cache, logger *slog.Logger) *Provider {
	if c == nil {
		c = cache.New(cache.NewMemoryStore())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{backend: backend, cache: c, logger: logger}
}

// EmbedOne returns the vector for text, consulting the cache first and
// populating it on a miss. Concurrent misses for the same text share one
// backend call.
func (p *Provider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vec, ok, err := p.cache.Get(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if ok {
		return vec, nil
	}

	ch := p.group.DoChan(cache.Key(text), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		vec, err := p.backend.Embed(fctx, text)
		if err != nil {
			return nil, err
		}
		if err := p.cache.Put(fctx, text, vec); err != nil {
			return nil, err
		}
		p.logger.Debug("embed: cache miss filled", "dims", len(vec))
		return vec, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("embed: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("embed: %w", res.Err)
		}
		return res.Val.([]float32), nil
	}
}

// EmbedMany embeds texts in one backend call without touching the cache.
func (p *Provider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := p.backend.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed: batch returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}
