package embed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/WessleyAI/evalpipe/pkg/fn"
	"github.com/WessleyAI/evalpipe/pkg/resilience"
)

// ResilientOpts configures the protection applied around a backend.
type ResilientOpts struct {
	Name    string
	Breaker resilience.BreakerOpts
	Limiter resilience.LimiterOpts
	Retry   fn.RetryOpts
	Logger  *slog.Logger
}

// DefaultResilientOpts returns defaults suited to remote embedding APIs.
func DefaultResilientOpts(name string) ResilientOpts {
	return ResilientOpts{
		Name: name,
		Breaker: resilience.BreakerOpts{
			FailThreshold: 5,
			Timeout:       30 * time.Second,
		},
		Limiter: resilience.LimiterOpts{Rate: 0, Burst: 1},
		Retry:   fn.DefaultRetry,
	}
}

// Resilient wraps an Embedder with rate limiting, a circuit breaker and retries.
type Resilient struct {
	next    Embedder
	breaker *resilience.Breaker
	limiter *resilience.Limiter
	retry   fn.RetryOpts
}

// NewResilient wraps next.
func NewResilient(next Embedder, opts ResilientOpts) *Resilient {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bo := opts.Breaker
	bo.Name = opts.Name
	if bo.OnStateChange == nil {
		bo.OnStateChange = func(name string, from, to resilience.State) {
			logger.Warn("embed: breaker state change", "backend", name, "from", from.String(), "to", to.String())
		}
	}
	retry := opts.Retry
	if retry.Retryable == nil {
		retry.Retryable = retryable
	}
	return &Resilient{
		next:    next,
		breaker: resilience.NewBreaker(bo),
		limiter: resilience.NewLimiter(opts.Limiter),
		retry:   retry,
	}
}

func retryable(err error) bool {
	return !errors.Is(err, resilience.ErrCircuitOpen) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	return protect(ctx, r, func(ctx context.Context) ([]float32, error) {
		return r.next.Embed(ctx, text)
	})
}

func (r *Resilient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return protect(ctx, r, func(ctx context.Context) ([][]float32, error) {
		return r.next.EmbedBatch(ctx, texts)
	})
}

func protect[T any](ctx context.Context, r *Resilient, call func(context.Context) (T, error)) (T, error) {
	res := fn.Retry(ctx, r.retry, func(ctx context.Context) fn.Result[T] {
		if err := r.limiter.Wait(ctx); err != nil {
			return fn.Err[T](err)
		}
		return resilience.CallResult(r.breaker, ctx, func(ctx context.Context) fn.Result[T] {
			return fn.FromPair(call(ctx))
		})
	})
	return res.Unwrap()
}
