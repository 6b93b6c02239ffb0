// Package metrics exposes the evaluation pipeline's Prometheus collectors
// and the /metrics handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "evalpipe"

// DurationBuckets are the evaluation latency buckets in seconds.
var DurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// ScoreBuckets split [0, 1] scores into tenths.
var ScoreBuckets = prometheus.LinearBuckets(0.1, 0.1, 10)

// Registry owns a Prometheus registry and the pipeline collectors.
type Registry struct {
	reg *prometheus.Registry

	Evaluations   *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	Duration      prometheus.Histogram
	Scores        *prometheus.HistogramVec
	Hallucinated  prometheus.Counter
	Tokens        *prometheus.CounterVec
	BreakerState  *prometheus.GaugeVec
	BatchPairs    *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// New creates a registry with Go and process collectors plus the pipeline metrics.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Registry{
		reg: reg,
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Completed evaluations by verdict.",
		}, []string{"verdict"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_errors_total",
			Help:      "Evaluations aborted before a report was produced, by error kind.",
		}, []string{"kind"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Wall-clock duration of an evaluation.",
			Buckets:   DurationBuckets,
		}),
		Scores: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score",
			Help:      "Distribution of scored dimensions.",
			Buckets:   ScoreBuckets,
		}, []string{"dimension"}),
		Hallucinated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hallucinated_claims_total",
			Help:      "Claims scored below the support threshold.",
		}),
		Tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Estimated tokens evaluated, by role.",
		}, []string{"role"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Embedding backend circuit breaker state (0 closed, 1 open, 2 half-open).",
		}, []string{"backend"}),
		BatchPairs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_pairs_total",
			Help:      "Batch pairs processed, by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   DurationBuckets,
		}, []string{"route"}),
	}
}

// ObserveReport records one completed evaluation.
func (r *Registry) ObserveReport(verdict string, relevance, completeness, factuality, quality float64, hallucinated, userTokens, assistantTokens int, d time.Duration) {
	r.Evaluations.WithLabelValues(verdict).Inc()
	r.Duration.Observe(d.Seconds())
	r.Scores.WithLabelValues("relevance").Observe(relevance)
	r.Scores.WithLabelValues("completeness").Observe(completeness)
	r.Scores.WithLabelValues("factuality").Observe(factuality)
	r.Scores.WithLabelValues("quality").Observe(quality)
	r.Hallucinated.Add(float64(hallucinated))
	r.Tokens.WithLabelValues("user").Add(float64(userTokens))
	r.Tokens.WithLabelValues("assistant").Add(float64(assistantTokens))
}

// ObserveError records an aborted evaluation.
func (r *Registry) ObserveError(kind string) {
	r.Errors.WithLabelValues(kind).Inc()
}

// SetBreakerState records the state of a backend's circuit breaker.
func (r *Registry) SetBreakerState(backend string, state int) {
	r.BreakerState.WithLabelValues(backend).Set(float64(state))
}

// Gatherer exposes the underlying registry for tests and custom handlers.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
