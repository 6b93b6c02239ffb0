package batch

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/WessleyAI/evalpipe/engine/ingest"
	"github.com/WessleyAI/evalpipe/engine/report"
	"github.com/WessleyAI/evalpipe/pkg/fn"
	"github.com/WessleyAI/evalpipe/pkg/metrics"
)

// DefaultWorkers is the pool size when Runner.Workers is not set.
const DefaultWorkers = 4

// Evaluator is the part of eval.Evaluator the batch needs.
type Evaluator interface {
	EvaluateFiles(ctx context.Context, src ingest.Source) (report.ScoreReport, error)
}

// Outcome is the result of one pair. Exactly one of Report and Err is set.
type Outcome struct {
	Source ingest.Source
	Report report.ScoreReport
	Err    error
}

// Row flattens a successful outcome.
func (o Outcome) Row() report.Row {
	return report.RowOf(filepath.Base(o.Source.ChatPath), filepath.Base(o.Source.CtxPath), o.Report)
}

// Runner evaluates pairs concurrently. One pair's failure does not affect
// the others.
type Runner struct {
	Eval    Evaluator
	Workers int
	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// Run returns one outcome per pair, in input order.
func (r *Runner) Run(ctx context.Context, pairs []ingest.Source) []Outcome {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log.Info("batch: start", "pairs", len(pairs), "workers", workers)

	results := fn.ParMap(ctx, pairs, workers, func(ctx context.Context, src ingest.Source) fn.Result[report.ScoreReport] {
		log.Info("batch: evaluating", "chat", filepath.Base(src.ChatPath))
		return fn.FromPair(r.Eval.EvaluateFiles(ctx, src))
	})

	out := make([]Outcome, len(pairs))
	failed := 0
	for i, res := range results {
		rep, err := res.Unwrap()
		out[i] = Outcome{Source: pairs[i], Report: rep, Err: err}
		outcome := "ok"
		if err != nil {
			failed++
			outcome = "error"
			log.Error("batch: pair failed", "chat", pairs[i].ChatPath, "err", err)
		}
		if r.Metrics != nil {
			r.Metrics.BatchPairs.WithLabelValues(outcome).Inc()
		}
	}
	log.Info("batch: done", "pairs", len(pairs), "failed", failed)
	return out
}

// Rows returns the rows of the successful outcomes.
func Rows(outcomes []Outcome) []report.Row {
	rows := make([]report.Row, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			rows = append(rows, o.Row())
		}
	}
	return rows
}
