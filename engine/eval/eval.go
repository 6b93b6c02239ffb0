// Package eval runs one evaluation end to end: prepare the turn, load the
// thresholds, score, aggregate and record.
package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/evalpipe/engine/domain"
	"github.com/WessleyAI/evalpipe/engine/ingest"
	"github.com/WessleyAI/evalpipe/engine/report"
	"github.com/WessleyAI/evalpipe/engine/scoring"
	"github.com/WessleyAI/evalpipe/engine/usage"
	"github.com/WessleyAI/evalpipe/engine/verdict"
	"github.com/WessleyAI/evalpipe/pkg/fn"
	"github.com/WessleyAI/evalpipe/pkg/metrics"
)

// DefaultTimeout bounds the provider calls of one evaluation.
const DefaultTimeout = 30 * time.Second

// Recorder persists finished reports.
type Recorder interface {
	Save(ctx context.Context, r report.ScoreReport, source string) error
}

// Options configures an Evaluator. Zero values pick defaults.
type Options struct {
	Timeout     time.Duration
	StrictRoles bool
	Logger      *slog.Logger
	Metrics     *metrics.Registry
	Recorder    Recorder
	NewID       func() string
	Now         func() time.Time
}

// Evaluator is safe for concurrent use.
type Evaluator struct {
	scorer     *scoring.Scorer
	thresholds verdict.Source
	opts       Options
	files      fn.Stage[ingest.Source, ingest.Prepared]
	docs       fn.Stage[ingest.Documents, ingest.Prepared]
}

// New creates an Evaluator.
func New(scorer *scoring.Scorer, thresholds verdict.Source, opts Options) *Evaluator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	pipe := ingest.Options{StrictRoles: opts.StrictRoles, Logger: opts.Logger}
	return &Evaluator{
		scorer:     scorer,
		thresholds: thresholds,
		opts:       opts,
		files:      fn.TracedStage("eval.prepare", ingest.NewFilePipeline(pipe)),
		docs:       fn.TracedStage("eval.prepare", ingest.NewDocumentPipeline(pipe)),
	}
}

// EvaluateFiles scores the chat and context files named by src.
func (e *Evaluator) EvaluateFiles(ctx context.Context, src ingest.Source) (report.ScoreReport, error) {
	return e.run(ctx, src.ChatPath, func(ctx context.Context) (ingest.Prepared, error) {
		return e.files.Run(ctx, src)
	})
}

// EvaluateDocuments scores already-decoded documents.
func (e *Evaluator) EvaluateDocuments(ctx context.Context, docs ingest.Documents) (report.ScoreReport, error) {
	return e.run(ctx, "inline", func(ctx context.Context) (ingest.Prepared, error) {
		return e.docs.Run(ctx, docs)
	})
}

func (e *Evaluator) run(ctx context.Context, source string, prepare func(context.Context) (ingest.Prepared, error)) (report.ScoreReport, error) {
	start := e.opts.Now()
	log := e.opts.Logger.With("source", source)

	rep, err := e.evaluate(ctx, source, start, prepare)
	if err != nil {
		kind := ErrorKind(err)
		log.Warn("eval: aborted", "kind", kind, "err", err)
		if e.opts.Metrics != nil {
			e.opts.Metrics.ObserveError(kind)
		}
		return report.ScoreReport{}, err
	}

	log.Info("eval: done", "id", rep.ID, "verdict", rep.Verdict,
		"quality", rep.Scores.QualityScore, "latency_s", rep.LatencySeconds)
	if m := e.opts.Metrics; m != nil {
		m.ObserveReport(string(rep.Verdict), rep.Scores.Relevance, rep.Scores.Completeness,
			rep.Scores.Factuality.AvgScore, rep.Scores.QualityScore,
			len(rep.Scores.Factuality.HallucinatedClaims),
			rep.TokenUsage.UserTokens, rep.TokenUsage.AssistantTokens,
			e.opts.Now().Sub(start))
	}
	if e.opts.Recorder != nil {
		// Recording is best effort.
		if err := e.opts.Recorder.Save(context.WithoutCancel(ctx), rep, source); err != nil {
			log.Error("eval: record failed", "id", rep.ID, "err", err)
		}
	}
	return rep, nil
}

func (e *Evaluator) evaluate(ctx context.Context, source string, start time.Time, prepare func(context.Context) (ingest.Prepared, error)) (report.ScoreReport, error) {
	th, err := e.thresholds.Load(ctx)
	if err != nil {
		return report.ScoreReport{}, fmt.Errorf("eval: thresholds: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	p, err := prepare(ctx)
	if err != nil {
		return report.ScoreReport{}, fmt.Errorf("eval: %s: %w", source, err)
	}

	rel, err := fn.TracedStage("eval.relevance", func(ctx context.Context, p ingest.Prepared) fn.Result[float64] {
		return fn.FromPair(e.scorer.Relevance(ctx, p.Turn.User, p.Turn.Assistant))
	}).Run(ctx, p)
	if err != nil {
		return report.ScoreReport{}, e.scoringErr(ctx, err)
	}
	comp, err := fn.TracedStage("eval.completeness", func(ctx context.Context, p ingest.Prepared) fn.Result[float64] {
		return fn.FromPair(e.scorer.Completeness(ctx, p.Turn.Assistant, p.Contexts))
	}).Run(ctx, p)
	if err != nil {
		return report.ScoreReport{}, e.scoringErr(ctx, err)
	}
	fact, err := fn.TracedStage("eval.factuality", func(ctx context.Context, p ingest.Prepared) fn.Result[scoring.Factuality] {
		return fn.FromPair(e.scorer.Factuality(ctx, p.Turn.Assistant, p.Contexts))
	}).Run(ctx, p)
	if err != nil {
		return report.ScoreReport{}, e.scoringErr(ctx, err)
	}

	return report.Build(report.Input{
		ID:             e.opts.NewID(),
		Relevance:      rel,
		Completeness:   comp,
		Factuality:     fact,
		LatencySeconds: e.opts.Now().Sub(start).Seconds(),
		Usage:          usage.ForTurn(p.Turn.User, p.Turn.Assistant, th.PricePer1KTokens),
		PII:            report.PII{User: p.UserPII, Assistant: p.AssistantPII},
		Thresholds:     th,
	}), nil
}

// scoringErr makes sure an expired evaluation reports DeadlineExceeded even
// when the backend surfaced a different error.
func (e *Evaluator) scoringErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("eval: timed out after %s: %w: %w", e.opts.Timeout, context.DeadlineExceeded, err)
	}
	return fmt.Errorf("eval: %w", err)
}

// ErrorKind classifies an evaluation error for metrics and transport mapping.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrSchema):
		return "schema"
	case errors.Is(err, domain.ErrConfig):
		return "config"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
