package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/evalpipe/engine/eval"
	"github.com/WessleyAI/evalpipe/engine/ingest"
	"github.com/WessleyAI/evalpipe/engine/report"
	"github.com/WessleyAI/evalpipe/pkg/natsutil"
)

const (
	// JobSubject carries evaluation jobs.
	JobSubject = "eval.jobs"
	// ResultSubject carries job results, successful or not.
	ResultSubject = "eval.results"
	// DLQSubject receives jobs that failed permanently.
	DLQSubject = "eval.jobs.dlq"
	// WorkerQueue is the queue group shared by workers.
	WorkerQueue = "eval-workers"
	// MaxRetries before a job goes to the DLQ.
	MaxRetries = 3
)

// Job asks a worker to evaluate one pair.
type Job struct {
	ID       string `json:"id"`
	ChatPath string `json:"chat_path"`
	CtxPath  string `json:"ctx_path"`
}

// JobResult is published once per job on completion or final failure.
type JobResult struct {
	JobID     string              `json:"job_id"`
	ChatFile  string              `json:"chat_file"`
	CtxFile   string              `json:"context_file"`
	Report    *report.ScoreReport `json:"report,omitempty"`
	Error     string              `json:"error,omitempty"`
	ErrorKind string              `json:"error_kind,omitempty"`
}

// Outcome converts a result back to a batch outcome.
func (r JobResult) Outcome() Outcome {
	o := Outcome{Source: ingest.Source{ChatPath: r.ChatFile, CtxPath: r.CtxFile}}
	if r.Report != nil {
		o.Report = *r.Report
	} else {
		o.Err = fmt.Errorf("batch: job %s: %s", r.JobID, r.Error)
	}
	return o
}

// dlqMessage is published to the DLQ on permanent failure.
type dlqMessage struct {
	Job     Job    `json:"job"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Retries int    `json:"retries"`
}

// Dispatch publishes one job per pair and returns them.
func Dispatch(ctx context.Context, pub natsutil.Publisher, pairs []ingest.Source) ([]Job, error) {
	jobs := make([]Job, 0, len(pairs))
	for _, p := range pairs {
		j := Job{ID: uuid.NewString(), ChatPath: p.ChatPath, CtxPath: p.CtxPath}
		if err := natsutil.Publish(ctx, pub, JobSubject, j); err != nil {
			return jobs, fmt.Errorf("batch: dispatch %s: %w", p.ChatPath, err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Worker consumes jobs and publishes results.
type Worker struct {
	Eval       Evaluator
	Pub        natsutil.Publisher
	Logger     *slog.Logger
	MaxRetries int
}

func (w *Worker) log() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

// Start subscribes the worker to JobSubject in the shared queue group.
func (w *Worker) Start(nc *nats.Conn) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, JobSubject, WorkerQueue, w.log(), w.Handle)
}

// permanent reports errors that a retry cannot fix.
func permanent(kind string) bool {
	switch kind {
	case "schema", "not_found", "config":
		return true
	}
	return false
}

// Handle evaluates one job. Transient failures are requeued with a retry
// count; permanent ones and those past MaxRetries go to the DLQ and are
// reported as failed results.
func (w *Worker) Handle(ctx context.Context, msg *nats.Msg, job Job) {
	log := w.log().With("job", job.ID, "chat", filepath.Base(job.ChatPath))
	maxRetries := w.MaxRetries
	if maxRetries <= 0 {
		maxRetries = MaxRetries
	}

	rep, err := w.Eval.EvaluateFiles(ctx, ingest.Source{ChatPath: job.ChatPath, CtxPath: job.CtxPath})
	res := JobResult{JobID: job.ID, ChatFile: job.ChatPath, CtxFile: job.CtxPath}
	if err == nil {
		res.Report = &rep
		log.Info("batch: job done", "verdict", rep.Verdict)
		w.publishResult(ctx, log, res)
		ack(msg)
		return
	}

	kind := eval.ErrorKind(err)
	retries := natsutil.Retries(msg) + 1
	log.Error("batch: job failed", "err", err, "kind", kind, "retry", retries)

	if !permanent(kind) && retries < maxRetries {
		if err := natsutil.Requeue(w.Pub, msg, retries); err != nil {
			log.Error("batch: requeue failed", "err", err)
		}
		ack(msg)
		return
	}

	if err := natsutil.Publish(ctx, w.Pub, DLQSubject, dlqMessage{Job: job, Error: err.Error(), Kind: kind, Retries: retries}); err != nil {
		log.Error("batch: DLQ publish failed", "err", err)
	}
	res.Error = err.Error()
	res.ErrorKind = kind
	w.publishResult(ctx, log, res)
	ack(msg)
}

func (w *Worker) publishResult(ctx context.Context, log *slog.Logger, res JobResult) {
	if err := natsutil.Publish(ctx, w.Pub, ResultSubject, res); err != nil {
		log.Error("batch: result publish failed", "err", err)
	}
}

// ack acknowledges JetStream deliveries; core NATS messages need nothing.
func ack(msg *nats.Msg) {
	if msg.Reply != "" {
		_ = msg.Ack()
	}
}

// Collector gathers job results from ResultSubject.
type Collector struct {
	sub     *nats.Subscription
	results chan JobResult
	done    chan struct{}
	once    sync.Once
}

// NewCollector subscribes to results. Subscribe before dispatching so no
// result is missed.
func NewCollector(nc *nats.Conn, log *slog.Logger) (*Collector, error) {
	c := newCollector(256)
	sub, err := natsutil.Subscribe(nc, ResultSubject, "", log, func(_ context.Context, _ *nats.Msg, r JobResult) {
		c.deliver(r)
	})
	if err != nil {
		return nil, err
	}
	c.sub = sub
	return c, nil
}

func newCollector(buffer int) *Collector {
	return &Collector{results: make(chan JobResult, buffer), done: make(chan struct{})}
}

// deliver hands r to Wait, or drops it once the collector is closed.
func (c *Collector) deliver(r JobResult) {
	select {
	case c.results <- r:
	case <-c.done:
	}
}

// Wait returns one outcome per job, in job order, once all results have
// arrived or timeout elapses. Jobs without a result carry an error; results
// for unknown jobs are ignored.
func (c *Collector) Wait(ctx context.Context, jobs []Job, timeout time.Duration) ([]Outcome, error) {
	return collect(ctx, c.results, jobs, timeout)
}

// Close releases a handler blocked on a full buffer and unsubscribes.
func (c *Collector) Close() error {
	c.once.Do(func() { close(c.done) })
	if c.sub == nil {
		return nil
	}
	return c.sub.Unsubscribe()
}

func collect(ctx context.Context, results <-chan JobResult, jobs []Job, timeout time.Duration) ([]Outcome, error) {
	pos := make(map[string]int, len(jobs))
	for i, j := range jobs {
		pos[j.ID] = i
	}
	out := make([]Outcome, len(jobs))
	for i, j := range jobs {
		out[i] = Outcome{
			Source: ingest.Source{ChatPath: j.ChatPath, CtxPath: j.CtxPath},
			Err:    fmt.Errorf("batch: job %s: no result", j.ID),
		}
	}
	seen := make([]bool, len(jobs))
	remaining := len(jobs)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-timer.C:
			return out, fmt.Errorf("batch: %d of %d results missing after %s", remaining, len(jobs), timeout)
		case r := <-results:
			i, ok := pos[r.JobID]
			if !ok || seen[i] {
				continue
			}
			seen[i] = true
			remaining--
			out[i] = r.Outcome()
		}
	}
	return out, nil
}
