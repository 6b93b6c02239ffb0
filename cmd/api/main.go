// Package main implements the evaluation API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/WessleyAI/evalpipe/engine/app"
	"github.com/WessleyAI/evalpipe/engine/domain"
	"github.com/WessleyAI/evalpipe/engine/eval"
	"github.com/WessleyAI/evalpipe/engine/history"
	"github.com/WessleyAI/evalpipe/engine/ingest"
	"github.com/WessleyAI/evalpipe/engine/report"
	"github.com/WessleyAI/evalpipe/engine/verdict"
	"github.com/WessleyAI/evalpipe/pkg/metrics"
	"github.com/WessleyAI/evalpipe/pkg/mid"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.Load(ctx)
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg app.Config, logger *slog.Logger) error {
	watcher, err := verdict.NewWatcher(cfg.ThresholdsPath, logger)
	if err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	defer watcher.Close()

	reg := metrics.New()
	a, err := app.Build(ctx, cfg, logger, reg, watcher)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	d := deps{eval: a.Evaluator, reg: reg, log: logger, thresholdsErr: watcher.Err}
	if a.History != nil {
		d.history = a.History
	}
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      newHandler(d, cfg.CORSOrigin),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.EvalTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error {
		logger.Info("api server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}

// evaluator is the part of eval.Evaluator the handlers need.
type evaluator interface {
	EvaluateFiles(ctx context.Context, src ingest.Source) (report.ScoreReport, error)
	EvaluateDocuments(ctx context.Context, docs ingest.Documents) (report.ScoreReport, error)
}

// historyReader is the part of history.Store the handlers need.
type historyReader interface {
	Get(ctx context.Context, id string) (history.Record, error)
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

type deps struct {
	eval    evaluator
	history historyReader
	reg     *metrics.Registry
	log     *slog.Logger
	// thresholdsErr reports the last failed thresholds reload, if any.
	thresholdsErr func() error
}

func newHandler(d deps, corsOrigin string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth(d.thresholdsErr))
	mux.Handle("GET /metrics", d.reg.Handler())
	mux.HandleFunc("POST /evaluate", handleEvaluate(d.eval, d.log))
	mux.HandleFunc("GET /evaluations", handleRecent(d.history, d.log))
	mux.HandleFunc("GET /evaluations/{id}", handleGetEvaluation(d.history, d.log))

	return mid.Chain(mux,
		mid.Recover(d.log),
		mid.RequestID(),
		mid.Logger(d.log),
		mid.CORS(corsOrigin),
		mid.OTel("evalpipe-api"),
		mid.Metrics(d.reg.HTTPRequests, d.reg.HTTPDurations),
	)
}

// --- Handlers ---

// handleHealth reports "degraded" while the thresholds file on disk is
// invalid; evaluations fail with a config error until it is fixed.
func handleHealth(thresholdsErr func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]string{"status": "ok"}
		if thresholdsErr != nil {
			if err := thresholdsErr(); err != nil {
				body["status"] = "degraded"
				body["thresholds"] = err.Error()
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// EvaluateRequest is the JSON body for POST /evaluate: either file paths or
// inline documents.
type EvaluateRequest struct {
	ChatPath string                  `json:"chat_path,omitempty"`
	CtxPath  string                  `json:"ctx_path,omitempty"`
	Chat     *domain.ChatDocument    `json:"chat,omitempty"`
	Context  *domain.ContextDocument `json:"context,omitempty"`
}

func handleEvaluate(ev evaluator, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EvaluateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if errors.Is(err, domain.ErrSchema) {
				writeError(w, http.StatusUnprocessableEntity, err.Error(), "schema")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid request body", "")
			return
		}

		var (
			rep report.ScoreReport
			err error
		)
		switch {
		case req.ChatPath != "" && req.CtxPath != "":
			rep, err = ev.EvaluateFiles(r.Context(), ingest.Source{ChatPath: req.ChatPath, CtxPath: req.CtxPath})
		case req.Chat != nil:
			docs := ingest.Documents{Chat: *req.Chat}
			if req.Context != nil {
				docs.Context = *req.Context
			}
			rep, err = ev.EvaluateDocuments(r.Context(), docs)
		default:
			writeError(w, http.StatusBadRequest, "chat_path and ctx_path, or chat, are required", "")
			return
		}
		if err != nil {
			kind := eval.ErrorKind(err)
			status := statusFor(kind)
			if status >= http.StatusInternalServerError {
				logger.Error("evaluation failed", "err", err, "kind", kind, "request_id", mid.GetRequestID(r.Context()))
			}
			writeError(w, status, err.Error(), kind)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

func handleGetEvaluation(h historyReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h == nil {
			writeError(w, http.StatusNotFound, "history is not configured", "not_found")
			return
		}
		rec, err := h.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			kind := eval.ErrorKind(err)
			if kind != "not_found" {
				logger.Error("history lookup failed", "err", err)
			}
			writeError(w, statusFor(kind), err.Error(), kind)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleRecent(h historyReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h == nil {
			writeError(w, http.StatusNotFound, "history is not configured", "not_found")
			return
		}
		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer", "")
				return
			}
			limit = n
		}
		recs, err := h.Recent(r.Context(), limit)
		if err != nil {
			logger.Error("history list failed", "err", err)
			writeError(w, http.StatusInternalServerError, err.Error(), eval.ErrorKind(err))
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// statusFor maps an eval.ErrorKind to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "schema":
		return http.StatusUnprocessableEntity
	case "not_found":
		return http.StatusNotFound
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
