// Package main runs an evaluation worker that consumes jobs from NATS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/evalpipe/engine/app"
	"github.com/WessleyAI/evalpipe/engine/batch"
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
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg app.Config, logger *slog.Logger) error {
	a, err := app.Build(ctx, cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	closed := make(chan struct{})
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("evalpipe-worker"),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}

	w := &batch.Worker{Eval: a.Evaluator, Pub: nc, Logger: logger}
	sub, err := w.Start(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", batch.JobSubject, err)
	}
	logger.Info("worker started", "subject", sub.Subject, "queue", batch.WorkerQueue)

	// Metrics only; the worker has no other HTTP surface.
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.Metrics.Handler())
	srv := &http.Server{Addr: ":" + strconv.Itoa(cfg.Port), Handler: mux, ReadTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutCtx)
	// Drain lets in-flight jobs finish and publish their results.
	if err := nc.Drain(); err != nil {
		return err
	}
	select {
	case <-closed:
	case <-shutCtx.Done():
		logger.Warn("drain timed out")
	}
	return nil
}
