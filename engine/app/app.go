// Package app assembles an evaluator from environment configuration. The
// API server, the worker and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/WessleyAI/evalpipe/engine/cache"
	"github.com/WessleyAI/evalpipe/engine/domain"
	"github.com/WessleyAI/evalpipe/engine/embed"
	"github.com/WessleyAI/evalpipe/engine/eval"
	"github.com/WessleyAI/evalpipe/engine/history"
	"github.com/WessleyAI/evalpipe/engine/scoring"
	"github.com/WessleyAI/evalpipe/engine/semantic"
	"github.com/WessleyAI/evalpipe/engine/verdict"
	"github.com/WessleyAI/evalpipe/pkg/metrics"
	"github.com/WessleyAI/evalpipe/pkg/ollama"
	"github.com/WessleyAI/evalpipe/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port           int    `env:"PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	ThresholdsPath string `env:"THRESHOLDS_PATH,default=configs/thresholds.yaml"`

	EmbedBackend string  `env:"EMBED_BACKEND,default=hash"`
	EmbedModel   string  `env:"EMBED_MODEL"`
	EmbedRate    float64 `env:"EMBED_RATE,default=0"`
	OllamaURL    string  `env:"OLLAMA_URL,default=http://localhost:11434"`
	OpenAIKey    string  `env:"OPENAI_API_KEY"`
	GoogleKey    string  `env:"GOOGLE_API_KEY"`

	CacheBackend string        `env:"CACHE_BACKEND,default=file"`
	CacheDir     string        `env:"CACHE_DIR,default=.cache/embeddings"`
	CacheTTL     time.Duration `env:"CACHE_TTL"`

	IndexBackend string `env:"INDEX_BACKEND,default=flat"`
	QdrantURL    string `env:"QDRANT_URL,default=localhost:6334"`

	NATSURL   string `env:"NATS_URL,default=nats://localhost:4222"`
	Neo4jURL  string `env:"NEO4J_URL"`
	Neo4jUser string `env:"NEO4J_USER,default=neo4j"`
	Neo4jPass string `env:"NEO4J_PASS"`

	EvalTimeout time.Duration `env:"EVAL_TIMEOUT,default=30s"`
	StrictRoles bool          `env:"STRICT_ROLES,default=false"`
	CORSOrigin  string        `env:"CORS_ORIGIN,default=*"`
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, domain.NewConfigError("env", "invalid environment", err)
	}
	return cfg, nil
}

// NewLogger returns a JSON logger writing to w at the named level; unknown
// levels mean info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// App is a wired evaluator plus the resources it owns.
type App struct {
	Config    Config
	Logger    *slog.Logger
	Metrics   *metrics.Registry
	Evaluator *eval.Evaluator
	// History is nil when NEO4J_URL is unset.
	History *history.Store

	closers []func(context.Context) error
}

// Build wires every component named by cfg. A nil thresholds source reads
// cfg.ThresholdsPath on every evaluation. On error, resources opened so far
// are released.
func Build(ctx context.Context, cfg Config, log *slog.Logger, reg *metrics.Registry, thresholds verdict.Source) (_ *App, err error) {
	if log == nil {
		log = slog.Default()
	}
	if reg == nil {
		reg = metrics.New()
	}
	a := &App{Config: cfg, Logger: log, Metrics: reg}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	backend, err := a.backend(ctx)
	if err != nil {
		return nil, err
	}
	c, err := a.cache(ctx)
	if err != nil {
		return nil, err
	}
	builder, err := a.index()
	if err != nil {
		return nil, err
	}

	opts := eval.Options{
		Timeout:     cfg.EvalTimeout,
		StrictRoles: cfg.StrictRoles,
		Logger:      log,
		Metrics:     reg,
	}
	if cfg.Neo4jURL != "" {
		driver, err := history.Connect(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, driver.Close)
		a.History = history.New(driver)
		opts.Recorder = a.History
		log.Info("app: history enabled", "url", cfg.Neo4jURL)
	}

	if thresholds == nil {
		thresholds = verdict.FileSource{Path: cfg.ThresholdsPath}
	}
	provider := embed.NewProvider(backend, c, log)
	a.Evaluator = eval.New(scoring.New(provider, builder), thresholds, opts)
	log.Info("app: evaluator ready",
		"embed", cfg.EmbedBackend, "cache", cfg.CacheBackend, "index", cfg.IndexBackend)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) backend(ctx context.Context) (embed.Embedder, error) {
	cfg := a.Config
	var next embed.Embedder
	switch strings.ToLower(cfg.EmbedBackend) {
	case "hash", "":
		return embed.NewHash(0), nil
	case "ollama":
		next = ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel)
	case "openai":
		o, err := embed.NewOpenAI(cfg.OpenAIKey, cfg.EmbedModel)
		if err != nil {
			return nil, domain.NewConfigError("OPENAI_API_KEY", "openai backend unavailable", err)
		}
		next = o
	case "google", "gemini":
		g, err := embed.NewGemini(ctx, cfg.GoogleKey, cfg.EmbedModel)
		if err != nil {
			return nil, domain.NewConfigError("GOOGLE_API_KEY", "google backend unavailable", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return g.Close() })
		next = g
	default:
		return nil, domain.NewConfigError("EMBED_BACKEND", fmt.Sprintf("unknown backend %q", cfg.EmbedBackend), nil)
	}

	name := strings.ToLower(cfg.EmbedBackend)
	opts := embed.DefaultResilientOpts(name)
	opts.Logger = a.Logger
	opts.Limiter.Rate = cfg.EmbedRate
	opts.Breaker.OnStateChange = func(name string, from, to resilience.State) {
		a.Logger.Warn("embed: breaker state change", "backend", name, "from", from.String(), "to", to.String())
		a.Metrics.SetBreakerState(name, int(to))
	}
	return embed.NewResilient(next, opts), nil
}

func (a *App) cache(ctx context.Context) (*cache.Cache, error) {
	cfg := a.Config
	var opts []cache.Option
	if cfg.CacheTTL > 0 {
		opts = append(opts, cache.WithTTL(cfg.CacheTTL))
	}
	switch strings.ToLower(cfg.CacheBackend) {
	case "memory":
		return cache.New(cache.NewMemoryStore(), opts...), nil
	case "file", "":
		fs, err := cache.NewFileStore(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		return cache.New(fs, opts...), nil
	case "sqlite":
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("app: mkdir %s: %w", cfg.CacheDir, err)
		}
		s, err := cache.NewSQLiteStore(filepath.Join(cfg.CacheDir, "embeddings.db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return s.Close() })
		if cfg.CacheTTL > 0 {
			n, err := s.Prune(ctx, time.Now().Add(-cfg.CacheTTL))
			if err != nil {
				return nil, err
			}
			a.Logger.Info("app: pruned cache", "entries", n)
		}
		return cache.New(s, opts...), nil
	default:
		return nil, domain.NewConfigError("CACHE_BACKEND", fmt.Sprintf("unknown backend %q", cfg.CacheBackend), nil)
	}
}

func (a *App) index() (semantic.Builder, error) {
	switch strings.ToLower(a.Config.IndexBackend) {
	case "flat", "":
		return semantic.FlatBuilder{}, nil
	case "qdrant":
		q, err := semantic.NewQdrantBuilder(a.Config.QdrantURL, "evalpipe")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return q.Close() })
		return q, nil
	default:
		return nil, domain.NewConfigError("INDEX_BACKEND", fmt.Sprintf("unknown backend %q", a.Config.IndexBackend), nil)
	}
}
