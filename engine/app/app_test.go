package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/evalpipe/engine/domain"
	"github.com/WessleyAI/evalpipe/engine/ingest"
	"github.com/WessleyAI/evalpipe/engine/verdict"
)

const thresholdsYAML = `relevance_min: 0.1
completeness_min: 0.1
factuality_min: 0.1
price_per_1k_tokens: 0.002
`

func write(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) Config {
	dir := t.TempDir()
	th := filepath.Join(dir, "thresholds.yaml")
	write(t, th, thresholdsYAML)
	return Config{
		ThresholdsPath: th,
		EmbedBackend:   "hash",
		CacheBackend:   "file",
		CacheDir:       filepath.Join(dir, "cache"),
		IndexBackend:   "flat",
		EvalTimeout:    5 * time.Second,
	}
}

func TestBuildEvaluatesFiles(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	a, err := Build(ctx, cfg, slog.Default(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(ctx)
	if a.History != nil {
		t.Error("history must be nil without NEO4J_URL")
	}

	dir := t.TempDir()
	src := ingest.Source{ChatPath: filepath.Join(dir, "chat.json"), CtxPath: filepath.Join(dir, "ctx.json")}
	write(t, src.ChatPath, `{"messages":[{"role":"user","content":"how do solar panels work"},{"role":"assistant","content":"solar panels turn sunlight into electricity"}]}`)
	write(t, src.CtxPath, `{"contexts":[{"id":"c1","text":"solar panels turn sunlight into electricity using cells"}]}`)

	rep, err := a.Evaluator.EvaluateFiles(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Scores.Completeness <= 0 || rep.Verdict == "" {
		t.Errorf("unexpected report %+v", rep)
	}
	entries, err := os.ReadDir(cfg.CacheDir)
	if err != nil || len(entries) == 0 {
		t.Errorf("expected cached embeddings in %s, err=%v", cfg.CacheDir, err)
	}
}

func TestBuildSQLiteCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheBackend = "sqlite"
	cfg.CacheTTL = time.Hour
	ctx := context.Background()
	a, err := Build(ctx, cfg, nil, nil, verdict.Static{RelevanceMin: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(cfg.CacheDir, "embeddings.db")); err != nil {
		t.Errorf("sqlite database not created: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestBuildRejectsUnknownBackends(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
		key  string
	}{
		{"embed", func(c *Config) { c.EmbedBackend = "word2vec" }, "EMBED_BACKEND"},
		{"cache", func(c *Config) { c.CacheBackend = "redis" }, "CACHE_BACKEND"},
		{"index", func(c *Config) { c.IndexBackend = "faiss" }, "INDEX_BACKEND"},
		{"openai key", func(c *Config) { c.EmbedBackend = "openai" }, "OPENAI_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mut(&cfg)
			_, err := Build(context.Background(), cfg, nil, nil, nil)
			var ce *domain.ConfigError
			if !errors.As(err, &ce) || ce.Key != tt.key {
				t.Fatalf("Build error = %v, want ConfigError for %s", err, tt.key)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EMBED_BACKEND", "ollama")
	t.Setenv("EVAL_TIMEOUT", "2s")
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.EmbedBackend != "ollama" || cfg.EvalTimeout != 2*time.Second || cfg.ThresholdsPath != "configs/thresholds.yaml" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadInvalidEnvironment(t *testing.T) {
	t.Setenv("EVAL_TIMEOUT", "soon")
	_, err := Load(context.Background())
	var ce *domain.ConfigError
	if !errors.As(err, &ce) || ce.Wrapped == nil {
		t.Fatalf("Load error = %v, want wrapped ConfigError", err)
	}
	if n := strings.Count(err.Error(), ce.Wrapped.Error()); n != 1 {
		t.Errorf("cause appears %d times in %q", n, err.Error())
	}
}

func TestNewLogger(t *testing.T) {
	if !NewLogger(io.Discard, "debug").Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
	if NewLogger(io.Discard, "bogus").Enabled(context.Background(), slog.LevelDebug) {
		t.Error("unknown level should fall back to info")
	}
}
