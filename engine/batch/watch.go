package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/WessleyAI/evalpipe/engine/ingest"
	"github.com/WessleyAI/evalpipe/engine/report"
)

// DefaultWatchInterval is the scan period when Watch.Interval is not set.
const DefaultWatchInterval = 30 * time.Second

// State records which pairs have been evaluated, keyed by PairKey.
type State map[string]bool

// LoadState reads a state file. A missing file is an empty state.
func LoadState(path string) (State, error) {
	s := State{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("batch: read state %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("batch: decode state %s: %w", path, err)
	}
	return s, nil
}

// Save writes the state atomically.
func (s State) Save(path string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("batch: encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*")
	if err != nil {
		return fmt.Errorf("batch: save state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("batch: save state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("batch: save state: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// PairKey identifies a pair by file names and sizes, so an edited file is
// evaluated again.
func PairKey(src ingest.Source) (string, error) {
	chat, err := os.Stat(src.ChatPath)
	if err != nil {
		return "", err
	}
	ctx, err := os.Stat(src.CtxPath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d|%s:%d", chat.Name(), chat.Size(), ctx.Name(), ctx.Size()), nil
}

// Watch evaluates new pairs as they appear in Dir. Pairs that fail are not
// marked done and are retried on the next scan.
type Watch struct {
	Dir       string
	StatePath string
	Interval  time.Duration
	Runner    *Runner
	// OnRows receives the rows of each scan that evaluated something.
	OnRows func([]report.Row) error
	Logger *slog.Logger
}

func (w *Watch) log() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

// Run scans immediately and then every Interval until ctx is done.
func (w *Watch) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	w.log().Info("batch: watching", "dir", w.Dir, "interval", interval)

	if _, err := w.Scan(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Scan(ctx); err != nil {
				w.log().Error("batch: scan failed", "dir", w.Dir, "err", err)
			}
		}
	}
}

// Scan evaluates the pairs not yet in the state file and returns how many
// succeeded.
func (w *Watch) Scan(ctx context.Context) (int, error) {
	state, err := LoadState(w.StatePath)
	if err != nil {
		return 0, err
	}
	pairs, err := FindPairs(w.Dir)
	if err != nil {
		return 0, err
	}

	var (
		pending []ingest.Source
		keys    []string
	)
	for _, p := range pairs {
		key, err := PairKey(p)
		if err != nil {
			w.log().Warn("batch: skipping pair", "chat", p.ChatPath, "err", err)
			continue
		}
		if state[key] {
			continue
		}
		pending = append(pending, p)
		keys = append(keys, key)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	outcomes := w.Runner.Run(ctx, pending)
	var rows []report.Row
	for i, o := range outcomes {
		if o.Err != nil {
			w.log().Warn("batch: pair failed, will retry on next scan", "chat", o.Source.ChatPath, "err", o.Err)
			continue
		}
		state[keys[i]] = true
		rows = append(rows, o.Row())
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if w.OnRows != nil {
		if err := w.OnRows(rows); err != nil {
			return 0, err
		}
	}
	if err := state.Save(w.StatePath); err != nil {
		return len(rows), err
	}
	w.log().Info("batch: scan done", "evaluated", len(rows), "pending", len(pending)-len(rows))
	return len(rows), nil
}
