package verdict

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher caches the thresholds from a file and reloads them when the file
// changes. While the file on disk is invalid, Load fails with the reload
// error until a valid edit lands.
type Watcher struct {
	path    string
	log     *slog.Logger
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current Thresholds
	lastErr error

	reloaded chan struct{}
}

// NewWatcher loads path once and starts watching its directory. Editors
// often replace files by rename, so the directory is watched rather than
// the file.
func NewWatcher(path string, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("verdict: watch %s: %w", path, err)
	}
	t, err := LoadFile(abs)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("verdict: watch %s: %w", path, err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("verdict: watch %s: %w", path, err)
	}
	return &Watcher{
		path:     abs,
		log:      log,
		watcher:  fw,
		current:  t,
		reloaded: make(chan struct{}, 1),
	}, nil
}

// Load returns the current snapshot, or the error of the last reload if
// it failed.
func (w *Watcher) Load(context.Context) (Thresholds, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.lastErr != nil {
		return Thresholds{}, w.lastErr
	}
	return w.current, nil
}

// Err returns the error from the most recent reload, if it failed.
func (w *Watcher) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

// Reloaded is signalled after every reload attempt.
func (w *Watcher) Reloaded() <-chan struct{} { return w.reloaded }

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("verdict: watcher error", "path", w.path, "err", err)
		}
	}
}

func (w *Watcher) reload() {
	t, err := LoadFile(w.path)
	w.mu.Lock()
	w.lastErr = err
	if err == nil {
		w.current = t
	}
	w.mu.Unlock()

	if err != nil {
		w.log.Error("verdict: thresholds reload failed", "path", w.path, "err", err)
	} else {
		w.log.Info("verdict: thresholds reloaded", "path", w.path,
			"relevance_min", t.RelevanceMin, "completeness_min", t.CompletenessMin, "factuality_min", t.FactualityMin)
	}
	select {
	case w.reloaded <- struct{}{}:
	default:
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
