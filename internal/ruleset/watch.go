// internal/ruleset/watch.go
package ruleset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/solatis/commissar/internal/rules"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// Watcher rebuilds the rule book whenever the rule file changes.
//
// The parent directory is watched rather than the file so editors that
// replace the file by rename are still seen. A reload that produces any
// error is discarded and the previous book stays active.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	onLoad   func(*rules.RuleBook)
	observe  func(error)
}

// NewWatcher starts watching path. onLoad receives every successfully
// rebuilt book. The watch is active once NewWatcher returns.
func NewWatcher(path string, onLoad func(*rules.RuleBook), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rules path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		watcher:  fsw,
		logger:   logger,
		debounce: DefaultDebounce,
		onLoad:   onLoad,
	}, nil
}

// SetDebounce overrides DefaultDebounce. Call before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// OnReload registers fn to be told the outcome of every reload attempt,
// nil on success. Call before Run.
func (w *Watcher) OnReload(fn func(error)) {
	w.observe = fn
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("Rule file change detected", "path", w.path, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	book, err := LoadFile(w.path, w.logger)
	if w.observe != nil {
		w.observe(err)
	}
	if err != nil {
		w.logger.Warn("Keeping previous rules after failed reload", "path", w.path, "error", err)
		return
	}
	w.onLoad(book)
}

// Close stops the watcher; Run returns once the event channels close.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
