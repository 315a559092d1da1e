package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads a Table whenever its policy file changes on disk.
// The parent directory is watched so editors that save via rename are seen.
type Watcher struct {
	table    *Table
	source   FileSource
	logger   *zap.Logger
	debounce time.Duration
	fs       *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer
}

// NewWatcher starts watching the directory holding source.Path.
func NewWatcher(table *Table, source FileSource, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(source.Path)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		table:    table,
		source:   source,
		logger:   logger,
		debounce: defaultDebounce,
		fs:       fsWatcher,
	}, nil
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	target := filepath.Clean(w.source.Path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("policy watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("policy watcher errors channel closed")
			}
			w.logger.Warn("policy watcher error", zap.Error(err))
		}
	}
}

// schedule coalesces bursts of events (truncate + write) into one reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, func() {
		// Reload logs and counts its own failures.
		_ = w.table.Reload(w.source)
	})
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	_ = w.fs.Close()
}
