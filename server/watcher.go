package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/TFMV/topograph/ingest"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a hierarchy file into the registry whenever it changes.
// Bursts of events are debounced into one reload. A reload that fails to
// parse keeps the previous tree.
type Watcher struct {
	path     string
	id       string
	registry *Registry
	debounce time.Duration
	logger   *slog.Logger

	// reloaded is called after every successful reload; used by tests
	reloaded func()
}

// NewWatcher creates a watcher storing the file at path under id
func NewWatcher(path, id string, registry *Registry, debounce time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{
		path:     filepath.Clean(path),
		id:       id,
		registry: registry,
		debounce: debounce,
		logger:   logger.With("component", "watcher", "path", path),
	}
}

// Reload reads the file and stores it in the registry
func (w *Watcher) Reload(ctx context.Context) error {
	tree, err := ingest.LoadFile(ctx, w.path)
	if err != nil {
		return fmt.Errorf("reload %s: %w", w.path, err)
	}
	if err := w.registry.Put(w.id, filepath.Base(w.path), tree); err != nil {
		return err
	}
	w.logger.Info("hierarchy reloaded", "id", w.id, "nodes", tree.Size())
	if w.reloaded != nil {
		w.reloaded()
	}
	return nil
}

// Run watches the file until ctx is canceled. The parent directory is
// watched so that editors replacing the file by rename are noticed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			if err := w.Reload(ctx); err != nil {
				w.logger.Warn("keeping previous hierarchy", "error", err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}
