package vocab

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay is how long the watcher waits for further writes
// before reloading an override file.
const DefaultReloadDelay = 100 * time.Millisecond

// LoadOverride merges the vocabularies of a YAML registry file into r.
func (r *Registry) LoadOverride(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read vocabulary override: %w", err)
	}
	override, err := ParseRegistry(data)
	if err != nil {
		return err
	}
	r.Merge(override)
	return nil
}

// WatchOption configures WatchRegistry.
type WatchOption func(*registryWatcher)

// WithWatchLogger sets the watcher's logger.
func WithWatchLogger(logger *slog.Logger) WatchOption {
	return func(w *registryWatcher) {
		w.logger = logger
	}
}

// WithReloadDelay sets the debounce delay.
func WithReloadDelay(d time.Duration) WatchOption {
	return func(w *registryWatcher) {
		w.delay = d
	}
}

// WithReloadHook is called after every reload attempt.
func WithReloadHook(fn func(error)) WatchOption {
	return func(w *registryWatcher) {
		w.onReload = fn
	}
}

type registryWatcher struct {
	registry *Registry
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	delay    time.Duration
	onReload func(error)

	mu      sync.Mutex
	pending bool
}

// WatchRegistry loads the override file at path into r and reloads it
// whenever it changes, until ctx is done. The containing directory is
// watched so editors that replace the file are noticed.
func (r *Registry) WatchRegistry(ctx context.Context, path string, opts ...WatchOption) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := r.LoadOverride(abs); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &registryWatcher{
		registry: r,
		path:     abs,
		watcher:  fsw,
		logger:   slog.Default(),
		delay:    DefaultReloadDelay,
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.run(ctx)
	w.logger.Info("Watching vocabulary registry", "path", abs)
	return nil
}

func (w *registryWatcher) run(ctx context.Context) {
	defer w.watcher.Close()
	ticker := time.NewTicker(w.delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.mu.Lock()
				w.pending = true
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Registry watcher error", "error", err)

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *registryWatcher) flush() {
	w.mu.Lock()
	if !w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	err := w.registry.LoadOverride(w.path)
	if err != nil {
		w.logger.Warn("Vocabulary registry reload failed", "path", w.path, "error", err)
	} else {
		w.logger.Info("Vocabulary registry reloaded", "path", w.path)
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}
