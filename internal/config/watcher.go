package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event carries a reloaded configuration or the error that prevented the
// reload.
type Event struct {
	Config *Config
	Err    error
}

// Watcher monitors a single configuration file and emits a reloaded Config
// whenever it changes. Writes are debounced because editors and atomic
// renames produce bursts of filesystem events.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	events   chan Event
	debounce time.Duration
}

// NewWatcher creates a watcher for the given configuration file. The parent
// directory is watched rather than the file itself so atomic replace
// (write-to-temp, rename) is observed.
func NewWatcher(path string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		path:     path,
		watcher:  fsWatcher,
		events:   make(chan Event, 4),
		debounce: 200 * time.Millisecond,
	}, nil
}

// Events returns the channel receiving reload results.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching. It returns once the watch is registered; reloads are
// delivered on Events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}
	go w.run(ctx)
	return nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	var pending bool
	var last time.Time
	ticker := time.NewTicker(w.debounce)
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
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = true
				last = time.Now()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.emit(ctx, Event{Err: err})

		case <-ticker.C:
			if !pending || time.Since(last) < w.debounce {
				continue
			}
			pending = false
			cfg, _, _, err := Load(w.path)
			if err != nil {
				w.emit(ctx, Event{Err: err})
				continue
			}
			w.emit(ctx, Event{Config: cfg})
		}
	}
}

func (w *Watcher) emit(ctx context.Context, event Event) {
	select {
	case w.events <- event:
	case <-ctx.Done():
	}
}
