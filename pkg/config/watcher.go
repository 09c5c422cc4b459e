package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent reports that a watched agents file changed on disk.
type ChangeEvent struct {
	Path      string
	Timestamp time.Time
}

// Watcher watches an agents directory for edits so the server can
// reload teams without a restart.
type Watcher struct {
	watcher       *fsnotify.Watcher
	events        chan ChangeEvent
	debounceTimer *time.Timer
	debounceMu    sync.Mutex
	closed        bool
	closeMu       sync.RWMutex
}

const debounceDelay = 500 * time.Millisecond

func NewWatcher() (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		watcher: watcher,
		events:  make(chan ChangeEvent, 16),
	}, nil
}

// Watch adds a directory to the watch set.
func (w *Watcher) Watch(dir string) error {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return fmt.Errorf("watcher is closed")
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := w.watcher.Add(absDir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", absDir, err)
	}

	slog.Debug("Started watching agents directory", "dir", absDir)
	return nil
}

// Events returns the channel for receiving change events.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

// Start begins processing file system events until ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
}

func (w *Watcher) processEvents(ctx context.Context) {
	// Mark the watcher closed before closing the channel, so a pending
	// debounce timer cannot send on it.
	defer func() {
		w.closeMu.Lock()
		w.closed = true
		w.closeMu.Unlock()
		close(w.events)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			// Editors save via write, create or rename.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			slog.Debug("Agents file changed", "path", event.Name, "op", event.Op)
			w.scheduleReload(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Agents watcher error", "error", err)
		}
	}
}

// scheduleReload emits a change event after the debounce delay, so a
// burst of writes from one save produces a single reload.
func (w *Watcher) scheduleReload(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(debounceDelay, func() {
		w.closeMu.RLock()
		defer w.closeMu.RUnlock()
		if w.closed {
			return
		}

		select {
		case w.events <- ChangeEvent{Path: path, Timestamp: time.Now()}:
		default:
			slog.Warn("Agents reload event channel full, skipping event")
		}
	})
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.closeMu.Lock()
	defer w.closeMu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()

	return w.watcher.Close()
}
