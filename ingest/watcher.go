// Copyright 2026 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long a path must stay quiet after its last
// write before it is submitted. Editors and copies produce bursts of
// events per file; the debounce collapses each burst into one ingestion.
const defaultDebounce = 500 * time.Millisecond

// Watcher feeds the scheduler from filesystem change events. Every
// created or modified regular file in a watched directory is ingested as
// a single-file run after a debounce window.
type Watcher struct {
	scheduler *Scheduler
	fsw       *fsnotify.Watcher
	logger    *slog.Logger
	debounce  time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher) error

// WithDebounce overrides the quiet window before a changed file is
// submitted.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) error {
		if d <= 0 {
			return fmt.Errorf("debounce must be positive, got %v", d)
		}
		w.debounce = d
		return nil
	}
}

// WithWatcherLogger sets a custom logger. Default is slog.Default().
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWatcher creates a filesystem watcher wired to the scheduler and
// starts its event loop. Directories are added with Add.
func NewWatcher(scheduler *Scheduler, opts ...WatcherOption) (*Watcher, error) {
	if scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	w := &Watcher{
		scheduler: scheduler,
		fsw:       fsw,
		logger:    slog.Default().With("component", "watcher"),
		debounce:  defaultDebounce,
		pending:   make(map[string]*time.Timer),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Add starts watching a directory. Files already present are not
// ingested; only subsequent changes are.
func (w *Watcher) Add(dir string) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrWatcherClosed
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.logger.Info("watching directory", "dir", dir)
	return nil
}

// Close stops the watcher. Debounced submissions that have not fired yet
// are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	close(w.stop)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// schedule arms (or re-arms) the debounce timer for a path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.submit(path)
	})
}

func (w *Watcher) submit(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	runID, err := w.scheduler.IngestFile(context.Background(), path)
	if err != nil {
		w.logger.Warn("watch ingestion failed", "source", path, "error", err)
		return
	}
	w.logger.Debug("watched file submitted", "source", path, "run", runID)
}
