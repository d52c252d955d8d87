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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/process"
)

// Scheduler fans batches of files out to concurrent pipeline runs over a
// bounded worker pool. Every batch is tracked as a parent ingestion-run
// process with one child document-job process per file; a single
// document's failure never halts the batch.
type Scheduler struct {
	pipeline   *Pipeline
	tracker    *process.Tracker
	supervisor *process.Supervisor
	pool       *ants.Pool
	logger     *slog.Logger
	clock      func() time.Time

	mu       sync.Mutex
	runs     map[string]*run
	released bool
}

// run is the in-flight bookkeeping for one batch.
type run struct {
	parentID string
	total    int

	mu        sync.Mutex
	succeeded int
	failed    int
	pending   int
	children  map[string]struct{} // live child process ids

	done chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler) error

// WithWorkers sets the worker pool size. Default is half the CPUs, with
// a minimum of 1.
func WithWorkers(size int) SchedulerOption {
	return func(s *Scheduler) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithSchedulerLogger sets a custom logger. Default is slog.Default().
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewScheduler creates an ingestion scheduler.
func NewScheduler(pipeline *Pipeline, tracker *process.Tracker, supervisor *process.Supervisor, opts ...SchedulerOption) (*Scheduler, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if tracker == nil {
		return nil, ErrTrackerRequired
	}
	if supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		pipeline:   pipeline,
		tracker:    tracker,
		supervisor: supervisor,
		pool:       pool,
		logger:     slog.Default().With("component", "scheduler"),
		clock:      time.Now,
		runs:       make(map[string]*run),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.pool.Release()
			return nil, err
		}
	}
	return s, nil
}

// IngestDirectory walks dir and ingests every regular file found,
// skipping hidden entries. An unreadable directory violates the batch
// precondition and fails the whole run before it starts.
func (s *Scheduler) IngestDirectory(ctx context.Context, dir string) (string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrBatchPrecondition, err)
	}

	return s.submit(ctx, "ingest "+dir, paths)
}

// IngestFiles ingests an explicit list of files as one batch.
func (s *Scheduler) IngestFiles(ctx context.Context, paths []string) (string, error) {
	return s.submit(ctx, fmt.Sprintf("ingest %d files", len(paths)), paths)
}

// IngestFile ingests a single ad-hoc file.
func (s *Scheduler) IngestFile(ctx context.Context, path string) (string, error) {
	return s.submit(ctx, "ingest "+path, []string{path})
}

// submit registers the parent run, queues every document on the pool and
// returns the run's process id without waiting for completion.
func (s *Scheduler) submit(ctx context.Context, name string, paths []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return "", ErrSchedulerReleased
	}
	s.mu.Unlock()

	parent, err := s.tracker.Start(process.StartRequest{
		Type: core.ProcessIngestionRun,
		Name: name,
		Metadata: map[string]string{
			"total":     strconv.Itoa(len(paths)),
			"pending":   strconv.Itoa(len(paths)),
			"succeeded": "0",
			"failed":    "0",
		},
	})
	if err != nil {
		return "", err
	}

	r := &run{
		parentID: parent.ID,
		total:    len(paths),
		pending:  len(paths),
		children: make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	s.mu.Lock()
	s.runs[parent.ID] = r
	s.mu.Unlock()

	if _, err := s.tracker.Update(parent.ID, process.WithStatus(core.StatusRunning)); err != nil {
		return "", err
	}

	if len(paths) == 0 {
		s.finalize(r)
		return parent.ID, nil
	}

	// Jobs outlive the submission call; they run under the run's own
	// context, cancelled when the parent process is.
	runCtx, stopRun := context.WithCancel(context.Background())
	go s.watchParent(r, stopRun)

	var wg sync.WaitGroup
	for _, path := range paths {
		path := path
		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			s.runDocument(runCtx, r, path)
		}); err != nil {
			wg.Done()
			s.childless(r, fmt.Errorf("submitting %s: %w", path, err))
		}
	}
	go func() {
		wg.Wait()
		stopRun()
		s.finalize(r)
	}()

	s.logger.Info("ingestion run submitted", "id", parent.ID, "documents", len(paths))
	return parent.ID, nil
}

// Wait blocks until the run has finalized. Intended for CLI entry points
// and tests; submission itself never blocks.
func (s *Scheduler) Wait(runID string) error {
	s.mu.Lock()
	r, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok {
		// Finished runs are pruned; a terminal parent process still
		// answers for them.
		if proc, err := s.tracker.Get(runID); err == nil &&
			proc.Type == core.ProcessIngestionRun && proc.Status.Terminal() {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	<-r.done
	return nil
}

// Release shuts the worker pool down. In-flight documents finish;
// further submissions fail.
func (s *Scheduler) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()
	s.pool.Release()
}

// runDocument executes one child document job end to end.
func (s *Scheduler) runDocument(ctx context.Context, r *run, path string) {
	if parent, err := s.tracker.Get(r.parentID); err != nil || parent.Status.Terminal() {
		s.childless(r, context.Canceled)
		return
	}

	child, err := s.tracker.Start(process.StartRequest{
		Type: core.ProcessDocumentJob,
		Name: path,
		Metadata: map[string]string{
			"run_id": r.parentID,
			"source": path,
		},
	})
	if err != nil {
		s.childless(r, err)
		return
	}

	r.mu.Lock()
	r.children[child.ID] = struct{}{}
	r.mu.Unlock()

	req, err := s.discover(path)
	if err != nil {
		s.logger.Warn("document unreadable", "source", path, "error", err)
		_, _ = s.tracker.Update(child.ID,
			process.WithStatus(core.StatusFailed),
			process.WithMessage(err.Error()))
		s.childDone(r, child.ID, false)
		return
	}

	err = s.supervisor.Do(ctx, child.ID, func(ctx context.Context) error {
		_, runErr := s.pipeline.Run(ctx, child.ID, req)
		return runErr
	})
	if err != nil {
		// A run-level cancellation leaves the child status to us.
		if errors.Is(err, context.Canceled) {
			_ = s.tracker.Cancel(child.ID)
		}
		s.logger.Warn("document failed", "source", path, "error", err)
		s.childDone(r, child.ID, false)
		return
	}

	_, _ = s.tracker.Update(child.ID,
		process.WithStatus(core.StatusCompleted),
		process.WithProgress(100),
		process.WithMessage("indexed"))
	s.childDone(r, child.ID, true)
}

// discover reads the file once; the fingerprint and every stage see the
// same bytes.
func (s *Scheduler) discover(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := &core.Document{
		Fingerprint:  core.FingerprintBytes(data),
		Source:       path,
		Type:         core.DocTypeUnknown,
		Size:         int64(len(data)),
		DiscoveredAt: s.clock().UTC(),
	}
	return &Request{Document: doc, Data: data}, nil
}

// childDone updates the run counters and mirrors them onto the parent
// process after every child completion.
func (s *Scheduler) childDone(r *run, childID string, succeeded bool) {
	r.mu.Lock()
	delete(r.children, childID)
	r.pending--
	if succeeded {
		r.succeeded++
	} else {
		r.failed++
	}
	sCount, fCount, pCount := r.succeeded, r.failed, r.pending
	r.mu.Unlock()

	progress := 0
	if r.total > 0 {
		progress = (sCount + fCount) * 100 / r.total
	}
	_, _ = s.tracker.Update(r.parentID,
		process.WithProgress(progress),
		process.WithMetadata(map[string]string{
			"succeeded": strconv.Itoa(sCount),
			"failed":    strconv.Itoa(fCount),
			"pending":   strconv.Itoa(pCount),
		}))
}

// childless records a document that failed before its child process
// could run.
func (s *Scheduler) childless(r *run, err error) {
	s.logger.Debug("document skipped", "run", r.parentID, "error", err)
	s.childDone(r, "", false)
}

// watchParent cancels the run context and every live child when the
// parent process is cancelled externally.
func (s *Scheduler) watchParent(r *run, stopRun context.CancelFunc) {
	parentDone, err := s.tracker.Done(r.parentID)
	if err != nil {
		return
	}
	select {
	case <-parentDone:
	case <-r.done:
		return
	}

	parent, err := s.tracker.Get(r.parentID)
	if err != nil || parent.Status != core.StatusCancelled {
		return
	}

	stopRun()
	r.mu.Lock()
	children := make([]string, 0, len(r.children))
	for id := range r.children {
		children = append(children, id)
	}
	r.mu.Unlock()
	for _, id := range children {
		if err := s.tracker.Cancel(id); err == nil {
			s.logger.Debug("child cancelled with run", "run", r.parentID, "child", id)
		}
	}
}

// finalize settles the parent process once every child has finished.
func (s *Scheduler) finalize(r *run) {
	r.mu.Lock()
	succeeded, failed := r.succeeded, r.failed
	r.mu.Unlock()

	parent, err := s.tracker.Get(r.parentID)
	if err == nil && !parent.Status.Terminal() {
		switch {
		case r.total == 0:
			_, _ = s.tracker.Update(r.parentID,
				process.WithStatus(core.StatusCompleted),
				process.WithProgress(100),
				process.WithMessage("no documents found"))
		case succeeded > 0:
			_, _ = s.tracker.Update(r.parentID,
				process.WithStatus(core.StatusCompleted),
				process.WithProgress(100),
				process.WithMessage(fmt.Sprintf("indexed %d of %d documents", succeeded, r.total)))
		default:
			_, _ = s.tracker.Update(r.parentID,
				process.WithStatus(core.StatusFailed),
				process.WithProgress(100),
				process.WithMessage(fmt.Sprintf("all %d documents failed", failed)))
		}
	}

	// The parent process carries the outcome from here on; keeping the
	// bookkeeping entry would grow the map for every run ever submitted.
	// Pruned before the done broadcast so a waiter never sees a stale
	// entry after waking.
	s.mu.Lock()
	delete(s.runs, r.parentID)
	s.mu.Unlock()

	close(r.done)
	s.logger.Info("ingestion run finished",
		"id", r.parentID, "succeeded", succeeded, "failed", failed)
}
