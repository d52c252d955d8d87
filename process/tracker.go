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


package process

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quarrylabs/quarry/core"
)

const (
	defaultRetention    = 10 * time.Minute
	defaultReapInterval = time.Minute
)

// StartRequest registers a new process with the tracker.
type StartRequest struct {
	ID       string // generated when empty
	Type     core.ProcessType
	Name     string
	Metadata map[string]string
}

// entry is the tracked state of one process. Its mutex serializes all
// writes to the process, giving each id a single writer.
type entry struct {
	mu   sync.Mutex
	proc *core.Process

	// done is closed when the process reaches a terminal state. Workers
	// select on it at cancellation checkpoints.
	done     chan struct{}
	doneOnce sync.Once
}

func (e *entry) markDone() {
	e.doneOnce.Do(func() { close(e.done) })
}

// Tracker is the registry of asynchronous processes. All process
// mutation goes through it; observers receive a full snapshot event on
// every successful update.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool

	logger       *slog.Logger
	retention    time.Duration
	reapInterval time.Duration
	clock        func() time.Time
	journal      Recorder

	bus    *eventBus
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker) error

// WithRetention sets how long terminal processes stay visible before the
// reaper removes them.
func WithRetention(d time.Duration) TrackerOption {
	return func(t *Tracker) error {
		if d <= 0 {
			return fmt.Errorf("retention must be positive, got %v", d)
		}
		t.retention = d
		return nil
	}
}

// WithReapInterval sets how often the reaper scans for expired entries.
func WithReapInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) error {
		if d <= 0 {
			return fmt.Errorf("reap interval must be positive, got %v", d)
		}
		t.reapInterval = d
		return nil
	}
}

// WithJournal records the final snapshot of every terminal process.
func WithJournal(j Recorder) TrackerOption {
	return func(t *Tracker) error {
		t.journal = j
		return nil
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) TrackerOption {
	return func(t *Tracker) error {
		if clock == nil {
			return fmt.Errorf("clock must not be nil")
		}
		t.clock = clock
		return nil
	}
}

// WithTrackerLogger sets the logger used by the tracker.
func WithTrackerLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		t.logger = logger
		return nil
	}
}

// NewTracker creates a process tracker and starts its reaper.
func NewTracker(opts ...TrackerOption) (*Tracker, error) {
	t := &Tracker{
		entries:      make(map[string]*entry),
		logger:       slog.Default().With("component", "process-tracker"),
		retention:    defaultRetention,
		reapInterval: defaultReapInterval,
		clock:        time.Now,
		bus:          newEventBus(),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	t.wg.Add(1)
	go t.reapLoop()
	return t, nil
}

// Close stops the reaper and closes all subscriber streams. Live
// processes are not cancelled.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.stopCh)
	t.wg.Wait()
	t.bus.close()
	return nil
}

// Start registers a new process in the pending state. A request with an
// id that is already live fails with ErrDuplicateProcessID; a terminal
// entry under the same id is replaced.
func (t *Tracker) Start(req StartRequest) (*core.Process, error) {
	if req.Type.String() == "unknown" {
		return nil, fmt.Errorf("%w: %d", ErrInvalidProcessType, req.Type)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTrackerClosed
	}
	if existing, ok := t.entries[id]; ok {
		existing.mu.Lock()
		terminal := existing.proc.Status.Terminal()
		existing.mu.Unlock()
		if !terminal {
			t.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", core.ErrDuplicateProcessID, id)
		}
	}

	now := t.clock()
	proc := &core.Process{
		ID:        id,
		Type:      req.Type,
		Name:      req.Name,
		Status:    core.StatusPending,
		Metadata:  cloneMetadata(req.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
	e := &entry{proc: proc, done: make(chan struct{})}
	t.entries[id] = e
	t.mu.Unlock()

	t.logger.Debug("process started", "id", id, "type", req.Type.String(), "name", req.Name)
	t.bus.publish(core.EventFromProcess(proc))
	return proc.Clone(), nil
}

// Get returns a snapshot of the process.
func (t *Tracker) Get(id string) (*core.Process, error) {
	e, err := t.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.proc.Clone(), nil
}

// ListFilter restricts List output. Empty slices match everything.
type ListFilter struct {
	Types    []core.ProcessType
	Statuses []core.ProcessStatus
}

func (f ListFilter) matches(p *core.Process) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, p.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, p.Status) {
		return false
	}
	return true
}

// List returns snapshots of all tracked processes matching the filter,
// newest first.
func (t *Tracker) List(filter ListFilter) []*core.Process {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	procs := make([]*core.Process, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if filter.matches(e.proc) {
			procs = append(procs, e.proc.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(procs, func(i, j int) bool {
		if !procs[i].CreatedAt.Equal(procs[j].CreatedAt) {
			return procs[i].CreatedAt.After(procs[j].CreatedAt)
		}
		return procs[i].ID < procs[j].ID
	})
	return procs
}

// Update applies the given changes to the process and broadcasts the new
// snapshot. A terminal process keeps its status but still accepts
// metadata, progress and message merges, so a stage finishing after a
// cancellation cannot resurrect the process.
func (t *Tracker) Update(id string, opts ...UpdateOption) (*core.Process, error) {
	var upd update
	for _, opt := range opts {
		opt(&upd)
	}

	e, err := t.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	proc := e.proc
	wasTerminal := proc.Status.Terminal()

	if upd.hasStatus && !wasTerminal {
		proc.Status = upd.status
	}
	if upd.hasProgress {
		proc.Progress = clampProgress(upd.progress)
	}
	if upd.hasMessage {
		proc.Message = upd.message
	}
	if len(upd.metadata) > 0 {
		if proc.Metadata == nil {
			proc.Metadata = make(map[string]string, len(upd.metadata))
		}
		for k, v := range upd.metadata {
			proc.Metadata[k] = v
		}
	}
	proc.UpdatedAt = t.clock()

	becameTerminal := !wasTerminal && proc.Status.Terminal()
	if becameTerminal {
		e.markDone()
	}
	snapshot := proc.Clone()
	e.mu.Unlock()

	if becameTerminal {
		t.logger.Debug("process finished",
			"id", id, "status", snapshot.Status.String(), "message", snapshot.Message)
		t.record(snapshot)
	}
	t.bus.publish(core.EventFromProcess(snapshot))
	return snapshot, nil
}

// Cancel requests cooperative cancellation. Pending and running
// processes transition to the cancelled state immediately; workers
// observe it through Done and stop at their next checkpoint.
func (t *Tracker) Cancel(id string) error {
	e, err := t.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	proc := e.proc
	if proc.Status.Terminal() {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", core.ErrProcessNotCancellable, id, proc.Status)
	}
	proc.Status = core.StatusCancelled
	proc.Message = "cancelled"
	proc.UpdatedAt = t.clock()
	e.markDone()
	snapshot := proc.Clone()
	e.mu.Unlock()

	t.logger.Info("process cancelled", "id", id, "type", snapshot.Type.String())
	t.record(snapshot)
	t.bus.publish(core.EventFromProcess(snapshot))
	return nil
}

// Done returns a channel closed when the process reaches a terminal
// state. Workers select on it between pipeline stages.
func (t *Tracker) Done(id string) (<-chan struct{}, error) {
	e, err := t.entry(id)
	if err != nil {
		return nil, err
	}
	return e.done, nil
}

func (t *Tracker) entry(id string) (*entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, ErrTrackerClosed
	}
	e, ok := t.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownProcessID, id)
	}
	return e, nil
}

func (t *Tracker) record(p *core.Process) {
	if t.journal == nil {
		return
	}
	if err := t.journal.Record(p); err != nil {
		t.logger.Warn("journal write failed", "id", p.ID, "error", err)
	}
}

func (t *Tracker) reapLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.reap()
		}
	}
}

// reap drops terminal entries older than the retention window.
func (t *Tracker) reap() {
	now := t.clock()

	t.mu.Lock()
	var reaped int
	for id, e := range t.entries {
		e.mu.Lock()
		expired := e.proc.Status.Terminal() && now.Sub(e.proc.UpdatedAt) > t.retention
		e.mu.Unlock()
		if expired {
			delete(t.entries, id)
			reaped++
		}
	}
	t.mu.Unlock()

	if reaped > 0 {
		t.logger.Debug("reaped terminal processes", "count", reaped)
	}
}

func clampProgress(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func cloneMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	cp := make(map[string]string, len(md))
	for k, v := range md {
		cp[k] = v
	}
	return cp
}

// update collects the changes requested by one Update call.
type update struct {
	status      core.ProcessStatus
	hasStatus   bool
	progress    int
	hasProgress bool
	message     string
	hasMessage  bool
	metadata    map[string]string
}

// UpdateOption describes one change applied by Tracker.Update.
type UpdateOption func(*update)

// WithStatus transitions the process to the given status. Ignored when
// the process is already terminal.
func WithStatus(status core.ProcessStatus) UpdateOption {
	return func(u *update) {
		u.status = status
		u.hasStatus = true
	}
}

// WithProgress sets the completion percentage, clamped to 0-100.
func WithProgress(pct int) UpdateOption {
	return func(u *update) {
		u.progress = pct
		u.hasProgress = true
	}
}

// WithMessage sets the human-readable status message.
func WithMessage(message string) UpdateOption {
	return func(u *update) {
		u.message = message
		u.hasMessage = true
	}
}

// WithMetadata merges the given keys into the process metadata.
// Existing keys are overwritten, absent keys are preserved.
func WithMetadata(md map[string]string) UpdateOption {
	return func(u *update) {
		if u.metadata == nil {
			u.metadata = make(map[string]string, len(md))
		}
		for k, v := range md {
			u.metadata[k] = v
		}
	}
}

// WithMeta merges a single metadata key.
func WithMeta(key, value string) UpdateOption {
	return func(u *update) {
		if u.metadata == nil {
			u.metadata = make(map[string]string, 1)
		}
		u.metadata[key] = value
	}
}
