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


package core

import (
	"maps"
	"time"
)

// ProcessType categorizes a tracked unit of asynchronous work.
type ProcessType int

const (
	// ProcessIngestionRun is a batch ingestion of multiple documents.
	ProcessIngestionRun ProcessType = iota + 1
	// ProcessDocumentJob is the ingestion of a single document.
	ProcessDocumentJob
	// ProcessQuery is a search query execution.
	ProcessQuery
	// ProcessRetrain is a re-embedding of the stored corpus.
	ProcessRetrain
	// ProcessBackgroundJob is internal maintenance work.
	ProcessBackgroundJob
	// ProcessToolInvocation is an externally requested tool call.
	ProcessToolInvocation
)

var processTypeNames = map[ProcessType]string{
	ProcessIngestionRun:   "ingestion-run",
	ProcessDocumentJob:    "document-job",
	ProcessQuery:          "query",
	ProcessRetrain:        "retrain",
	ProcessBackgroundJob:  "background-job",
	ProcessToolInvocation: "tool-invocation",
}

// String returns the canonical name of the process type.
func (t ProcessType) String() string {
	if name, ok := processTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ProcessStatus is the lifecycle state of a tracked process.
type ProcessStatus int

const (
	// StatusPending means the process is registered but not yet running.
	StatusPending ProcessStatus = iota + 1
	// StatusRunning means the process is executing.
	StatusRunning
	// StatusCompleted is the successful terminal state.
	StatusCompleted
	// StatusFailed is the terminal failure state.
	StatusFailed
	// StatusCancelled means the process was cancelled externally.
	StatusCancelled
	// StatusTimedOut means the process exceeded its maximum duration.
	StatusTimedOut
)

var processStatusNames = map[ProcessStatus]string{
	StatusPending:   "pending",
	StatusRunning:   "running",
	StatusCompleted: "completed",
	StatusFailed:    "failed",
	StatusCancelled: "cancelled",
	StatusTimedOut:  "timed-out",
}

// String returns the canonical name of the status.
func (s ProcessStatus) String() string {
	if name, ok := processStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the status admits no further transitions.
func (s ProcessStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

// Process is a tracked unit of asynchronous work: an ingestion run, a
// single document job, a query or a retrain. All mutation funnels through
// the process tracker so there is a single writer per process id.
type Process struct {
	ID        string
	Type      ProcessType
	Name      string
	Status    ProcessStatus
	Progress  int // 0-100
	Message   string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy safe to hand to observers.
func (p *Process) Clone() *Process {
	cp := *p
	if p.Metadata != nil {
		cp.Metadata = maps.Clone(p.Metadata)
	}
	return &cp
}

// ProcessEvent is the structured notification published on every
// successful process update.
type ProcessEvent struct {
	ID        string
	Type      ProcessType
	Status    ProcessStatus
	Progress  int
	Message   string
	Timestamp time.Time
	Metadata  map[string]string
}

// EventFromProcess builds the broadcast event for a process snapshot.
func EventFromProcess(p *Process) ProcessEvent {
	ev := ProcessEvent{
		ID:        p.ID,
		Type:      p.Type,
		Status:    p.Status,
		Progress:  p.Progress,
		Message:   p.Message,
		Timestamp: p.UpdatedAt,
	}
	if p.Metadata != nil {
		ev.Metadata = maps.Clone(p.Metadata)
	}
	return ev
}

// RetryPolicy controls how the retry supervisor re-invokes a failed
// operation. Policies are immutable configuration keyed by process type.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Base         float64       // exponential growth factor
	Jitter       bool          // uniform random factor in [0, delay)
	Timeout      time.Duration // maximum total duration, 0 = unlimited
}

// DefaultRetryPolicy is used when no policy is registered for a type.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Base:         2,
		Jitter:       true,
	}
}
