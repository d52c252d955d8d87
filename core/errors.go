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
	"errors"
	"fmt"
)

// Domain and lifecycle errors
var (
	// ErrEmptyDocument indicates a document yielded no text after all
	// extraction fallbacks. Empty documents are not indexed.
	ErrEmptyDocument = errors.New("document has no extractable text")

	// ErrBatchPrecondition indicates a batch-level precondition failed,
	// for example an unreadable source directory. It fails the whole run.
	ErrBatchPrecondition = errors.New("batch precondition violated")

	// ErrUnknownProcessID indicates an operation referenced a process id
	// that is not registered.
	ErrUnknownProcessID = errors.New("unknown process id")

	// ErrDuplicateProcessID indicates Start was called with an id that
	// already exists and is non-terminal.
	ErrDuplicateProcessID = errors.New("duplicate process id")

	// ErrPolicyExhausted indicates all retry attempts were consumed.
	ErrPolicyExhausted = errors.New("retry policy exhausted")

	// ErrProcessNotCancellable indicates Cancel was called on a process
	// that is not Pending or Running.
	ErrProcessNotCancellable = errors.New("process is not cancellable")

	// ErrCapabilityUnavailable indicates an optional capability was not
	// available at startup. Callers degrade rather than fail.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")
)

// StageError is a classified failure from one pipeline stage. Recoverable
// errors trigger fallback or retry; unrecoverable errors fail the single
// document, never the batch.
type StageError struct {
	Stage       string // stage name, e.g. "text-extraction"
	Method      string // fallback method that produced the error, if any
	Recoverable bool
	Err         error
}

// NewStageError builds a recoverable stage error.
func NewStageError(stage, method string, err error) *StageError {
	return &StageError{Stage: stage, Method: method, Recoverable: true, Err: err}
}

// NewUnrecoverableStageError builds an unrecoverable stage error.
func NewUnrecoverableStageError(stage, method string, err error) *StageError {
	return &StageError{Stage: stage, Method: method, Recoverable: false, Err: err}
}

// Error implements the error interface.
func (e *StageError) Error() string {
	kind := "unrecoverable"
	if e.Recoverable {
		kind = "recoverable"
	}
	if e.Method != "" {
		return fmt.Sprintf("stage %s (%s): %s error: %v", e.Stage, e.Method, kind, e.Err)
	}
	return fmt.Sprintf("stage %s: %s error: %v", e.Stage, kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *StageError) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether err may be retried or handled by a
// fallback. Unknown error types are treated as recoverable so transient
// infrastructure failures get retried; policy violations must be wrapped
// in an unrecoverable StageError explicitly.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Recoverable
	}
	if errors.Is(err, ErrBatchPrecondition) || errors.Is(err, ErrEmptyDocument) {
		return false
	}
	return true
}
