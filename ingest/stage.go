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
	"log/slog"

	"github.com/quarrylabs/quarry/core"
)

// Request carries one document and its raw bytes through a pipeline run.
// The bytes are read once at discovery so the fingerprint and every
// stage see identical content.
type Request struct {
	Document *core.Document
	Data     []byte
}

// Stage runs exactly one transformation step over one document. Stages
// never mutate the request; they write their results into the state,
// which the pipeline owns.
type Stage interface {
	// Name identifies the stage in errors, logs and progress metadata.
	Name() string

	// Target is the pipeline state reached when the stage succeeds.
	Target() core.Stage

	// Run executes the stage. Errors must be classified: recoverable
	// failures may be retried by the supervisor, unrecoverable ones fail
	// the document.
	Run(ctx context.Context, req *Request, state *core.PipelineState) error
}

// Executor runs a single stage, classifying any failure into a
// core.StageError and recording it on the state.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates a stage executor.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Run executes one stage and advances the state to the stage's target on
// success. The returned error is always a *core.StageError (or a context
// error when the run was interrupted).
func (e *Executor) Run(ctx context.Context, stage Stage, req *Request, state *core.PipelineState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := stage.Run(ctx, req, state)
	if err == nil {
		state.Stage = stage.Target()
		e.logger.Debug("stage complete",
			"stage", stage.Name(), "source", req.Document.Source, "state", state.Stage.String())
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	stageErr := classify(stage.Name(), err)
	state.RecordError(stageErr)
	e.logger.Warn("stage failed",
		"stage", stage.Name(), "source", req.Document.Source,
		"recoverable", stageErr.Recoverable, "error", stageErr.Err)
	return stageErr
}

// classify wraps an arbitrary stage failure into a StageError, keeping
// an existing classification intact.
func classify(stageName string, err error) *core.StageError {
	var stageErr *core.StageError
	if errors.As(err, &stageErr) {
		return stageErr
	}
	if core.IsRecoverable(err) {
		return core.NewStageError(stageName, "", err)
	}
	return core.NewUnrecoverableStageError(stageName, "", err)
}

// chainMethod is one entry in a fallback chain: a named attempt that
// either produces a result, fails recoverably (next method runs), or is
// unavailable (skipped and recorded as degraded).
type chainMethod[T any] struct {
	name string
	run  func(ctx context.Context) (T, error)
}

// runChain iterates the fallback chain in priority order. The first
// method to succeed wins; its name lands in FallbacksUsed when an
// earlier method was actually attempted. Exhausting the chain is an
// unrecoverable failure for the document.
func runChain[T any](ctx context.Context, stageName string, state *core.PipelineState, methods []chainMethod[T], accept func(T) error) (T, error) {
	var zero T
	attempted := false

	for _, m := range methods {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := m.run(ctx)
		if err == nil {
			if acceptErr := accept(result); acceptErr != nil {
				state.RecordError(core.NewStageError(stageName, m.name, acceptErr))
				attempted = true
				continue
			}
			if attempted {
				state.FallbacksUsed = append(state.FallbacksUsed, m.name)
			}
			return result, nil
		}

		if errors.Is(err, core.ErrCapabilityUnavailable) {
			state.Degraded = append(state.Degraded, m.name)
			continue
		}
		if !core.IsRecoverable(err) {
			return zero, core.NewUnrecoverableStageError(stageName, m.name, err)
		}
		state.RecordError(core.NewStageError(stageName, m.name, err))
		attempted = true
	}

	return zero, core.NewUnrecoverableStageError(stageName, "",
		fmt.Errorf("all methods exhausted"))
}
