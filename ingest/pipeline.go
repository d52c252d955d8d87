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
	"log/slog"
	"strings"
	"time"

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/process"
	"github.com/quarrylabs/quarry/storage"
)

// Pipeline drives one document through the ordered stage sequence. One
// pipeline instance is safe for concurrent Run calls; all per-run state
// lives in the PipelineState it returns.
type Pipeline struct {
	stages   []Stage
	executor *Executor
	tracker  *process.Tracker
	logger   *slog.Logger
	clock    func() time.Time

	chunkSize    int
	chunkOverlap int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline) error

// WithChunking overrides the chunk size and overlap window, both in
// bytes of normalized text.
func WithChunking(maxSize, overlap int) PipelineOption {
	return func(p *Pipeline) error {
		if _, err := NewChunker(maxSize, overlap); err != nil {
			return err
		}
		p.chunkSize = maxSize
		p.chunkOverlap = overlap
		return nil
	}
}

// WithPipelineLogger sets a custom logger. Default is slog.Default().
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithPipelineClock overrides the time source. Intended for tests.
func WithPipelineClock(clock func() time.Time) PipelineOption {
	return func(p *Pipeline) error {
		if clock != nil {
			p.clock = clock
		}
		return nil
	}
}

// NewPipeline creates a document pipeline. The tracker may be nil for
// untracked runs; provider capabilities that are nil put the relevant
// stages into degraded mode.
func NewPipeline(provider ai.Provider, sink storage.KnowledgeSink, tracker *process.Tracker, opts ...PipelineOption) (*Pipeline, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if sink == nil {
		return nil, ErrSinkRequired
	}

	p := &Pipeline{
		tracker:      tracker,
		logger:       slog.Default().With("component", "pipeline"),
		clock:        time.Now,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	chunker, err := NewChunker(p.chunkSize, p.chunkOverlap)
	if err != nil {
		return nil, err
	}

	p.executor = NewExecutor(p.logger)
	p.stages = []Stage{
		newExtractStage(provider),
		newClassifyStage(),
		newMetadataStage(provider),
		newChunkStage(chunker),
		newEmbedStage(provider),
		newIndexStage(sink, p.clock),
	}
	return p, nil
}

// Run executes the full stage sequence for one document. procID may be
// empty for untracked runs; when set, the pipeline reports per-stage
// progress to the tracker and honors cooperative cancellation between
// stages. The returned state is always non-nil and records the terminal
// stage, accumulated errors, fallbacks and degraded capabilities.
func (p *Pipeline) Run(ctx context.Context, procID string, req *Request) (*core.PipelineState, error) {
	state := core.NewPipelineState()
	total := len(p.stages)

	for i, stage := range p.stages {
		if err := p.checkpoint(ctx, procID); err != nil {
			state.Stage = core.StageCancelled
			return state, err
		}
		p.report(procID, stage.Name(), i*100/total)

		if err := p.executor.Run(ctx, stage, req, state); err != nil {
			if ctx.Err() != nil {
				state.Stage = core.StageCancelled
			} else {
				state.Stage = core.StageFailed
			}
			return state, err
		}
	}

	p.reportOutcome(procID, state)
	p.logger.Info("document indexed",
		"source", req.Document.Source,
		"fingerprint", uint64(req.Document.Fingerprint),
		"type", state.DocType.String(),
		"chunks", len(state.Chunks))
	return state, nil
}

// checkpoint enforces cooperative cancellation at stage boundaries. An
// in-flight stage always finishes or errors before this fires.
func (p *Pipeline) checkpoint(ctx context.Context, procID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.tracker == nil || procID == "" {
		return nil
	}
	proc, err := p.tracker.Get(procID)
	if err != nil {
		return err
	}
	if proc.Status == core.StatusCancelled {
		return context.Canceled
	}
	return nil
}

func (p *Pipeline) report(procID, stageName string, pct int) {
	if p.tracker == nil || procID == "" {
		return
	}
	if _, err := p.tracker.Update(procID,
		process.WithProgress(pct),
		process.WithMeta("stage", stageName)); err != nil {
		p.logger.Debug("progress update failed", "id", procID, "error", err)
	}
}

// reportOutcome records fallback and degradation facts on the process so
// observers can see how the document was produced.
func (p *Pipeline) reportOutcome(procID string, state *core.PipelineState) {
	if p.tracker == nil || procID == "" {
		return
	}
	opts := []process.UpdateOption{process.WithMeta("doc_type", state.DocType.String())}
	if len(state.FallbacksUsed) > 0 {
		opts = append(opts, process.WithMeta("fallbacks_used", strings.Join(state.FallbacksUsed, ",")))
	}
	if len(state.Degraded) > 0 {
		opts = append(opts, process.WithMeta("degraded", strings.Join(state.Degraded, ",")))
	}
	if _, err := p.tracker.Update(procID, opts...); err != nil {
		p.logger.Debug("outcome update failed", "id", procID, "error", err)
	}
}
