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


package reindex

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/process"
	"github.com/quarrylabs/quarry/storage"
)

// Reindexer orchestrates re-embedding of the whole stored corpus as one
// tracked retrain process.
type Reindexer struct {
	store      storage.DocumentStore
	sink       storage.KnowledgeSink
	embedder   ai.Embedder
	tracker    *process.Tracker
	supervisor *process.Supervisor
	batchSize  int
	logger     *slog.Logger
}

// Option configures a Reindexer.
type Option func(*Reindexer) error

// WithBatchSize sets the number of chunks embedded per embedder call.
func WithBatchSize(size int) Option {
	return func(r *Reindexer) error {
		if size <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		r.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reindexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewReindexer creates a reindexer. The provider must have an embedding
// capability; reindexing without one is meaningless.
func NewReindexer(store storage.DocumentStore, sink storage.KnowledgeSink, provider ai.Provider, tracker *process.Tracker, supervisor *process.Supervisor, opts ...Option) (*Reindexer, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if sink == nil {
		return nil, ErrSinkRequired
	}
	if provider == nil || provider.Embedder() == nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedderRequired, core.ErrCapabilityUnavailable)
	}
	if tracker == nil {
		return nil, ErrTrackerRequired
	}
	if supervisor == nil {
		return nil, ErrSupervisorRequired
	}

	r := &Reindexer{
		store:      store,
		sink:       sink,
		embedder:   provider.Embedder(),
		tracker:    tracker,
		supervisor: supervisor,
		batchSize:  DefaultBatchSize,
		logger:     slog.Default().With("component", "reindexer"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Run re-embeds every stored document under a retrain process and
// returns its process id. The run retries per the supervisor's policy;
// upserts are idempotent, so a retried run redoes work but never
// corrupts the store.
func (r *Reindexer) Run(ctx context.Context) (string, error) {
	proc, err := r.tracker.Start(process.StartRequest{
		Type: core.ProcessRetrain,
		Name: "reindex corpus",
	})
	if err != nil {
		return "", err
	}

	var chunksDone atomic.Int64
	err = r.supervisor.Do(ctx, proc.ID, func(ctx context.Context) error {
		chunksDone.Store(0)
		return r.reindexAll(ctx, proc.ID, &chunksDone)
	})
	if err != nil {
		r.logger.Warn("reindex failed", "id", proc.ID, "error", err)
		return proc.ID, err
	}

	_, _ = r.tracker.Update(proc.ID,
		process.WithStatus(core.StatusCompleted),
		process.WithProgress(100),
		process.WithMessage(fmt.Sprintf("re-embedded %d chunks", chunksDone.Load())))
	r.logger.Info("reindex complete", "id", proc.ID, "chunks", chunksDone.Load())
	return proc.ID, nil
}

func (r *Reindexer) reindexAll(ctx context.Context, procID string, chunksDone *atomic.Int64) error {
	iterator := NewDocumentIterator(r.store)
	processor := NewBatchProcessor(r.sink, r.embedder, r.batchSize)

	total, err := iterator.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	if total == 0 {
		_, _ = r.tracker.Update(procID, process.WithMessage("no documents to reindex"))
		return nil
	}

	docsDone := 0
	return iterator.ForEach(ctx, func(doc *core.Document, chunks []*core.Chunk) error {
		if err := processor.Process(ctx, doc, chunks); err != nil {
			return err
		}

		docsDone++
		chunksDone.Add(int64(len(chunks)))
		_, _ = r.tracker.Update(procID,
			process.WithProgress(docsDone*100/total),
			process.WithMeta("documents", strconv.Itoa(docsDone)),
			process.WithMeta("chunks", strconv.FormatInt(chunksDone.Load(), 10)))
		return nil
	})
}
