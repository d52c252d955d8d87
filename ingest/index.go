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
	"maps"
	"time"

	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
)

const indexingStage = "indexing"

// indexStage upserts the finished document into the knowledge sink,
// keyed by fingerprint. The sink replaces any prior generation of the
// same fingerprint atomically, so re-ingesting an unchanged file leaves
// the observable index content identical apart from timestamps.
type indexStage struct {
	sink  storage.KnowledgeSink
	clock func() time.Time
}

func newIndexStage(sink storage.KnowledgeSink, clock func() time.Time) *indexStage {
	return &indexStage{sink: sink, clock: clock}
}

func (s *indexStage) Name() string       { return indexingStage }
func (s *indexStage) Target() core.Stage { return core.StageIndexed }

func (s *indexStage) Run(ctx context.Context, req *Request, state *core.PipelineState) error {
	// The request document stays untouched; the indexed copy carries the
	// classification and metadata accumulated by the run.
	doc := *req.Document
	doc.Type = state.DocType
	doc.IndexedAt = s.clock().UTC()
	if len(state.Metadata) > 0 {
		doc.Metadata = maps.Clone(state.Metadata)
	}

	if err := s.sink.UpsertDocument(ctx, &doc, state.Chunks); err != nil {
		return core.NewStageError(indexingStage, "", err)
	}
	return nil
}
