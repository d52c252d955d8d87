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

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/core"
)

const embeddingStage = "embedding"

// embedStage attaches a vector to every chunk. An unavailable embedder
// is the documented degraded mode: chunks stay text-only and the sink
// serves lexical search for them. Embedding errors are recoverable so
// the supervisor retries the document.
type embedStage struct {
	embedder ai.Embedder // nil when the capability is unavailable
}

func newEmbedStage(provider ai.Provider) *embedStage {
	return &embedStage{embedder: provider.Embedder()}
}

func (s *embedStage) Name() string       { return embeddingStage }
func (s *embedStage) Target() core.Stage { return core.StageEmbedded }

func (s *embedStage) Run(ctx context.Context, _ *Request, state *core.PipelineState) error {
	if s.embedder == nil {
		state.Degraded = append(state.Degraded, embeddingStage)
		return nil
	}
	if len(state.Chunks) == 0 {
		return nil
	}

	texts := make([]string, len(state.Chunks))
	for i, chunk := range state.Chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return core.NewStageError(embeddingStage, "", err)
	}
	if len(vectors) != len(state.Chunks) {
		return core.NewStageError(embeddingStage, "",
			fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(state.Chunks)))
	}

	for i, chunk := range state.Chunks {
		chunk.Vector = vectors[i]
	}
	return nil
}
