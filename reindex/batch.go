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

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
)

// DefaultBatchSize is the default number of chunks embedded per call.
const DefaultBatchSize = 64

// BatchProcessor re-embeds one document's chunks and writes the document
// back through the sink's upsert, replacing its prior generation.
type BatchProcessor struct {
	sink      storage.KnowledgeSink
	embedder  ai.Embedder
	batchSize int
}

// NewBatchProcessor creates a batch processor.
// batchSize: number of chunks to embed per embedder call (must be > 0)
func NewBatchProcessor(sink storage.KnowledgeSink, embedder ai.Embedder, batchSize int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchProcessor{
		sink:      sink,
		embedder:  embedder,
		batchSize: batchSize,
	}
}

// Process embeds every chunk of the document and upserts the document
// with the fresh vectors. Vectors are normalized for cosine similarity.
func (bp *BatchProcessor) Process(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for start := 0; start < len(chunks); start += bp.batchSize {
		end := min(start+bp.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		vectors, err := bp.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding %d chunks of %s: %w", len(batch), doc.Source, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedding count mismatch for %s: expected %d, got %d",
				doc.Source, len(batch), len(vectors))
		}

		for i, chunk := range batch {
			chunk.Vector = NormalizeVector(vectors[i])
		}
	}

	if err := bp.sink.UpsertDocument(ctx, doc, chunks); err != nil {
		return fmt.Errorf("upserting %s: %w", doc.Source, err)
	}
	return nil
}
