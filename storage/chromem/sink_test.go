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


package chromem

import (
	"context"
	"testing"
	"time"

	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := NewSink("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func testDocument(source string, docType core.DocumentType, indexedAt time.Time, vectors ...[]float32) (*core.Document, []*core.Chunk) {
	text := "content of " + source
	doc := &core.Document{
		Fingerprint: core.FingerprintBytes([]byte(source)),
		Source:      source,
		Type:        docType,
		IndexedAt:   indexedAt,
	}
	chunks := make([]*core.Chunk, len(vectors))
	for i, vec := range vectors {
		chunks[i] = &core.Chunk{
			DocFingerprint: doc.Fingerprint,
			Seq:            i,
			Text:           text,
			Start:          0,
			End:            len(text),
			Vector:         vec,
		}
	}
	return doc, chunks
}

func TestSinkSearchRanksBySimilarity(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()
	now := time.Now()

	near, nearChunks := testDocument("near.txt", core.DocTypeGeneric, now, []float32{1, 0, 0})
	far, farChunks := testDocument("far.txt", core.DocTypeGeneric, now, []float32{0, 1, 0})

	require.NoError(t, sink.UpsertDocument(ctx, near, nearChunks))
	require.NoError(t, sink.UpsertDocument(ctx, far, farChunks))

	hits, err := sink.Search(ctx, []float32{1, 0, 0}, storage.SearchFilter{K: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, near.Fingerprint, hits[0].Document.Fingerprint)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSinkSearchOneHitPerDocument(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	doc, chunks := testDocument("multi.txt", core.DocTypeGeneric, time.Now(),
		[]float32{1, 0, 0}, []float32{0.9, 0.1, 0})
	require.NoError(t, sink.UpsertDocument(ctx, doc, chunks))

	hits, err := sink.Search(ctx, []float32{1, 0, 0}, storage.SearchFilter{K: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].Chunk.Seq)
}

func TestSinkSearchTypeFilter(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()
	now := time.Now()

	plan, planChunks := testDocument("plan.txt", core.DocTypeProductionPlan, now, []float32{1, 0, 0})
	cost, costChunks := testDocument("cost.txt", core.DocTypeCostEstimate, now, []float32{1, 0, 0})
	require.NoError(t, sink.UpsertDocument(ctx, plan, planChunks))
	require.NoError(t, sink.UpsertDocument(ctx, cost, costChunks))

	hits, err := sink.Search(ctx, []float32{1, 0, 0}, storage.SearchFilter{
		K:     10,
		Types: []core.DocumentType{core.DocTypeProductionPlan},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, plan.Fingerprint, hits[0].Document.Fingerprint)
}

func TestSinkSearchMinScoreExcludes(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	doc, chunks := testDocument("ortho.txt", core.DocTypeGeneric, time.Now(), []float32{0, 1, 0})
	require.NoError(t, sink.UpsertDocument(ctx, doc, chunks))

	hits, err := sink.Search(ctx, []float32{1, 0, 0}, storage.SearchFilter{K: 10, MinScore: 0.5})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSinkSearchEmptyCollection(t *testing.T) {
	sink := newTestSink(t)

	hits, err := sink.Search(context.Background(), []float32{1, 0, 0}, storage.SearchFilter{K: 5})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSinkUpsertReplacesGeneration(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()
	now := time.Now()

	doc, chunks := testDocument("doc.txt", core.DocTypeGeneric, now,
		[]float32{1, 0, 0}, []float32{0, 1, 0}, []float32{0, 0, 1})
	require.NoError(t, sink.UpsertDocument(ctx, doc, chunks))

	// Re-ingest with a single chunk; the old chunk set must be gone.
	doc2, chunks2 := testDocument("doc.txt", core.DocTypeGeneric, now.Add(time.Minute), []float32{0, 1, 0})
	require.NoError(t, sink.UpsertDocument(ctx, doc2, chunks2))

	hits, err := sink.Search(ctx, []float32{0, 0, 1}, storage.SearchFilter{K: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].Chunk.Seq)
}

func TestSinkDeleteDocument(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	doc, chunks := testDocument("gone.txt", core.DocTypeGeneric, time.Now(), []float32{1, 0, 0})
	require.NoError(t, sink.UpsertDocument(ctx, doc, chunks))
	require.NoError(t, sink.DeleteDocument(ctx, doc.Fingerprint))

	hits, err := sink.Search(ctx, []float32{1, 0, 0}, storage.SearchFilter{K: 5})
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Deleting again is a no-op.
	assert.NoError(t, sink.DeleteDocument(ctx, doc.Fingerprint))
}

func TestSinkUpsertRejectsVectorlessChunk(t *testing.T) {
	sink := newTestSink(t)

	doc, chunks := testDocument("novec.txt", core.DocTypeGeneric, time.Now(), nil)
	err := sink.UpsertDocument(context.Background(), doc, chunks)
	assert.ErrorIs(t, err, core.ErrCapabilityUnavailable)
}
