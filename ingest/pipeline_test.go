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
	"strings"
	"testing"

	"github.com/quarrylabs/quarry/ai/mock"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/process"
	badgerstore "github.com/quarrylabs/quarry/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, provider *mock.Provider) (*Pipeline, *badgerstore.Sink) {
	t.Helper()
	sink := badgerstore.NewTestSink(t)
	pipeline, err := NewPipeline(provider, sink, nil, WithChunking(200, 20))
	require.NoError(t, err)
	return pipeline, sink
}

func estimateText() string {
	lines := []string{"Foundation cost estimate", ""}
	for range 12 {
		lines = append(lines,
			"Concrete C25, unit price $120.00, quantity 8, total cost $960.00.")
	}
	return strings.Join(lines, "\n")
}

func TestPipelineRunToIndexed(t *testing.T) {
	provider := mock.NewProvider()
	pipeline, sink := newTestPipeline(t, provider)
	req := testRequest([]byte(estimateText()))

	state, err := pipeline.Run(context.Background(), "", req)
	require.NoError(t, err)

	assert.Equal(t, core.StageIndexed, state.Stage)
	assert.Equal(t, core.DocTypeCostEstimate, state.DocType)
	require.NotEmpty(t, state.Chunks)
	for _, c := range state.Chunks {
		assert.NotEmpty(t, c.Vector)
	}

	doc, err := sink.GetDocument(context.Background(), req.Document.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, core.DocTypeCostEstimate, doc.Type)
	assert.False(t, doc.IndexedAt.IsZero())
	assert.NotEmpty(t, doc.Metadata["title"])

	chunks, err := sink.GetChunks(context.Background(), req.Document.Fingerprint)
	require.NoError(t, err)
	assert.Len(t, chunks, len(state.Chunks))
}

func TestPipelineRunIsIdempotent(t *testing.T) {
	provider := mock.NewProvider()
	pipeline, sink := newTestPipeline(t, provider)
	req := testRequest([]byte(estimateText()))

	first, err := pipeline.Run(context.Background(), "", req)
	require.NoError(t, err)
	second, err := pipeline.Run(context.Background(), "", req)
	require.NoError(t, err)

	require.Len(t, second.Chunks, len(first.Chunks))
	for i := range first.Chunks {
		assert.Equal(t, first.Chunks[i].Start, second.Chunks[i].Start)
		assert.Equal(t, first.Chunks[i].End, second.Chunks[i].End)
		assert.Equal(t, first.Chunks[i].Text, second.Chunks[i].Text)
	}

	// No duplicate chunks after re-ingestion of identical content.
	stored, err := sink.GetChunks(context.Background(), req.Document.Fingerprint)
	require.NoError(t, err)
	assert.Len(t, stored, len(first.Chunks))
}

func TestPipelineDegradedWithoutEmbedder(t *testing.T) {
	provider := mock.NewProvider()
	provider.Emb = nil
	pipeline, _ := newTestPipeline(t, provider)

	state, err := pipeline.Run(context.Background(), "", testRequest([]byte(estimateText())))
	require.NoError(t, err)

	assert.Equal(t, core.StageIndexed, state.Stage)
	assert.Contains(t, state.Degraded, "embedding")
	for _, c := range state.Chunks {
		assert.Nil(t, c.Vector)
	}
}

func TestPipelineRecordsDecoderFallback(t *testing.T) {
	provider := mock.NewProvider()
	provider.Primary.DecodeTextFunc = func(context.Context, string, []byte) (string, error) {
		return "", errors.New("unsupported container")
	}
	pipeline, _ := newTestPipeline(t, provider)

	state, err := pipeline.Run(context.Background(), "", testRequest([]byte(estimateText())))
	require.NoError(t, err)

	assert.Equal(t, core.StageIndexed, state.Stage)
	assert.Contains(t, state.FallbacksUsed, "ocr")
}

func TestPipelineEmptyDocumentFails(t *testing.T) {
	provider := mock.NewProvider()
	pipeline, _ := newTestPipeline(t, provider)

	state, err := pipeline.Run(context.Background(), "", testRequest([]byte("  \n\t ")))
	require.Error(t, err)

	assert.ErrorIs(t, err, core.ErrEmptyDocument)
	assert.False(t, core.IsRecoverable(err))
	assert.Equal(t, core.StageFailed, state.Stage)
}

func TestPipelineTrackerCancellationBetweenStages(t *testing.T) {
	tracker, err := process.NewTracker()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })

	provider := mock.NewProvider()
	sink := badgerstore.NewTestSink(t)
	pipeline, err := NewPipeline(provider, sink, tracker, WithChunking(200, 20))
	require.NoError(t, err)

	proc, err := tracker.Start(process.StartRequest{Type: core.ProcessDocumentJob})
	require.NoError(t, err)

	// Cancellation lands while a stage is running; the next checkpoint
	// has to observe it.
	provider.Primary.DecodeTextFunc = func(context.Context, string, []byte) (string, error) {
		require.NoError(t, tracker.Cancel(proc.ID))
		return estimateText(), nil
	}

	state, err := pipeline.Run(context.Background(), proc.ID, testRequest([]byte(estimateText())))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.StageCancelled, state.Stage)
	// Extraction finished before the cancellation checkpoint fired.
	assert.NotEmpty(t, state.Text)
	assert.Equal(t, core.DocTypeUnknown, state.DocType)

	got, err := tracker.Get(proc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, got.Status)
	assert.Equal(t, textExtractionStage, got.Metadata["stage"])
}

func TestPipelineContextCancellation(t *testing.T) {
	provider := mock.NewProvider()
	pipeline, _ := newTestPipeline(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := pipeline.Run(ctx, "", testRequest([]byte(estimateText())))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.StageCancelled, state.Stage)
}
