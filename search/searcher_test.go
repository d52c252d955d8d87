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


package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quarrylabs/quarry/ai/mock"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/process"
	"github.com/quarrylabs/quarry/storage"
	badgerstore "github.com/quarrylabs/quarry/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMonitor captures which hooks fired during a query.
type recordingMonitor struct {
	started        bool
	embedded       bool
	fallbackReason string
	sinkHits       int
	boosts         int
	finished       bool
}

func (m *recordingMonitor) Start(_ string)         { m.started = true }
func (m *recordingMonitor) AfterEmbedding(_ int)   { m.embedded = true }
func (m *recordingMonitor) LexicalFallback(reason string) {
	m.fallbackReason = reason
}
func (m *recordingMonitor) AfterSinkSearch(hits []*storage.SearchHit) { m.sinkHits = len(hits) }
func (m *recordingMonitor) VerbatimBoost(_ *storage.SearchHit)        { m.boosts++ }
func (m *recordingMonitor) Finish(_ []*storage.SearchHit)             { m.finished = true }

func indexTestDocument(t *testing.T, sink *badgerstore.Sink, emb *mock.Embedder, source, text string, indexedAt time.Time) *core.Document {
	t.Helper()

	data := []byte(text)
	doc := &core.Document{
		Fingerprint: core.FingerprintBytes(data),
		Source:      source,
		Type:        core.DocTypeGeneric,
		Size:        int64(len(data)),
		IndexedAt:   indexedAt,
	}

	chunk := &core.Chunk{
		DocFingerprint: doc.Fingerprint,
		Seq:            0,
		Text:           text,
		Start:          0,
		End:            len(text),
	}
	if emb != nil {
		vectors, err := emb.EmbedTexts(context.Background(), []string{text})
		require.NoError(t, err)
		chunk.Vector = vectors[0]
	}

	require.NoError(t, sink.UpsertDocument(context.Background(), doc, []*core.Chunk{chunk}))
	return doc
}

func TestSearcherVectorRanking(t *testing.T) {
	provider := mock.NewProvider()
	sink := badgerstore.NewTestSink(t)
	now := time.Now().UTC()

	want := indexTestDocument(t, sink, provider.Emb, "a.txt",
		"load bearing wall assembly torque", now)
	indexTestDocument(t, sink, provider.Emb, "b.txt",
		"completely unrelated catering invoice", now)

	searcher, err := NewSearcher(sink, provider)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	hits, err := searcher.SearchWithMonitor(context.Background(),
		"load bearing wall assembly torque", storage.SearchFilter{K: 5}, monitor)
	require.NoError(t, err)

	require.NotEmpty(t, hits)
	assert.Equal(t, want.Fingerprint, hits[0].Document.Fingerprint)
	assert.True(t, monitor.started)
	assert.True(t, monitor.embedded)
	assert.True(t, monitor.finished)
	assert.Empty(t, monitor.fallbackReason)
}

func TestSearcherLexicalWithoutEmbedder(t *testing.T) {
	provider := mock.NewProvider()
	provider.Emb = nil
	sink := badgerstore.NewTestSink(t)
	now := time.Now().UTC()

	want := indexTestDocument(t, sink, nil, "a.txt",
		"anchor bolt torque table", now)
	indexTestDocument(t, sink, nil, "b.txt",
		"site visit photos", now)

	searcher, err := NewSearcher(sink, provider)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	hits, err := searcher.SearchWithMonitor(context.Background(),
		"anchor bolt torque", storage.SearchFilter{K: 5}, monitor)
	require.NoError(t, err)

	require.NotEmpty(t, hits)
	assert.Equal(t, want.Fingerprint, hits[0].Document.Fingerprint)
	assert.Equal(t, "no embedding capability", monitor.fallbackReason)
	assert.False(t, monitor.embedded)
}

func TestSearcherEmbeddingFailureFallsBackToLexical(t *testing.T) {
	provider := mock.NewProvider()
	provider.Emb.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("model offline")
	}
	sink := badgerstore.NewTestSink(t)

	want := indexTestDocument(t, sink, nil, "a.txt",
		"anchor bolt torque table", time.Now().UTC())

	searcher, err := NewSearcher(sink, provider)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	hits, err := searcher.SearchWithMonitor(context.Background(),
		"anchor bolt torque", storage.SearchFilter{K: 5}, monitor)
	require.NoError(t, err)

	require.NotEmpty(t, hits)
	assert.Equal(t, want.Fingerprint, hits[0].Document.Fingerprint)
	assert.Equal(t, "embedding failed", monitor.fallbackReason)
}

func TestSearcherVerbatimBoostReorders(t *testing.T) {
	searcher := &Searcher{}
	now := time.Now().UTC()

	exact := &storage.SearchHit{
		Document: &core.Document{Source: "exact.txt", IndexedAt: now},
		Chunk:    &core.Chunk{Text: "anchor bolt torque values for steel frames"},
		Score:    0.70,
	}
	similar := &storage.SearchHit{
		Document: &core.Document{Source: "similar.txt", IndexedAt: now},
		Chunk:    &core.Chunk{Text: "fastener tension reference sheet"},
		Score:    0.80,
	}

	hits := []*storage.SearchHit{similar, exact}
	monitor := &recordingMonitor{}
	searcher.boostVerbatim(hits, "anchor bolt torque", monitor)

	assert.Equal(t, 1, monitor.boosts)
	assert.Same(t, exact, hits[0])
	assert.InDelta(t, 1.0, float64(exact.Score), 1e-6)
}

func TestSearcherEmptyQuery(t *testing.T) {
	searcher, err := NewSearcher(badgerstore.NewTestSink(t), mock.NewProvider())
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "   ", storage.SearchFilter{K: 5})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearcherTracksQueryProcess(t *testing.T) {
	tracker, err := process.NewTracker()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })

	provider := mock.NewProvider()
	sink := badgerstore.NewTestSink(t)
	indexTestDocument(t, sink, provider.Emb, "a.txt", "anchor bolt torque", time.Now().UTC())

	searcher, err := NewSearcher(sink, provider, WithTracker(tracker))
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "anchor bolt torque", storage.SearchFilter{K: 3})
	require.NoError(t, err)

	queries := tracker.List(process.ListFilter{Types: []core.ProcessType{core.ProcessQuery}})
	require.Len(t, queries, 1)
	assert.Equal(t, core.StatusCompleted, queries[0].Status)
	assert.Equal(t, "vector", queries[0].Metadata["mode"])
	assert.Equal(t, "anchor bolt torque", queries[0].Metadata["query"])
	assert.NotEmpty(t, queries[0].Metadata["results"])
}

func TestSignificantTerms(t *testing.T) {
	terms := significantTerms("The anchor, and the BOLT!")
	assert.Equal(t, []string{"anchor", "bolt"}, terms)
}

func TestChunkContainsQuery(t *testing.T) {
	chunk := "Torque the anchor bolt to the specified value."
	assert.True(t, chunkContainsQuery(chunk, "anchor bolt torque"))
	assert.False(t, chunkContainsQuery(chunk, "anchor bolt diameter"))
	assert.False(t, chunkContainsQuery(chunk, "the and of"))
}
