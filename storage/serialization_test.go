package storage

import (
	"testing"
	"time"

	"github.com/quarrylabs/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentSerialization_RoundTrip(t *testing.T) {
	doc := &core.Document{
		Fingerprint:  core.FingerprintBytes([]byte("doc content")),
		Source:       "/data/specs/standard.pdf",
		Type:         core.DocTypeNormativeStandard,
		Size:         4096,
		DiscoveredAt: time.Now().UTC().Truncate(time.Microsecond),
		IndexedAt:    time.Now().UTC().Truncate(time.Microsecond),
		Metadata:     map[string]string{"title": "Test Standard", "revision": "2"},
	}

	data := MarshalDocument(doc)
	got, err := UnmarshalDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestChunkSerialization_RoundTrip(t *testing.T) {
	chunk := &core.Chunk{
		DocFingerprint: 99,
		Seq:            3,
		Text:           "chunk body with overlap",
		Start:          120,
		End:            143,
		OverlapPrefix:  8,
		Vector:         []float32{0.1, -0.5, 0.9},
	}

	data := MarshalChunk(chunk)
	got, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.Equal(t, chunk, got)
}

func TestChunkSerialization_NilVector(t *testing.T) {
	chunk := &core.Chunk{
		DocFingerprint: 7,
		Text:           "lexical-only entry",
		Start:          0,
		End:            18,
	}

	data := MarshalChunk(chunk)
	got, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.Empty(t, got.Vector, "degraded-mode chunks carry no vector")
	assert.Equal(t, chunk.Text, got.Text)
}
