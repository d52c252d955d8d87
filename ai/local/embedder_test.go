package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbedder_Deterministic(t *testing.T) {
	e, err := NewEmbedder(0)
	require.NoError(t, err)

	a, err := e.EmbedText(context.Background(), "reinforced concrete slab")
	require.NoError(t, err)
	b, err := e.EmbedText(context.Background(), "reinforced concrete slab")
	require.NoError(t, err)

	assert.Equal(t, a, b, "same text must embed identically")
	assert.Len(t, a, 384)
}

func TestEmbedder_Normalized(t *testing.T) {
	e, err := NewEmbedder(128)
	require.NoError(t, err)

	vec, err := e.EmbedText(context.Background(), "steel beam dimensions and load tables")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4, "vector must be unit length")
}

func TestEmbedder_SimilarTextsCloser(t *testing.T) {
	e, err := NewEmbedder(0)
	require.NoError(t, err)

	ctx := context.Background()
	base, err := e.EmbedText(ctx, "concrete curing schedule for winter works")
	require.NoError(t, err)
	near, err := e.EmbedText(ctx, "concrete curing schedules for winter work")
	require.NoError(t, err)
	far, err := e.EmbedText(ctx, "quarterly marketing budget review meeting")
	require.NoError(t, err)

	assert.Greater(t, cosine(base, near), cosine(base, far),
		"morphologically similar text must score higher")
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	e, err := NewEmbedder(64)
	require.NoError(t, err)

	vecs, err := e.EmbedTexts(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 64)
	}
}

func TestNewEmbedder_InvalidDimension(t *testing.T) {
	_, err := NewEmbedder(-1)
	assert.ErrorIs(t, err, ErrInvalidDimension)
}
