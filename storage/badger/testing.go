package badger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestSink creates an in-memory sink for tests. The backend is closed
// automatically when the test finishes.
func NewTestSink(t *testing.T) *Sink {
	t.Helper()

	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	sink, err := NewSink(backend)
	require.NoError(t, err)
	return sink
}
