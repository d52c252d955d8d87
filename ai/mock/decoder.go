package mock

import (
	"context"
	"sync"
)

// Decoder is a test double for ai.TextDecoder. It allows scripted
// failures so pipeline fallback chains can be exercised; by default it
// returns the document bytes as text.
type Decoder struct {
	// DecoderName is returned by Name. Defaults to "mock".
	DecoderName string

	// DecodeTextFunc is called by DecodeText if set.
	DecodeTextFunc func(ctx context.Context, source string, data []byte) (string, error)

	mu        sync.Mutex
	callCount int
}

// NewDecoder creates a mock decoder with the given name.
func NewDecoder(name string) *Decoder {
	return &Decoder{DecoderName: name}
}

// Name identifies the decoder.
func (m *Decoder) Name() string {
	if m.DecoderName == "" {
		return "mock"
	}
	return m.DecoderName
}

// DecodeText returns the document bytes as text unless a custom function
// is installed.
func (m *Decoder) DecodeText(ctx context.Context, source string, data []byte) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.DecodeTextFunc != nil {
		return m.DecodeTextFunc(ctx, source, data)
	}
	return string(data), nil
}

// CallCount returns the number of DecodeText invocations.
func (m *Decoder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
