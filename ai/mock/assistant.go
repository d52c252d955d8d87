package mock

import (
	"context"
	"sync"

	"github.com/quarrylabs/quarry/core"
)

// Assistant is a test double for ai.MetadataAssistant.
type Assistant struct {
	// ExtractMetadataFunc is called by ExtractMetadata if set.
	ExtractMetadataFunc func(ctx context.Context, docType core.DocumentType, text string) (map[string]string, error)

	mu        sync.Mutex
	callCount int
}

// NewAssistant creates a mock assistant that returns empty metadata.
func NewAssistant() *Assistant {
	return &Assistant{}
}

// ExtractMetadata returns empty metadata unless a custom function is
// installed.
func (m *Assistant) ExtractMetadata(ctx context.Context, docType core.DocumentType, text string) (map[string]string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractMetadataFunc != nil {
		return m.ExtractMetadataFunc(ctx, docType, text)
	}
	return map[string]string{}, nil
}

// CallCount returns the number of ExtractMetadata invocations.
func (m *Assistant) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
