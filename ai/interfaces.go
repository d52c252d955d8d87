package ai

import (
	"context"

	"github.com/quarrylabs/quarry/core"
)

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in
	// a batch. The returned slice contains embeddings in the same order as
	// the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TextDecoder extracts text from raw document bytes. Decoders form the
// pipeline's fallback chain for text extraction: primary format decoder,
// then OCR, then heuristic extraction. Implementations must be
// thread-safe for concurrent use.
type TextDecoder interface {
	// Name identifies the decoder in pipeline state and logs.
	Name() string

	// DecodeText extracts text from the document bytes. A recoverable
	// error (for example no embedded text layer) hands the document to
	// the next decoder in the chain.
	DecodeText(ctx context.Context, source string, data []byte) (string, error)
}

// MetadataAssistant is an optional language-model-backed extractor for
// type-specific structured metadata. When unavailable or failing, the
// pipeline degrades to rule-based extraction rather than failing the
// document.
type MetadataAssistant interface {
	// ExtractMetadata returns structured metadata for text classified as
	// the given document type.
	ExtractMetadata(ctx context.Context, docType core.DocumentType, text string) (map[string]string, error)
}

// Provider aggregates the pipeline's capabilities for convenient
// initialization and lifecycle management.
//
// Any accessor may return nil to report that the capability was
// unavailable at startup; consumers then operate in permanent degraded
// mode for that capability and must not treat the absence as an error.
type Provider interface {
	// Embedder returns the text embedding capability, or nil.
	Embedder() Embedder

	// PrimaryDecoder returns the native format decoder, or nil.
	PrimaryDecoder() TextDecoder

	// OCRDecoder returns the OCR-based decoder, or nil.
	OCRDecoder() TextDecoder

	// MetadataAssistant returns the LLM-backed metadata extractor, or nil.
	MetadataAssistant() MetadataAssistant

	// Close releases resources held by the provider and its services.
	Close() error
}
