package storage

import (
	"context"

	"github.com/quarrylabs/quarry/core"
)

// SearchFilter narrows and bounds a sink search.
type SearchFilter struct {
	// Types restricts results to the given document types. Empty means
	// all types.
	Types []core.DocumentType

	// K is the maximum number of results to return.
	K int

	// MinScore excludes results scoring below it. Results are never
	// zero-padded to reach K.
	MinScore float32
}

// Matches reports whether a document type passes the filter.
func (f SearchFilter) Matches(t core.DocumentType) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, ft := range f.Types {
		if ft == t {
			return true
		}
	}
	return false
}

// SearchHit is one ranked search result: the matched chunk together with
// its parent document.
type SearchHit struct {
	Document *core.Document
	Chunk    *core.Chunk
	Score    float32
}

// KnowledgeSink is the storage contract used by the pipeline's index
// stage and by query execution. Implementations must be thread-safe.
type KnowledgeSink interface {
	// UpsertDocument stores the document and its chunks keyed by the
	// document fingerprint. An upsert with an existing fingerprint
	// replaces all prior chunks of that document atomically from the
	// caller's perspective.
	UpsertDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error

	// Search returns up to filter.K results ranked by descending
	// similarity to the query vector. Ties are broken by the most recent
	// document timestamp. Results below filter.MinScore are excluded.
	Search(ctx context.Context, query []float32, filter SearchFilter) ([]*SearchHit, error)

	// DeleteDocument removes the document and all its chunks. Backends
	// that can detect an unknown fingerprint cheaply return ErrNotFound
	// for it; others treat the delete as a no-op.
	DeleteDocument(ctx context.Context, fp core.Fingerprint) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentStore provides enumeration over stored documents and chunks.
// The reindexer requires it; backends that cannot enumerate may omit it.
type DocumentStore interface {
	// GetDocument retrieves a document by fingerprint.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, fp core.Fingerprint) (*core.Document, error)

	// ListDocuments returns all stored documents.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// GetChunks returns a document's chunks ordered by sequence index.
	GetChunks(ctx context.Context, fp core.Fingerprint) ([]*core.Chunk, error)
}

// LexicalSearcher is the text-only search used in degraded mode when no
// embedding capability is available.
type LexicalSearcher interface {
	// SearchText ranks chunks by lexical overlap with the query terms,
	// applying the same filter semantics as KnowledgeSink.Search.
	SearchText(ctx context.Context, query string, filter SearchFilter) ([]*SearchHit, error)
}
