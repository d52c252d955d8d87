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


package reindex

import (
	"context"

	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
)

// DocumentIterator walks every stored document with its chunks.
type DocumentIterator struct {
	store storage.DocumentStore
}

// NewDocumentIterator creates an iterator over the store.
func NewDocumentIterator(store storage.DocumentStore) *DocumentIterator {
	return &DocumentIterator{store: store}
}

// ForEach calls fn for every document with its chunks in sequence order.
// Iteration stops on the first error from fn. Context cancellation is
// checked between documents.
func (it *DocumentIterator) ForEach(ctx context.Context, fn func(doc *core.Document, chunks []*core.Chunk) error) error {
	docs, err := it.store.ListDocuments(ctx)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunks, err := it.store.GetChunks(ctx, doc.Fingerprint)
		if err != nil {
			return err
		}
		if err := fn(doc, chunks); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored documents.
func (it *DocumentIterator) Count(ctx context.Context) (int, error) {
	docs, err := it.store.ListDocuments(ctx)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
