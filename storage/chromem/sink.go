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


// Package chromem implements storage.KnowledgeSink on the embedded
// chromem-go vector database. It is an alternative to the badger
// backend when vector search should be delegated to a purpose-built
// index. Chunks carry precomputed vectors, so this backend requires the
// embedding capability and does not serve degraded lexical mode.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
)

const collectionName = "quarry-chunks"

// Sink implements storage.KnowledgeSink on a chromem-go collection.
type Sink struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *slog.Logger
}

var _ storage.KnowledgeSink = (*Sink)(nil)

// NewSink opens (or creates) a persistent chromem database at path.
// An empty path selects an in-memory database.
func NewSink(path string) (*Sink, error) {
	var db *chromem.DB
	var err error

	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, err
		}
	}

	// Vectors are always precomputed by the embed stage; the collection
	// must never need to embed on its own.
	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("chromem sink requires precomputed embeddings")
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embeddingFunc)
	if err != nil {
		return nil, err
	}

	return &Sink{
		db:         db,
		collection: collection,
		logger:     slog.Default().With("component", "chromem-sink"),
	}, nil
}

// Close releases the sink. chromem persists on write, so there is
// nothing to flush.
func (s *Sink) Close() error {
	return nil
}

// UpsertDocument replaces all entries of the document's fingerprint with
// the new chunk set. chromem has no transactions; replacement is
// delete-old-then-insert-new keyed by fingerprint.
func (s *Sink) UpsertDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}

	fpKey := fingerprintKey(doc.Fingerprint)

	// Drop the prior generation, if any.
	if err := s.collection.Delete(ctx, map[string]string{"fingerprint": fpKey}, nil); err != nil {
		return fmt.Errorf("deleting prior generation: %w", err)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
		if len(chunk.Vector) == 0 {
			return fmt.Errorf("chunk %d of %s has no vector: %w",
				chunk.Seq, fpKey, core.ErrCapabilityUnavailable)
		}
		docs = append(docs, chromem.Document{
			ID:      entryID(doc.Fingerprint, chunk.Seq),
			Content: chunk.Text,
			Metadata: map[string]string{
				"fingerprint": fpKey,
				"seq":         strconv.Itoa(chunk.Seq),
				"type":        doc.Type.String(),
				"source":      doc.Source,
				"indexed_at":  strconv.FormatInt(doc.IndexedAt.UnixMicro(), 10),
			},
			Embedding: chunk.Vector,
		})
	}

	return s.collection.AddDocuments(ctx, docs, 1)
}

// DeleteDocument removes all entries of the fingerprint. Deleting an
// unknown fingerprint is a no-op; chromem cannot distinguish it cheaply.
func (s *Sink) DeleteDocument(ctx context.Context, fp core.Fingerprint) error {
	return s.collection.Delete(ctx, map[string]string{"fingerprint": fingerprintKey(fp)}, nil)
}

// Search queries the collection by embedding and returns the best chunk
// per document, ranked by descending similarity with ties broken by the
// most recent document timestamp.
func (s *Sink) Search(ctx context.Context, query []float32, filter storage.SearchFilter) ([]*storage.SearchHit, error) {
	count := s.collection.Count()
	if count == 0 {
		return []*storage.SearchHit{}, nil
	}

	// Fetch every chunk and filter in Go. The per-document dedupe and
	// the type filter both shrink the result set in ways a nearest-K
	// query cannot anticipate.
	results, err := s.collection.QueryEmbedding(ctx, query, count, nil, nil)
	if err != nil {
		return nil, err
	}

	best := make(map[string]*storage.SearchHit)
	for _, r := range results {
		docType := core.ParseDocumentType(r.Metadata["type"])
		if !filter.Matches(docType) {
			continue
		}
		if r.Similarity < filter.MinScore {
			continue
		}

		fpKey := r.Metadata["fingerprint"]
		hit, err := hitFromResult(r, docType)
		if err != nil {
			s.logger.Warn("skipping malformed entry", "id", r.ID, "err", err)
			continue
		}
		if prev, ok := best[fpKey]; !ok || hit.Score > prev.Score {
			best[fpKey] = hit
		}
	}

	hits := make([]*storage.SearchHit, 0, len(best))
	for _, hit := range best {
		hits = append(hits, hit)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Document.IndexedAt.After(hits[j].Document.IndexedAt)
	})

	if filter.K > 0 && len(hits) > filter.K {
		hits = hits[:filter.K]
	}
	return hits, nil
}

func hitFromResult(r chromem.Result, docType core.DocumentType) (*storage.SearchHit, error) {
	fp, err := strconv.ParseUint(r.Metadata["fingerprint"], 10, 64)
	if err != nil {
		return nil, err
	}
	seq, err := strconv.Atoi(r.Metadata["seq"])
	if err != nil {
		return nil, err
	}
	indexedMicro, err := strconv.ParseInt(r.Metadata["indexed_at"], 10, 64)
	if err != nil {
		return nil, err
	}

	doc := &core.Document{
		Fingerprint: core.Fingerprint(fp),
		Type:        docType,
		Source:      r.Metadata["source"],
		IndexedAt:   time.UnixMicro(indexedMicro),
	}
	chunk := &core.Chunk{
		DocFingerprint: core.Fingerprint(fp),
		Seq:            seq,
		Text:           r.Content,
	}
	return &storage.SearchHit{Document: doc, Chunk: chunk, Score: r.Similarity}, nil
}

func entryID(fp core.Fingerprint, seq int) string {
	return fingerprintKey(fp) + ":" + strconv.Itoa(seq)
}

func fingerprintKey(fp core.Fingerprint) string {
	return strconv.FormatUint(uint64(fp), 10)
}
