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


// Package badger implements the storage contracts on an embedded
// BadgerDB instance. Vector search is a brute-force cosine scan over all
// stored chunks, which holds up well into the tens of thousands of
// chunks an embedded deployment carries.
package badger

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dgraph-io/badger/v4"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
)

// Sink implements storage.KnowledgeSink, storage.DocumentStore and
// storage.LexicalSearcher on a Backend.
type Sink struct {
	backend *Backend
	logger  *slog.Logger
}

var (
	_ storage.KnowledgeSink   = (*Sink)(nil)
	_ storage.DocumentStore   = (*Sink)(nil)
	_ storage.LexicalSearcher = (*Sink)(nil)
)

// NewSink creates a knowledge sink on the given backend.
func NewSink(backend *Backend) (*Sink, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &Sink{
		backend: backend,
		logger:  slog.Default().With("component", "badger-sink"),
	}, nil
}

// Close releases the sink. The backend is owned by the caller and stays
// open.
func (s *Sink) Close() error {
	return nil
}

// UpsertDocument stores the document and its chunks. An existing
// fingerprint has all of its prior chunks and index entries removed in
// the same transaction, so the replacement is atomic to readers.
func (s *Sink) UpsertDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		// Remove the old generation, if any.
		if err := s.deleteDocumentTx(tx, doc.Fingerprint); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		if err := tx.Set(makeDocumentKey(doc.Fingerprint), storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := tx.Set(makeTypeIndexKey(doc.Type, doc.Fingerprint), []byte{}); err != nil {
			return err
		}
		for _, chunk := range chunks {
			if err := tx.Set(makeChunkKey(doc.Fingerprint, chunk.Seq), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteDocument removes the document and all its chunks.
func (s *Sink) DeleteDocument(ctx context.Context, fp core.Fingerprint) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := s.deleteDocumentTx(tx, fp); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// deleteDocumentTx removes one document generation inside tx.
func (s *Sink) deleteDocumentTx(tx *badger.Txn, fp core.Fingerprint) error {
	item, err := tx.Get(makeDocumentKey(fp))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}

	var doc *core.Document
	if err := item.Value(func(val []byte) error {
		doc, err = storage.UnmarshalDocument(val)
		return err
	}); err != nil {
		return err
	}

	// Collect chunk keys first; badger disallows deleting under an open
	// iterator.
	var chunkKeys [][]byte
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeChunkScanPrefix(fp)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		chunkKeys = append(chunkKeys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range chunkKeys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	if err := tx.Delete(makeTypeIndexKey(doc.Type, fp)); err != nil {
		return err
	}
	return tx.Delete(makeDocumentKey(fp))
}

// GetDocument retrieves a document by fingerprint.
func (s *Sink) GetDocument(ctx context.Context, fp core.Fingerprint) (*core.Document, error) {
	var doc *core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocumentKey(fp))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			doc, err = storage.UnmarshalDocument(val)
			return err
		})
	}, false)
	return doc, err
}

// ListDocuments returns all stored documents.
func (s *Sink) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var docs []*core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := iter.Item().Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	}, false)
	return docs, err
}

// GetChunks returns a document's chunks ordered by sequence index.
func (s *Sink) GetChunks(ctx context.Context, fp core.Fingerprint) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkScanPrefix(fp)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// BigEndian sequence keys make iteration order the chunk order.
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := iter.Item().Value(func(val []byte) error {
				chunk, err := storage.UnmarshalChunk(val)
				if err != nil {
					return err
				}
				chunks = append(chunks, chunk)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	}, false)
	return chunks, err
}

// Search scans all chunks and ranks them by cosine similarity to the
// query vector. One hit is reported per document: its best chunk.
func (s *Sink) Search(ctx context.Context, query []float32, filter storage.SearchFilter) ([]*storage.SearchHit, error) {
	return s.scoreChunks(ctx, filter, func(chunk *core.Chunk) (float32, bool) {
		if len(chunk.Vector) == 0 {
			return 0, false
		}
		return cosineSimilarity(query, chunk.Vector), true
	})
}

// SearchText ranks chunks by the fraction of query terms they contain.
func (s *Sink) SearchText(ctx context.Context, query string, filter storage.SearchFilter) ([]*storage.SearchHit, error) {
	terms := lexicalTerms(query)
	if len(terms) == 0 {
		return []*storage.SearchHit{}, nil
	}
	return s.scoreChunks(ctx, filter, func(chunk *core.Chunk) (float32, bool) {
		return lexicalScore(terms, chunk.Text), true
	})
}

// scoreChunks runs one scoring function over every chunk of every
// document passing the type filter, keeps the best chunk per document
// and returns hits sorted by score, ties broken by the most recent
// document timestamp.
func (s *Sink) scoreChunks(ctx context.Context, filter storage.SearchFilter, score func(*core.Chunk) (float32, bool)) ([]*storage.SearchHit, error) {
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	best := make(map[core.Fingerprint]*storage.SearchHit)
	for _, doc := range docs {
		if !filter.Matches(doc.Type) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunks, err := s.GetChunks(ctx, doc.Fingerprint)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			sc, ok := score(chunk)
			if !ok || sc < filter.MinScore {
				continue
			}
			if prev, exists := best[doc.Fingerprint]; !exists || sc > prev.Score {
				best[doc.Fingerprint] = &storage.SearchHit{Document: doc, Chunk: chunk, Score: sc}
			}
		}
	}

	hits := make([]*storage.SearchHit, 0, len(best))
	for _, hit := range best {
		hits = append(hits, hit)
	}
	sortHits(hits)

	if filter.K > 0 && len(hits) > filter.K {
		hits = hits[:filter.K]
	}
	return hits, nil
}

// sortHits orders by descending score; ties by most recent document
// timestamp, then fingerprint for determinism.
func sortHits(hits []*storage.SearchHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		ti, tj := docTimestamp(hits[i].Document), docTimestamp(hits[j].Document)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].Document.Fingerprint < hits[j].Document.Fingerprint
	})
}

func docTimestamp(doc *core.Document) time.Time {
	if !doc.IndexedAt.IsZero() {
		return doc.IndexedAt
	}
	return doc.DiscoveredAt
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// lexicalTerms lowercases and tokenizes a query into distinct terms.
func lexicalTerms(query string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		terms[tok] = struct{}{}
	}
	return terms
}

// lexicalScore is the fraction of query terms present in the text.
func lexicalScore(terms map[string]struct{}, text string) float32 {
	if len(terms) == 0 {
		return 0
	}
	present := lexicalTerms(text)
	var matched int
	for term := range terms {
		if _, ok := present[term]; ok {
			matched++
		}
	}
	return float32(matched) / float32(len(terms))
}
