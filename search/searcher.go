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


package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/process"
	"github.com/quarrylabs/quarry/storage"
)

// verbatimBoost is added to a hit's score when the chunk contains every
// query term. It lifts exact matches above merely similar ones without
// drowning the similarity signal.
const verbatimBoost = 0.3

// Searcher executes queries over the knowledge sink. With an embedder it
// runs vector search; without one it degrades to lexical search when the
// sink supports it.
type Searcher struct {
	sink     storage.KnowledgeSink
	lexical  storage.LexicalSearcher
	embedder ai.Embedder
	tracker  *process.Tracker
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithTracker makes queries run as tracked processes.
func WithTracker(tracker *process.Tracker) Option {
	return func(s *Searcher) error {
		s.tracker = tracker
		return nil
	}
}

// WithLexicalFallback sets an explicit lexical searcher. By default the
// sink itself is used when it implements storage.LexicalSearcher.
func WithLexicalFallback(lexical storage.LexicalSearcher) Option {
	return func(s *Searcher) error {
		s.lexical = lexical
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(sink storage.KnowledgeSink, provider ai.Provider, opts ...Option) (*Searcher, error) {
	if sink == nil {
		return nil, ErrSinkRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	s := &Searcher{
		sink:     sink,
		embedder: provider.Embedder(),
		logger:   slog.Default().With("component", "searcher"),
	}
	if lexical, ok := sink.(storage.LexicalSearcher); ok {
		s.lexical = lexical
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Search runs the query and returns ranked hits.
func (s *Searcher) Search(ctx context.Context, query string, filter storage.SearchFilter) ([]*storage.SearchHit, error) {
	return s.SearchWithMonitor(ctx, query, filter, nil)
}

// SearchWithMonitor runs the query with monitoring. The monitor receives
// callbacks at each step of query execution.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, filter storage.SearchFilter, monitor Monitor) ([]*storage.SearchHit, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	monitor.Start(query)

	procID, err := s.startProcess(query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	hits, mode, err := s.execute(ctx, query, filter, monitor)
	if err != nil {
		s.failProcess(procID, err)
		return nil, err
	}

	s.boostVerbatim(hits, query, monitor)
	monitor.Finish(hits)
	s.completeProcess(procID, mode, len(hits))

	s.logger.Debug("query finished",
		"mode", mode, "hits", len(hits), "elapsed", time.Since(start))
	return hits, nil
}

// execute picks the search mode. A failing embedder degrades to lexical
// search instead of failing the query, as long as the sink supports it.
func (s *Searcher) execute(ctx context.Context, query string, filter storage.SearchFilter, monitor Monitor) ([]*storage.SearchHit, string, error) {
	if s.embedder == nil {
		monitor.LexicalFallback("no embedding capability")
		hits, err := s.searchLexical(ctx, query, filter, monitor)
		return hits, "lexical", err
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", err
		}
		if s.lexical == nil {
			return nil, "", fmt.Errorf("embedding query: %w", err)
		}
		s.logger.Warn("query embedding failed, using lexical search", "error", err)
		monitor.LexicalFallback("embedding failed")
		hits, err := s.searchLexical(ctx, query, filter, monitor)
		return hits, "lexical", err
	}
	monitor.AfterEmbedding(len(vector))

	hits, err := s.sink.Search(ctx, vector, filter)
	if err != nil {
		return nil, "", fmt.Errorf("vector search: %w", err)
	}
	monitor.AfterSinkSearch(hits)
	return hits, "vector", nil
}

func (s *Searcher) searchLexical(ctx context.Context, query string, filter storage.SearchFilter, monitor Monitor) ([]*storage.SearchHit, error) {
	if s.lexical == nil {
		return nil, fmt.Errorf("lexical search: %w", core.ErrCapabilityUnavailable)
	}
	hits, err := s.lexical.SearchText(ctx, query, filter)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	monitor.AfterSinkSearch(hits)
	return hits, nil
}

// boostVerbatim lifts hits whose chunk contains every query term, then
// restores the ranking order.
func (s *Searcher) boostVerbatim(hits []*storage.SearchHit, query string, monitor Monitor) {
	boosted := false
	for _, hit := range hits {
		if chunkContainsQuery(hit.Chunk.Text, query) {
			hit.Score += verbatimBoost
			boosted = true
			monitor.VerbatimBoost(hit)
		}
	}
	if !boosted {
		return
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Document.IndexedAt.After(hits[j].Document.IndexedAt)
	})
}

// startProcess registers the query as a tracked process when a tracker
// is configured. It returns an empty id otherwise.
func (s *Searcher) startProcess(query string) (string, error) {
	if s.tracker == nil {
		return "", nil
	}
	proc, err := s.tracker.Start(process.StartRequest{
		Type:     core.ProcessQuery,
		Name:     truncateQuery(query, 80),
		Metadata: map[string]string{"query": query},
	})
	if err != nil {
		return "", err
	}
	if _, err := s.tracker.Update(proc.ID, process.WithStatus(core.StatusRunning)); err != nil {
		return "", err
	}
	return proc.ID, nil
}

func (s *Searcher) completeProcess(procID, mode string, results int) {
	if s.tracker == nil || procID == "" {
		return
	}
	_, _ = s.tracker.Update(procID,
		process.WithStatus(core.StatusCompleted),
		process.WithProgress(100),
		process.WithMeta("mode", mode),
		process.WithMeta("results", strconv.Itoa(results)))
}

func (s *Searcher) failProcess(procID string, cause error) {
	if s.tracker == nil || procID == "" {
		return
	}
	_, _ = s.tracker.Update(procID,
		process.WithStatus(core.StatusFailed),
		process.WithMessage(cause.Error()))
}

func truncateQuery(query string, max int) string {
	if len(query) <= max {
		return query
	}
	cut := max
	for cut > 0 && query[cut]&0xc0 == 0x80 {
		cut--
	}
	return query[:cut] + "..."
}

// noiseTerms carry no signal for verbatim matching in technical prose.
var noiseTerms = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "be": {}, "is": {}, "are": {},
	"was": {}, "to": {}, "of": {}, "and": {}, "in": {}, "that": {},
	"have": {}, "it": {}, "for": {}, "not": {}, "on": {}, "with": {},
	"as": {}, "you": {}, "do": {}, "at": {}, "this": {}, "but": {},
	"by": {}, "from": {},
}

// significantTerms lowercases the text and returns its terms with
// surrounding punctuation and noise terms removed.
func significantTerms(text string) []string {
	var terms []string
	for _, field := range strings.Fields(strings.ToLower(text)) {
		term := strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if term == "" {
			continue
		}
		if _, noise := noiseTerms[term]; noise {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

// chunkContainsQuery reports whether the chunk text contains every
// significant term of the query. A query of nothing but noise matches
// no chunk.
func chunkContainsQuery(chunkText, query string) bool {
	wanted := significantTerms(query)
	if len(wanted) == 0 {
		return false
	}

	present := make(map[string]struct{})
	for _, term := range significantTerms(chunkText) {
		present[term] = struct{}{}
	}
	for _, term := range wanted {
		if _, ok := present[term]; !ok {
			return false
		}
	}
	return true
}
