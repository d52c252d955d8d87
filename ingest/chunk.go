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


package ingest

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/quarrylabs/quarry/core"
)

const chunkingStage = "chunking"

const (
	// DefaultChunkSize is the maximum chunk span in bytes before overlap.
	DefaultChunkSize = 1200
	// DefaultChunkOverlap is the window shared with the previous chunk.
	DefaultChunkOverlap = 120
)

// Chunker splits normalized text into retrievable chunks. Cut points
// prefer section breaks, then sentence ends, then line breaks inside the
// configured window; a hard cut at the byte limit is the documented
// fallback when no boundary is detectable. All cuts land on rune
// boundaries.
//
// Splitting is deterministic: re-chunking unchanged text yields byte
// identical spans, which keeps re-ingestion idempotent.
type Chunker struct {
	maxSize int
	overlap int
}

// NewChunker creates a chunker. maxSize bounds the chunk span before the
// overlap prefix is added; overlap must be smaller than half of it.
func NewChunker(maxSize, overlap int) (*Chunker, error) {
	if maxSize < 16 {
		return nil, fmt.Errorf("chunk size %d too small", maxSize)
	}
	if overlap < 0 || overlap >= maxSize/2 {
		return nil, fmt.Errorf("overlap %d must be in [0, %d)", overlap, maxSize/2)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Split cuts text into chunks for the document fingerprint. The spans
// index into text; concatenating each chunk's Text with its
// OverlapPrefix removed reproduces text exactly.
func (c *Chunker) Split(fp core.Fingerprint, text string) []*core.Chunk {
	if text == "" {
		return nil
	}

	cuts := c.cutPoints(text)
	chunks := make([]*core.Chunk, 0, len(cuts)-1)
	for i := 0; i+1 < len(cuts); i++ {
		spanStart, spanEnd := cuts[i], cuts[i+1]

		start := spanStart - c.overlap
		if start < 0 {
			start = 0
		}
		for start < spanStart && !utf8.RuneStart(text[start]) {
			start++
		}

		chunks = append(chunks, &core.Chunk{
			DocFingerprint: fp,
			Seq:            i,
			Text:           text[start:spanEnd],
			Start:          start,
			End:            spanEnd,
			OverlapPrefix:  spanStart - start,
		})
	}
	return chunks
}

// cutPoints returns the ascending span boundaries 0 = c0 < c1 < ... <
// cn = len(text).
func (c *Chunker) cutPoints(text string) []int {
	cuts := []int{0}
	pos := 0
	for len(text)-pos > c.maxSize {
		cut := c.nextCut(text, pos)
		cuts = append(cuts, cut)
		pos = cut
	}
	cuts = append(cuts, len(text))
	return cuts
}

// nextCut picks the boundary for the span starting at pos. Boundaries in
// the first half of the window are ignored so chunks stay substantial.
func (c *Chunker) nextCut(text string, pos int) int {
	window := text[pos : pos+c.maxSize]
	minIdx := c.maxSize / 2

	if idx := strings.LastIndex(window, "\n\n"); idx >= 0 && idx+2 > minIdx {
		return pos + idx + 2
	}
	if idx := lastSentenceEnd(window); idx > minIdx {
		return pos + idx
	}
	if idx := strings.LastIndexByte(window, '\n'); idx >= 0 && idx+1 > minIdx {
		return pos + idx + 1
	}

	// Hard cut by byte count, backed up to a rune boundary.
	cut := pos + c.maxSize
	for cut > pos+1 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}

// lastSentenceEnd returns the offset just past the last sentence
// terminator followed by whitespace, or -1.
func lastSentenceEnd(window string) int {
	for i := len(window) - 2; i >= 0; i-- {
		ch := window[i]
		if ch != '.' && ch != '!' && ch != '?' {
			continue
		}
		next := window[i+1]
		if next == ' ' || next == '\n' || next == '\t' {
			return i + 2
		}
	}
	return -1
}

// chunkStage splits the normalized text using the pipeline's chunker.
type chunkStage struct {
	chunker *Chunker
}

func newChunkStage(chunker *Chunker) *chunkStage {
	return &chunkStage{chunker: chunker}
}

func (s *chunkStage) Name() string       { return chunkingStage }
func (s *chunkStage) Target() core.Stage { return core.StageChunked }

func (s *chunkStage) Run(_ context.Context, req *Request, state *core.PipelineState) error {
	chunks := s.chunker.Split(req.Document.Fingerprint, state.Text)
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return core.NewUnrecoverableStageError(chunkingStage, "", err)
		}
	}
	state.Chunks = chunks
	return nil
}
