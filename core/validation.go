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


package core

import (
	"fmt"
	"time"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Fingerprint must be non-zero
//   - Source must not be empty
//   - DiscoveredAt must not be in the future
//
// NOT validated (populated by the pipeline):
//   - Type (DocTypeUnknown is valid until classification)
//   - IndexedAt (zero until the index stage runs)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Fingerprint == 0 {
		return fmt.Errorf("%w: fingerprint is zero", ErrInvalidDocument)
	}

	if doc.Source == "" {
		return fmt.Errorf("%w: source is empty", ErrInvalidDocument)
	}

	if !IsValidTimestamp(doc.DiscoveredAt) {
		return fmt.Errorf("%w: discovery timestamp is in the future", ErrInvalidDocument)
	}

	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - DocFingerprint must be non-zero
//   - Seq must be non-negative
//   - Text must not be empty
//   - span must satisfy Start <= End and len(Text) == End-Start
//   - OverlapPrefix must fit inside the text
//
// NOT validated (populated by the embed stage):
//   - Vector (nil is valid in degraded lexical mode)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.DocFingerprint == 0 {
		return fmt.Errorf("%w: document fingerprint is zero", ErrInvalidChunk)
	}

	if chunk.Seq < 0 {
		return fmt.Errorf("%w: negative sequence index %d", ErrInvalidChunk, chunk.Seq)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: text is empty", ErrInvalidChunk)
	}

	if chunk.Start < 0 || chunk.End < chunk.Start {
		return fmt.Errorf("%w: bad span [%d,%d)", ErrInvalidChunk, chunk.Start, chunk.End)
	}

	if len(chunk.Text) != chunk.End-chunk.Start {
		return fmt.Errorf("%w: text length %d does not match span [%d,%d)",
			ErrInvalidChunk, len(chunk.Text), chunk.Start, chunk.End)
	}

	if chunk.OverlapPrefix < 0 || chunk.OverlapPrefix > len(chunk.Text) {
		return fmt.Errorf("%w: overlap prefix %d out of range", ErrInvalidChunk, chunk.OverlapPrefix)
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
