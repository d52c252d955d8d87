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
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Fingerprint is the stable content identity of a document. It is derived
// from the document's bytes with BLAKE2b, so identical content always
// produces the same fingerprint across re-ingestion.
type Fingerprint uint64

// FingerprintBytes computes the fingerprint of raw document content.
func FingerprintBytes(data []byte) Fingerprint {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	return Fingerprint(binary.LittleEndian.Uint64(sum))
}

// DocumentType is the closed set of document classifications the pipeline
// can assign. Unmatched documents classify as DocTypeGeneric, which is a
// valid outcome, not a failure.
type DocumentType int

const (
	// DocTypeUnknown means the document has not been classified yet.
	DocTypeUnknown DocumentType = iota
	// DocTypeNormativeStandard covers standards and regulatory texts.
	DocTypeNormativeStandard
	// DocTypeCostEstimate covers estimates and bills of quantities.
	DocTypeCostEstimate
	// DocTypeProductionPlan covers schedules and work plans.
	DocTypeProductionPlan
	// DocTypeTechnicalDrawing covers drawing sheets and title blocks.
	DocTypeTechnicalDrawing
	// DocTypeGeneric is the catch-all for everything else.
	DocTypeGeneric
)

var documentTypeNames = map[DocumentType]string{
	DocTypeUnknown:           "unknown",
	DocTypeNormativeStandard: "normative-standard",
	DocTypeCostEstimate:      "cost-estimate",
	DocTypeProductionPlan:    "production-plan",
	DocTypeTechnicalDrawing:  "technical-drawing",
	DocTypeGeneric:           "generic",
}

// String returns the canonical name of the document type.
func (t DocumentType) String() string {
	if name, ok := documentTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseDocumentType maps a canonical name back to a DocumentType.
// Unrecognized names map to DocTypeUnknown.
func ParseDocumentType(name string) DocumentType {
	for t, n := range documentTypeNames {
		if n == name {
			return t
		}
	}
	return DocTypeUnknown
}

// Document is one ingested source file. It is created when the scheduler
// discovers the file and is immutable once fingerprinted; content changes
// produce a new fingerprint, never a mutation.
type Document struct {
	Fingerprint  Fingerprint
	Source       string // path or URI the document was discovered at
	Type         DocumentType
	Size         int64
	DiscoveredAt time.Time
	IndexedAt    time.Time
	Metadata     map[string]string
}

// Chunk is one retrievable unit of a document's extracted text.
//
// Chunks carry byte offsets into the normalized text. Adjacent chunks may
// overlap by a configured window; OverlapPrefix is the number of leading
// bytes shared with the previous chunk, so concatenating chunk texts with
// each prefix removed reconstructs the source text exactly.
type Chunk struct {
	DocFingerprint Fingerprint
	Seq            int
	Text           string
	Start          int // byte offset into normalized text, inclusive
	End            int // byte offset into normalized text, exclusive
	OverlapPrefix  int // bytes shared with the previous chunk
	Vector         []float32
}

// Stage identifies a position in the document pipeline state machine.
// Stages only advance forward; Failed and Cancelled are terminal.
type Stage int

const (
	// StageDiscovered is the initial state of every pipeline run.
	StageDiscovered Stage = iota
	// StageTextExtracted means normalized non-empty text was produced.
	StageTextExtracted
	// StageTypeClassified means a document type was assigned.
	StageTypeClassified
	// StageMetadataExtracted means structured metadata was produced.
	StageMetadataExtracted
	// StageChunked means the text was split into chunks.
	StageChunked
	// StageEmbedded means chunk vectors were generated (or skipped in
	// degraded mode).
	StageEmbedded
	// StageIndexed is the successful terminal state.
	StageIndexed
	// StageFailed is the terminal failure state.
	StageFailed
	// StageCancelled is entered on external cancellation.
	StageCancelled
)

var stageNames = map[Stage]string{
	StageDiscovered:        "discovered",
	StageTextExtracted:     "text-extracted",
	StageTypeClassified:    "type-classified",
	StageMetadataExtracted: "metadata-extracted",
	StageChunked:           "chunked",
	StageEmbedded:          "embedded",
	StageIndexed:           "indexed",
	StageFailed:            "failed",
	StageCancelled:         "cancelled",
}

// String returns the canonical name of the stage.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further stage may run from s.
func (s Stage) Terminal() bool {
	return s == StageIndexed || s == StageFailed || s == StageCancelled
}

// PipelineState is the accumulated result of one pipeline run over one
// document. It is owned exclusively by the pipeline instance processing
// that document and is never shared across goroutines.
type PipelineState struct {
	Stage         Stage
	Text          string // normalized extracted text
	DocType       DocumentType
	Metadata      map[string]string
	Chunks        []*Chunk
	Errors        []*StageError
	Attempt       int
	FallbacksUsed []string // decoder/extractor names that served as fallbacks
	Degraded      []string // capabilities that were unavailable
}

// NewPipelineState returns the initial state for a pipeline run.
func NewPipelineState() *PipelineState {
	return &PipelineState{
		Stage:    StageDiscovered,
		DocType:  DocTypeUnknown,
		Metadata: make(map[string]string),
	}
}

// RecordError appends a stage error to the accumulated error list.
func (s *PipelineState) RecordError(err *StageError) {
	if err != nil {
		s.Errors = append(s.Errors, err)
	}
}

// LastError returns the most recently recorded stage error, or nil.
func (s *PipelineState) LastError() *StageError {
	if len(s.Errors) == 0 {
		return nil
	}
	return s.Errors[len(s.Errors)-1]
}
