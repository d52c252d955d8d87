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
	"regexp"
	"strings"

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/core"
)

const textExtractionStage = "text-extraction"

// extractStage produces normalized text from the raw document bytes. It
// runs the decoder fallback chain: primary format decoder, then OCR,
// then a built-in heuristic that salvages printable runs from the bytes.
// A document that yields no text after the full chain is unrecoverable;
// empty documents are never indexed.
type extractStage struct {
	primary   ai.TextDecoder // nil when the capability is unavailable
	ocr       ai.TextDecoder // nil when the capability is unavailable
	heuristic heuristicDecoder
}

func newExtractStage(provider ai.Provider) *extractStage {
	return &extractStage{
		primary: provider.PrimaryDecoder(),
		ocr:     provider.OCRDecoder(),
	}
}

func (s *extractStage) Name() string       { return textExtractionStage }
func (s *extractStage) Target() core.Stage { return core.StageTextExtracted }

func (s *extractStage) Run(ctx context.Context, req *Request, state *core.PipelineState) error {
	slots := []struct {
		slot string
		dec  ai.TextDecoder
	}{
		{"primary-decoder", s.primary},
		{"ocr-decoder", s.ocr},
	}

	methods := make([]chainMethod[string], 0, 3)
	for _, entry := range slots {
		dec := entry.dec
		name := entry.slot
		if dec != nil {
			name = dec.Name()
		}
		methods = append(methods, chainMethod[string]{
			name: name,
			run: func(ctx context.Context) (string, error) {
				if dec == nil {
					return "", core.ErrCapabilityUnavailable
				}
				return dec.DecodeText(ctx, req.Document.Source, req.Data)
			},
		})
	}
	methods = append(methods, chainMethod[string]{
		name: s.heuristic.Name(),
		run: func(ctx context.Context) (string, error) {
			return s.heuristic.DecodeText(ctx, req.Document.Source, req.Data)
		},
	})

	text, err := runChain(ctx, textExtractionStage, state, methods, func(raw string) error {
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("decoder produced no text")
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return core.NewUnrecoverableStageError(textExtractionStage, "", core.ErrEmptyDocument)
	}

	state.Text = NormalizeText(text)
	if state.Text == "" {
		return core.NewUnrecoverableStageError(textExtractionStage, "", core.ErrEmptyDocument)
	}
	return nil
}

// heuristicDecoder is the last resort of the extraction chain. It pulls
// printable character runs out of arbitrary bytes, which is enough to
// index title blocks and embedded strings of undecodable formats.
type heuristicDecoder struct{}

var printableRun = regexp.MustCompile(`[\x20-\x7e\p{L}\p{N}][\x20-\x7e\p{L}\p{N}\t]{3,}`)

func (heuristicDecoder) Name() string { return "heuristic" }

func (heuristicDecoder) DecodeText(_ context.Context, _ string, data []byte) (string, error) {
	runs := printableRun.FindAllString(string(data), -1)
	kept := runs[:0]
	for _, run := range runs {
		if strings.TrimSpace(run) != "" {
			kept = append(kept, strings.TrimSpace(run))
		}
	}
	return strings.Join(kept, "\n"), nil
}

// NormalizeText canonicalizes extracted text: line endings become LF,
// NUL and other control noise is dropped, and outer whitespace is
// trimmed. Chunk offsets index into this normalized form.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.Map(func(r rune) rune {
		if r == '\x00' || r == '�' {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}
