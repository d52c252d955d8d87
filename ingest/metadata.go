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
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/core"
)

const metadataStageName = "metadata-extraction"

// metadataStage extracts type-specific structured metadata. The chain is
// assistant first (when the capability is available), then the rule-based
// extractor registered for the classified type, then the generic
// title/date extractor. A failing specific extractor demotes to generic
// rather than failing the document, so the stage as a whole cannot fail.
type metadataStage struct {
	assistant ai.MetadataAssistant // nil when unavailable
}

func newMetadataStage(provider ai.Provider) *metadataStage {
	return &metadataStage{assistant: provider.MetadataAssistant()}
}

func (s *metadataStage) Name() string       { return metadataStageName }
func (s *metadataStage) Target() core.Stage { return core.StageMetadataExtracted }

func (s *metadataStage) Run(ctx context.Context, _ *Request, state *core.PipelineState) error {
	methods := []chainMethod[map[string]string]{
		{
			name: "assistant",
			run: func(ctx context.Context) (map[string]string, error) {
				if s.assistant == nil {
					return nil, core.ErrCapabilityUnavailable
				}
				return s.assistant.ExtractMetadata(ctx, state.DocType, state.Text)
			},
		},
		{
			name: "rule-based",
			run: func(ctx context.Context) (map[string]string, error) {
				return extractByType(state.DocType, state.Text), nil
			},
		},
		{
			name: "generic",
			run: func(ctx context.Context) (map[string]string, error) {
				return extractGeneric(state.Text), nil
			},
		},
	}

	md, err := runChain(ctx, metadataStageName, state, methods, func(md map[string]string) error {
		if len(md) == 0 {
			return fmt.Errorf("extractor produced no metadata")
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		// Even an empty result is not worth failing the document over.
		md = map[string]string{}
	}

	// Title and date are always available to search layers, whichever
	// extractor produced the rest.
	for k, v := range extractGeneric(state.Text) {
		if _, ok := md[k]; !ok {
			md[k] = v
		}
	}
	for k, v := range md {
		state.Metadata[k] = v
	}
	return nil
}

// extractByType runs the rule-based extractor for the classified type.
// Generic and unknown types get the minimal title/date extractor.
func extractByType(docType core.DocumentType, text string) map[string]string {
	switch docType {
	case core.DocTypeNormativeStandard:
		return extractNormativeStandard(text)
	case core.DocTypeCostEstimate:
		return extractCostEstimate(text)
	case core.DocTypeProductionPlan:
		return extractProductionPlan(text)
	case core.DocTypeTechnicalDrawing:
		return extractTechnicalDrawing(text)
	default:
		return extractGeneric(text)
	}
}

var (
	datePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}[./]\d{1,2}[./]\d{2,4})\b`)

	standardRefPattern = regexp.MustCompile(`(?i)\b((?:ISO|EN|DIN|ASTM|GOST)[ -]?\d{2,5}(?:[-:.]\d+)*)\b`)
	clausePattern      = regexp.MustCompile(`(?i)\bclause\s+\d+(?:\.\d+)*\b`)

	currencyPattern = regexp.MustCompile(`(?i)(?:[$€£]|usd|eur|rub)\s?\d[\d,.]*`)
	totalPattern    = regexp.MustCompile(`(?i)\btotal\b[^\n\d]{0,40}?((?:[$€£]|usd|eur|rub)?\s?\d[\d,.]*)`)

	phasePattern     = regexp.MustCompile(`(?i)\bphase\s+\d+\b`)
	milestonePattern = regexp.MustCompile(`(?i)\bmilestone\b`)

	scalePattern    = regexp.MustCompile(`(?i)\bscale\s+(1\s*:\s*\d+)\b`)
	sheetPattern    = regexp.MustCompile(`(?i)\bsheet\s+(\d+)(?:\s+of\s+(\d+))?\b`)
	revisionPattern = regexp.MustCompile(`(?i)\brev(?:ision)?\.?\s*([A-Z0-9]{1,4})\b`)
)

// extractGeneric pulls a title from the first substantial line and the
// first recognizable date.
func extractGeneric(text string) map[string]string {
	md := make(map[string]string, 2)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 3 {
			continue
		}
		if len(line) > 120 {
			cut := 120
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			line = line[:cut]
		}
		md["title"] = line
		break
	}
	if m := datePattern.FindString(text); m != "" {
		md["date"] = m
	}
	return md
}

func extractNormativeStandard(text string) map[string]string {
	md := extractGeneric(text)
	if refs := standardRefPattern.FindAllString(text, -1); len(refs) > 0 {
		md["standard_ref"] = refs[0]
		md["reference_count"] = strconv.Itoa(len(refs))
	}
	if clauses := clausePattern.FindAllString(text, -1); len(clauses) > 0 {
		md["clause_count"] = strconv.Itoa(len(clauses))
	}
	return md
}

func extractCostEstimate(text string) map[string]string {
	md := extractGeneric(text)
	if m := totalPattern.FindStringSubmatch(text); m != nil {
		md["total"] = strings.TrimSpace(m[1])
	}
	if amounts := currencyPattern.FindAllString(text, -1); len(amounts) > 0 {
		md["amount_count"] = strconv.Itoa(len(amounts))
	}
	return md
}

func extractProductionPlan(text string) map[string]string {
	md := extractGeneric(text)
	if phases := phasePattern.FindAllString(text, -1); len(phases) > 0 {
		md["phase_count"] = strconv.Itoa(len(phases))
	}
	if milestones := milestonePattern.FindAllString(text, -1); len(milestones) > 0 {
		md["milestone_count"] = strconv.Itoa(len(milestones))
	}
	if dates := datePattern.FindAllString(text, -1); len(dates) > 0 {
		md["start_date"] = dates[0]
		md["end_date"] = dates[len(dates)-1]
	}
	return md
}

func extractTechnicalDrawing(text string) map[string]string {
	md := extractGeneric(text)
	if m := scalePattern.FindStringSubmatch(text); m != nil {
		md["scale"] = strings.ReplaceAll(m[1], " ", "")
	}
	if m := sheetPattern.FindStringSubmatch(text); m != nil {
		md["sheet"] = m[1]
		if m[2] != "" {
			md["sheet_count"] = m[2]
		}
	}
	if m := revisionPattern.FindStringSubmatch(text); m != nil {
		md["revision"] = m[1]
	}
	return md
}
