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
	"regexp"
	"strings"

	"github.com/quarrylabs/quarry/core"
)

const classificationStage = "type-classification"

// typeSignature is the rule set for one document type: keywords scored
// by occurrence plus patterns that are strong hints on their own.
type typeSignature struct {
	docType  core.DocumentType
	keywords []string
	patterns []*regexp.Regexp
}

// signatures are checked against the lowercased text. Patterns count
// double; the best-scoring type wins when it clears the threshold,
// otherwise the document is generic. Classification never fails.
var signatures = []typeSignature{
	{
		docType: core.DocTypeNormativeStandard,
		keywords: []string{
			"shall", "normative", "clause", "compliance",
			"requirements", "regulation", "standard",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:iso|en|din|astm|gost)[ -]?\d{2,5}\b`),
			regexp.MustCompile(`\bclause\s+\d+(?:\.\d+)*\b`),
		},
	},
	{
		docType: core.DocTypeCostEstimate,
		keywords: []string{
			"estimate", "unit price", "quantity", "total cost",
			"bill of quantities", "unit rate", "subtotal", "amount",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:[$€£]|usd|eur|rub)\s?\d[\d,.]*`),
			regexp.MustCompile(`\btotal\b.{0,40}\d`),
		},
	},
	{
		docType: core.DocTypeProductionPlan,
		keywords: []string{
			"schedule", "milestone", "phase", "duration",
			"work plan", "deadline", "deliverable", "task",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\bphase\s+\d+\b`),
			regexp.MustCompile(`\bweek\s+\d+\b`),
		},
	},
	{
		docType: core.DocTypeTechnicalDrawing,
		keywords: []string{
			"drawing", "sheet", "revision", "title block",
			"section view", "detail", "drawn by", "checked by",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\bscale\s+1\s*:\s*\d+\b`),
			regexp.MustCompile(`\bsheet\s+\d+\s+of\s+\d+\b`),
		},
	},
}

// classifyThreshold is the minimum signature score for a specific type;
// anything below it is generic.
const classifyThreshold = 2

// classifyStage assigns a document type by signature matching over the
// normalized text. Unmatched text is generic, which is a valid outcome.
type classifyStage struct{}

func newClassifyStage() *classifyStage { return &classifyStage{} }

func (s *classifyStage) Name() string       { return classificationStage }
func (s *classifyStage) Target() core.Stage { return core.StageTypeClassified }

func (s *classifyStage) Run(_ context.Context, _ *Request, state *core.PipelineState) error {
	state.DocType = Classify(state.Text)
	return nil
}

// Classify scores the text against every type signature and returns the
// best match, or DocTypeGeneric when nothing clears the threshold.
func Classify(text string) core.DocumentType {
	lowered := strings.ToLower(text)

	best := core.DocTypeGeneric
	bestScore := 0
	for _, sig := range signatures {
		score := 0
		for _, kw := range sig.keywords {
			if strings.Contains(lowered, kw) {
				score++
			}
		}
		for _, pat := range sig.patterns {
			if pat.MatchString(lowered) {
				score += 2
			}
		}
		if score >= classifyThreshold && score > bestScore {
			best = sig.docType
			bestScore = score
		}
	}
	return best
}
