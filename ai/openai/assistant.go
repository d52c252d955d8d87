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


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxAssistantInput bounds the amount of document text sent to the model.
const maxAssistantInput = 8000

// Assistant implements ai.MetadataAssistant using OpenAI-compatible chat
// APIs. It asks the model for a flat JSON object of metadata fields
// appropriate to the classified document type.
type Assistant struct {
	client llms.Model
	logger *slog.Logger
}

var _ ai.MetadataAssistant = (*Assistant)(nil)

// newAssistant is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newAssistant(config *ai.Config) (*Assistant, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.AssistantHost),
		openai.WithToken("none"),
		openai.WithModel(config.AssistantModel),
	)
	if err != nil {
		return nil, err
	}

	return &Assistant{
		client: client,
		logger: slog.Default().With("component", "openai-assistant"),
	}, nil
}

// NewAssistant creates a new metadata assistant using the provided
// configuration.
//
// Returns ai.MetadataAssistant interface to enforce abstraction.
func NewAssistant(config *ai.Config) (ai.MetadataAssistant, error) {
	return newAssistant(config)
}

// ExtractMetadata asks the model for structured metadata fields for text
// classified as the given document type.
func (a *Assistant) ExtractMetadata(ctx context.Context, docType core.DocumentType, text string) (map[string]string, error) {
	if len(text) > maxAssistantInput {
		text = text[:maxAssistantInput]
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildSystemPrompt(docType)),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := a.client.GenerateContent(ctx, content,
			llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			a.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			a.logger.Debug("no choices returned from model")
			return map[string]string{}, nil
		}

		raw := stripCodeFences(response.Choices[0].Content)

		var fields map[string]string
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			lastErr = err
			a.logger.Debug("malformed JSON from model, retrying", "attempt", attempt+1, "err", err)
			continue
		}

		// Drop empty values so rule-based extractors can fill them in.
		for k, v := range fields {
			if strings.TrimSpace(v) == "" {
				delete(fields, k)
			}
		}
		return fields, nil
	}

	return nil, fmt.Errorf("assistant returned malformed JSON: %w", lastErr)
}

// stripCodeFences removes markdown code fences the model sometimes wraps
// JSON responses in.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func buildSystemPrompt(docType core.DocumentType) string {
	var fields string
	switch docType {
	case core.DocTypeNormativeStandard:
		fields = `"designation" (standard code, e.g. "ISO 9001"), "title", "revision", "effective_date"`
	case core.DocTypeCostEstimate:
		fields = `"title", "currency", "total_amount", "date"`
	case core.DocTypeProductionPlan:
		fields = `"title", "period_start", "period_end", "milestones"`
	case core.DocTypeTechnicalDrawing:
		fields = `"drawing_number", "title", "scale", "sheet", "revision"`
	default:
		fields = `"title", "date"`
	}

	return "You extract structured metadata from documents. " +
		"Respond with a single flat JSON object containing only these string fields " +
		"when present in the text: " + fields + ". " +
		"Omit fields you cannot find. Dates use ISO 8601. No prose, JSON only."
}
