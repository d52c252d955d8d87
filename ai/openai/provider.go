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


// Package openai provides capability implementations backed by
// OpenAI-compatible services via langchaingo. Embedding and metadata
// assistance are covered; format decoders and OCR come from external
// collaborators and are reported unavailable by this provider.
package openai

import (
	"log/slog"

	"github.com/quarrylabs/quarry/ai"
)

// Provider implements ai.Provider using OpenAI-compatible services.
// Capabilities disabled in the configuration are reported unavailable
// (nil), which puts consumers into degraded mode for them.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	assistant *Assistant
	logger    *slog.Logger
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a provider from the configuration. The embedder is
// constructed when embedding is enabled; the assistant when an assistant
// model is configured.
func NewProvider(config *ai.Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "openai-provider"),
	}

	if config.EmbeddingEnabled {
		embedder, err := newEmbedder(config)
		if err != nil {
			return nil, err
		}
		p.embedder = embedder
	} else {
		p.logger.Info("embedding capability disabled, lexical-only indexing")
	}

	if config.AssistantModel != "" {
		assistant, err := newAssistant(config)
		if err != nil {
			return nil, err
		}
		p.assistant = assistant
	}

	return p, nil
}

// Embedder returns the embedding capability, or nil when disabled.
func (p *Provider) Embedder() ai.Embedder {
	if p.embedder == nil {
		return nil
	}
	return p.embedder
}

// PrimaryDecoder reports the native format decoder unavailable; format
// decoding is an external collaborator, not part of this provider.
func (p *Provider) PrimaryDecoder() ai.TextDecoder {
	return nil
}

// OCRDecoder reports OCR unavailable; OCR is an external collaborator,
// not part of this provider.
func (p *Provider) OCRDecoder() ai.TextDecoder {
	return nil
}

// MetadataAssistant returns the LLM-backed extractor, or nil when no
// assistant model is configured.
func (p *Provider) MetadataAssistant() ai.MetadataAssistant {
	if p.assistant == nil {
		return nil
	}
	return p.assistant
}

// Close releases resources held by the provider. The langchaingo clients
// hold no connections that need explicit shutdown.
func (p *Provider) Close() error {
	return nil
}
