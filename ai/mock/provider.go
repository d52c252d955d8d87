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


package mock

import "github.com/quarrylabs/quarry/ai"

// Provider is a test double for ai.Provider. Individual capabilities can
// be replaced or set to nil to simulate unavailability.
type Provider struct {
	Emb       *Embedder
	Primary   *Decoder
	OCR       *Decoder
	Assistant *Assistant
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a mock provider with all capabilities present.
func NewProvider() *Provider {
	return &Provider{
		Emb:       NewEmbedder(),
		Primary:   NewDecoder("native"),
		OCR:       NewDecoder("ocr"),
		Assistant: NewAssistant(),
	}
}

// Embedder returns the mock embedder, or nil when disabled.
func (p *Provider) Embedder() ai.Embedder {
	if p.Emb == nil {
		return nil
	}
	return p.Emb
}

// PrimaryDecoder returns the mock native decoder, or nil when disabled.
func (p *Provider) PrimaryDecoder() ai.TextDecoder {
	if p.Primary == nil {
		return nil
	}
	return p.Primary
}

// OCRDecoder returns the mock OCR decoder, or nil when disabled.
func (p *Provider) OCRDecoder() ai.TextDecoder {
	if p.OCR == nil {
		return nil
	}
	return p.OCR
}

// MetadataAssistant returns the mock assistant, or nil when disabled.
func (p *Provider) MetadataAssistant() ai.MetadataAssistant {
	if p.Assistant == nil {
		return nil
	}
	return p.Assistant
}

// Close is a no-op for the mock provider.
func (p *Provider) Close() error {
	return nil
}
