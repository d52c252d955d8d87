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


package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for the capability providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server.
	EmbeddingHost string

	// EmbeddingModel is the model identifier used for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// AssistantHost is the base URL for the metadata assistant service API.
	AssistantHost string

	// AssistantModel is the chat model used for metadata extraction.
	// Empty disables the assistant capability.
	AssistantModel string

	// EmbeddingEnabled toggles the embedding capability. When false the
	// pipeline indexes lexical-only entries in degraded mode.
	EmbeddingEnabled bool
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets both embedding and assistant hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.AssistantHost = host
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAssistantHost sets the metadata assistant host URL.
func WithAssistantHost(host string) ConfigOption {
	return func(c *Config) {
		c.AssistantHost = host
	}
}

// WithAssistantModel sets the metadata assistant model. Empty disables
// the assistant capability.
func WithAssistantModel(model string) ConfigOption {
	return func(c *Config) {
		c.AssistantModel = model
	}
}

// WithoutEmbedding disables the embedding capability entirely.
func WithoutEmbedding() ConfigOption {
	return func(c *Config) {
		c.EmbeddingEnabled = false
	}
}

// DefaultConfig returns a Config with sensible defaults for local
// OpenAI-compatible services. The assistant is disabled by default.
func DefaultConfig(opts ...ConfigOption) *Config {
	defaultHost := "http://localhost:11434/v1"
	c := &Config{
		EmbeddingHost:    defaultHost,
		AssistantHost:    defaultHost,
		EmbeddingModel:   "embeddinggemma",
		EmbeddingEnabled: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validation errors
var (
	// ErrConfigNil indicates a nil Config was passed to a constructor.
	ErrConfigNil = errors.New("config is nil")

	// ErrEmbeddingHostRequired indicates a missing embedding host.
	ErrEmbeddingHostRequired = errors.New("embedding host required")

	// ErrEmbeddingModelRequired indicates a missing embedding model.
	ErrEmbeddingModelRequired = errors.New("embedding model required")

	// ErrAssistantHostRequired indicates an assistant model was set
	// without a host.
	ErrAssistantHostRequired = errors.New("assistant host required")
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.EmbeddingEnabled {
		if strings.TrimSpace(c.EmbeddingHost) == "" {
			return ErrEmbeddingHostRequired
		}
		if strings.TrimSpace(c.EmbeddingModel) == "" {
			return ErrEmbeddingModelRequired
		}
	}

	if c.AssistantModel != "" && strings.TrimSpace(c.AssistantHost) == "" {
		return ErrAssistantHostRequired
	}

	return nil
}
