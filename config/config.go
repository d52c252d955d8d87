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


// Package config loads the application configuration. Values come from
// built-in defaults, then an optional YAML file, then environment
// variables with the QUARRY_ prefix, in increasing precedence.
package config

import (
	"fmt"
	"time"
)

// Config is the full application configuration.
type Config struct {
	Storage StorageConfig `koanf:"storage"`
	AI      AIConfig      `koanf:"ai"`
	Ingest  IngestConfig  `koanf:"ingest"`
	Process ProcessConfig `koanf:"process"`
	Search  SearchConfig  `koanf:"search"`
}

// StorageConfig selects and locates the knowledge sink backend.
type StorageConfig struct {
	// Backend is "badger" or "chromem".
	Backend string `koanf:"backend"`

	// Path is the on-disk location of the store. Empty runs in memory.
	Path string `koanf:"path"`
}

// AIConfig selects the capability provider.
type AIConfig struct {
	// Provider is "openai" (OpenAI-compatible service), "local"
	// (deterministic offline embedder) or "none" (fully degraded).
	Provider string `koanf:"provider"`

	EmbeddingHost  string `koanf:"embedding_host"`
	EmbeddingModel string `koanf:"embedding_model"`
	AssistantHost  string `koanf:"assistant_host"`
	AssistantModel string `koanf:"assistant_model"`

	// EmbeddingDim is the vector dimensionality of the local embedder.
	EmbeddingDim int `koanf:"embedding_dim"`
}

// IngestConfig tunes the ingestion pipeline and scheduler.
type IngestConfig struct {
	// Workers bounds pipeline concurrency. Zero picks half the CPUs.
	Workers int `koanf:"workers"`

	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`

	// WatchDebounce is the quiet window before a watched file change is
	// ingested.
	WatchDebounce time.Duration `koanf:"watch_debounce"`
}

// ProcessConfig tunes process tracking and the retry policy applied to
// document jobs and retrain runs.
type ProcessConfig struct {
	// Retention is how long terminal processes stay listable.
	Retention time.Duration `koanf:"retention"`

	MaxAttempts  int           `koanf:"max_attempts"`
	InitialDelay time.Duration `koanf:"initial_delay"`
	MaxDelay     time.Duration `koanf:"max_delay"`

	// Timeout bounds one whole supervised operation. Zero is unlimited.
	Timeout time.Duration `koanf:"timeout"`
}

// SearchConfig sets query defaults.
type SearchConfig struct {
	MaxResults int     `koanf:"max_results"`
	MinScore   float32 `koanf:"min_score"`
}

// Validate checks cross-field constraints. Loading already applied
// defaults, so zero values here are deliberate.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "badger", "chromem":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.AI.Provider {
	case "openai", "local", "none":
	default:
		return fmt.Errorf("unknown AI provider %q", c.AI.Provider)
	}
	// chromem stores vectors only; without an embedder every index
	// write would fail.
	if c.Storage.Backend == "chromem" && c.AI.Provider == "none" {
		return fmt.Errorf("the chromem backend requires an embedding provider, got %q", c.AI.Provider)
	}

	if c.Ingest.ChunkSize < 16 {
		return fmt.Errorf("chunk size %d too small", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize/2 {
		return fmt.Errorf("chunk overlap %d must be in [0, %d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize/2)
	}
	if c.Ingest.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Ingest.Workers)
	}

	if c.Process.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.Process.MaxAttempts)
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("max results must be at least 1, got %d", c.Search.MaxResults)
	}
	return nil
}
