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


package quarry

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/ai/local"
	"github.com/quarrylabs/quarry/ai/openai"
	"github.com/quarrylabs/quarry/config"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/ingest"
	"github.com/quarrylabs/quarry/process"
	"github.com/quarrylabs/quarry/reindex"
	"github.com/quarrylabs/quarry/search"
	"github.com/quarrylabs/quarry/storage"
	badgerstore "github.com/quarrylabs/quarry/storage/badger"
	"github.com/quarrylabs/quarry/storage/chromem"
)

// System wires the configured storage backend, capability provider,
// process tracker and ingestion machinery into one handle. It is the
// entry point used by the CLI and by embedding applications.
type System struct {
	cfg      *config.Config
	backend  *badgerstore.Backend // nil for non-badger backends
	sink     storage.KnowledgeSink
	provider ai.Provider

	tracker    *process.Tracker
	supervisor *process.Supervisor
	scheduler  *ingest.Scheduler
	watcher    *ingest.Watcher
	searcher   *search.Searcher

	logger *slog.Logger
}

// Open builds a System from the configuration. The caller owns the
// returned handle and must Close it.
func Open(cfg *config.Config) (*System, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &System{
		cfg:    cfg,
		logger: slog.Default().With("component", "system"),
	}
	if err := s.openStorage(); err != nil {
		return nil, err
	}
	if err := s.openProvider(); err != nil {
		s.closeStorage()
		return nil, err
	}
	if err := s.openProcessLayer(); err != nil {
		s.provider.Close()
		s.closeStorage()
		return nil, err
	}
	if err := s.openIngestLayer(); err != nil {
		s.tracker.Close()
		s.provider.Close()
		s.closeStorage()
		return nil, err
	}

	searcher, err := search.NewSearcher(s.sink, s.provider, search.WithTracker(s.tracker))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.searcher = searcher

	s.logger.Info("system opened",
		"backend", cfg.Storage.Backend,
		"provider", cfg.AI.Provider,
		"path", cfg.Storage.Path)
	return s, nil
}

func (s *System) openStorage() error {
	switch s.cfg.Storage.Backend {
	case "badger":
		backend, err := badgerstore.OpenBackend(s.cfg.Storage.Path, s.cfg.Storage.Path == "")
		if err != nil {
			return fmt.Errorf("opening badger backend: %w", err)
		}
		sink, err := badgerstore.NewSink(backend)
		if err != nil {
			backend.Close()
			return err
		}
		s.backend = backend
		s.sink = sink
	case "chromem":
		sink, err := chromem.NewSink(s.cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening chromem sink: %w", err)
		}
		s.sink = sink
	}
	return nil
}

func (s *System) openProvider() error {
	switch s.cfg.AI.Provider {
	case "openai":
		aiCfg := &ai.Config{
			EmbeddingHost:    s.cfg.AI.EmbeddingHost,
			EmbeddingModel:   s.cfg.AI.EmbeddingModel,
			AssistantHost:    s.cfg.AI.AssistantHost,
			AssistantModel:   s.cfg.AI.AssistantModel,
			EmbeddingEnabled: true,
		}
		provider, err := openai.NewProvider(aiCfg)
		if err != nil {
			return err
		}
		s.provider = provider
	case "local":
		emb, err := local.NewEmbedder(s.cfg.AI.EmbeddingDim)
		if err != nil {
			return err
		}
		s.provider = &staticProvider{emb: emb}
	case "none":
		s.provider = &staticProvider{}
	}
	return nil
}

func (s *System) openProcessLayer() error {
	trackerOpts := []process.TrackerOption{
		process.WithRetention(s.cfg.Process.Retention),
	}
	if s.backend != nil {
		journal, err := process.NewJournal(s.backend)
		if err != nil {
			return err
		}
		trackerOpts = append(trackerOpts, process.WithJournal(journal))
	}
	tracker, err := process.NewTracker(trackerOpts...)
	if err != nil {
		return err
	}

	policy := core.RetryPolicy{
		MaxAttempts:  s.cfg.Process.MaxAttempts,
		InitialDelay: s.cfg.Process.InitialDelay,
		MaxDelay:     s.cfg.Process.MaxDelay,
		Base:         2,
		Jitter:       true,
		Timeout:      s.cfg.Process.Timeout,
	}
	table := process.NewPolicyTable(map[core.ProcessType]core.RetryPolicy{
		core.ProcessDocumentJob: policy,
		core.ProcessRetrain:     policy,
	})
	supervisor, err := process.NewSupervisor(tracker, table)
	if err != nil {
		tracker.Close()
		return err
	}

	s.tracker = tracker
	s.supervisor = supervisor
	return nil
}

func (s *System) openIngestLayer() error {
	pipeline, err := ingest.NewPipeline(s.provider, s.sink, s.tracker,
		ingest.WithChunking(s.cfg.Ingest.ChunkSize, s.cfg.Ingest.ChunkOverlap))
	if err != nil {
		return err
	}

	var schedOpts []ingest.SchedulerOption
	if s.cfg.Ingest.Workers > 0 {
		schedOpts = append(schedOpts, ingest.WithWorkers(s.cfg.Ingest.Workers))
	}
	scheduler, err := ingest.NewScheduler(pipeline, s.tracker, s.supervisor, schedOpts...)
	if err != nil {
		return err
	}

	watcher, err := ingest.NewWatcher(scheduler, ingest.WithDebounce(s.cfg.Ingest.WatchDebounce))
	if err != nil {
		scheduler.Release()
		return err
	}

	s.scheduler = scheduler
	s.watcher = watcher
	return nil
}

// Ingest starts an ingestion run for path, which may be a single file
// or a directory, and returns the run's process id.
func (s *System) Ingest(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrBatchPrecondition, err)
	}
	if info.IsDir() {
		return s.scheduler.IngestDirectory(ctx, path)
	}
	return s.scheduler.IngestFile(ctx, path)
}

// Wait blocks until the ingestion run with the given id finishes.
func (s *System) Wait(runID string) error {
	return s.scheduler.Wait(runID)
}

// Watch starts ingesting files created or modified under dir.
func (s *System) Watch(dir string) error {
	return s.watcher.Add(dir)
}

// Search runs a query against the knowledge sink. A zero filter.K is
// replaced by the configured default, likewise the minimum score.
func (s *System) Search(ctx context.Context, query string, filter storage.SearchFilter) ([]*storage.SearchHit, error) {
	if filter.K == 0 {
		filter.K = s.cfg.Search.MaxResults
	}
	if filter.MinScore == 0 {
		filter.MinScore = s.cfg.Search.MinScore
	}
	return s.searcher.Search(ctx, query, filter)
}

// Reindex re-embeds every stored chunk with the current embedder and
// returns the retrain process id. Backends that cannot enumerate their
// documents cannot be reindexed.
func (s *System) Reindex(ctx context.Context) (string, error) {
	store, ok := s.sink.(storage.DocumentStore)
	if !ok {
		return "", fmt.Errorf("reindex: %w: %s backend cannot enumerate documents",
			core.ErrCapabilityUnavailable, s.cfg.Storage.Backend)
	}
	r, err := reindex.NewReindexer(store, s.sink, s.provider, s.tracker, s.supervisor)
	if err != nil {
		return "", err
	}
	return r.Run(ctx)
}

// Status returns the current snapshot of a tracked process.
func (s *System) Status(id string) (*core.Process, error) {
	return s.tracker.Get(id)
}

// Processes lists tracked processes, newest first.
func (s *System) Processes(filter process.ListFilter) []*core.Process {
	return s.tracker.List(filter)
}

// Cancel requests cancellation of a tracked process.
func (s *System) Cancel(id string) error {
	return s.tracker.Cancel(id)
}

// Subscribe returns a snapshot-then-live event stream for a process.
// The second return value cancels the subscription.
func (s *System) Subscribe(id string) (<-chan core.ProcessEvent, func(), error) {
	return s.tracker.Subscribe(id)
}

// Done returns a channel closed when the process reaches a terminal
// status.
func (s *System) Done(id string) (<-chan struct{}, error) {
	return s.tracker.Done(id)
}

// Tracker exposes the process tracker for embedding applications.
func (s *System) Tracker() *process.Tracker {
	return s.tracker
}

// Close shuts the system down, waiting for in-flight work to release.
func (s *System) Close() error {
	if err := s.watcher.Close(); err != nil {
		s.logger.Error("error closing watcher", "err", err)
	}
	s.scheduler.Release()
	if err := s.tracker.Close(); err != nil {
		s.logger.Error("error closing tracker", "err", err)
	}
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing provider", "err", err)
	}
	return s.closeStorage()
}

func (s *System) closeStorage() error {
	if err := s.sink.Close(); err != nil {
		s.logger.Error("error closing sink", "err", err)
		return err
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("error closing backend storage", "err", err)
			return err
		}
	}
	return nil
}

// staticProvider serves a fixed embedder with no decoding or assistant
// capabilities. The extraction and metadata stages degrade to their
// built-in fallbacks.
type staticProvider struct {
	emb ai.Embedder
}

var _ ai.Provider = (*staticProvider)(nil)

func (p *staticProvider) Embedder() ai.Embedder { return p.emb }

func (p *staticProvider) PrimaryDecoder() ai.TextDecoder { return nil }

func (p *staticProvider) OCRDecoder() ai.TextDecoder { return nil }

func (p *staticProvider) MetadataAssistant() ai.MetadataAssistant { return nil }

func (p *staticProvider) Close() error { return nil }
