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


// Package ingest implements the document ingestion pipeline and its
// scheduler.
//
// A Pipeline drives one document through the ordered stage sequence
// (text extraction, classification, metadata extraction, chunking,
// embedding, indexing). Stages never mutate the input document; they
// accumulate results in a per-run PipelineState. Text and metadata
// extraction run fallback chains, and optional capabilities that are
// unavailable degrade the run instead of failing it.
//
// The Scheduler fans a batch of files out to concurrent pipeline runs
// over a bounded worker pool, tracking a parent ingestion-run process
// and a child document-job process per file. The Watcher feeds the
// scheduler from filesystem change events.
package ingest
