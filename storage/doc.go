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


// Package storage defines the knowledge-store contract the pipeline and
// query execution run against.
//
// KnowledgeSink is the required contract: per-document atomic upsert
// keyed by fingerprint, nearest-neighbor search and deletion. Backends
// may additionally implement DocumentStore (enumeration, needed by the
// reindexer) and LexicalSearcher (text-only search, needed for degraded
// mode without an embedder).
//
// Two backends are provided: badger (embedded KV store with brute-force
// cosine search, the default) and chromem (embedded vector database).
//
// All implementations must be thread-safe. The sink is an external
// transactional boundary: quarry relies on per-document upsert atomicity
// and implements no cross-document transactions on top of it.
package storage
