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


// Package search executes queries over the knowledge sink.
//
// The Searcher embeds the query and ranks chunks by vector similarity,
// with a verbatim boost for results containing every query term. When no
// embedding capability is available it degrades to lexical search over
// the chunk texts. Each query runs as a tracked process so callers can
// observe and list query executions alongside ingestion runs.
package search
