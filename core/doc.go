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


// Package core defines the domain model shared by every quarry package.
//
// It contains the Document and Chunk types produced by the ingestion
// pipeline, the per-document PipelineState state machine, the Process
// lifecycle model used by the process tracker, and the retry policy
// configuration consumed by the retry supervisor.
//
// Types in this package carry no behavior beyond identity, validation
// and serialization. All orchestration lives in the ingest, process and
// search packages.
package core
