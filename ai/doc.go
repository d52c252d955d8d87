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


// Package ai defines the capability boundary of the ingestion pipeline.
//
// Text decoding, OCR, embedding generation and language-model-assisted
// metadata extraction are consumed as named capabilities behind the
// interfaces in this package. A capability either succeeds, fails
// recoverably (triggering the pipeline's fallback chain), or is reported
// unavailable at startup, which puts the pipeline into a documented
// degraded mode for that capability.
//
// Subpackage openai provides implementations backed by OpenAI-compatible
// services, local provides a deterministic offline embedder, and mock
// provides test doubles.
package ai
