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


package reindex

import "errors"

var (
	// ErrStoreRequired is returned when no document store is provided.
	ErrStoreRequired = errors.New("document store required")

	// ErrSinkRequired is returned when no knowledge sink is provided.
	ErrSinkRequired = errors.New("knowledge sink required")

	// ErrEmbedderRequired is returned when the provider has no embedding
	// capability; there is nothing to re-embed with.
	ErrEmbedderRequired = errors.New("embedding capability required")

	// ErrTrackerRequired is returned when no process tracker is provided.
	ErrTrackerRequired = errors.New("process tracker required")

	// ErrSupervisorRequired is returned when no retry supervisor is provided.
	ErrSupervisorRequired = errors.New("retry supervisor required")
)
