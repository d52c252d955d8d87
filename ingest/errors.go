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


package ingest

import "errors"

var (
	// ErrSinkRequired is returned when a pipeline is built without a sink.
	ErrSinkRequired = errors.New("knowledge sink is required")

	// ErrProviderRequired is returned when a pipeline is built without a
	// capability provider.
	ErrProviderRequired = errors.New("capability provider is required")

	// ErrTrackerRequired is returned when a component is built without a
	// process tracker.
	ErrTrackerRequired = errors.New("process tracker is required")

	// ErrSchedulerReleased is returned by submissions after Release.
	ErrSchedulerReleased = errors.New("scheduler has been released")

	// ErrUnknownRun is returned by Wait for a run the scheduler does not
	// know about.
	ErrUnknownRun = errors.New("unknown ingestion run")

	// ErrWatcherClosed is returned by operations on a closed watcher.
	ErrWatcherClosed = errors.New("watcher is closed")
)
