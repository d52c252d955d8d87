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


// Package process tracks asynchronous work units and supervises their
// retries.
//
// The Tracker is the single registry of live processes. Every mutation
// of a process goes through it, which gives each process id a single
// writer and lets observers subscribe to a consistent event stream.
// Terminal processes stay visible for a retention window and are then
// reaped; an optional badger-backed Journal preserves their final
// snapshots across restarts.
//
// The Supervisor re-invokes failing operations under a RetryPolicy
// keyed by process type, recording attempts on the tracked process and
// enforcing the per-type timeout.
package process
