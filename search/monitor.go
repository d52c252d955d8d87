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


package search

import "github.com/quarrylabs/quarry/storage"

// Monitor provides hooks to observe query execution. Implement this
// interface to track intermediate steps and results during search.
type Monitor interface {
	Start(query string)
	AfterEmbedding(dimensions int)
	LexicalFallback(reason string)
	AfterSinkSearch(hits []*storage.SearchHit)
	VerbatimBoost(hit *storage.SearchHit)
	Finish(results []*storage.SearchHit)
}

// noopMonitor is a no-op implementation of Monitor.
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                       {}
func (n *noopMonitor) AfterEmbedding(_ int)                 {}
func (n *noopMonitor) LexicalFallback(_ string)             {}
func (n *noopMonitor) AfterSinkSearch(_ []*storage.SearchHit) {}
func (n *noopMonitor) VerbatimBoost(_ *storage.SearchHit)   {}
func (n *noopMonitor) Finish(_ []*storage.SearchHit)        {}
