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


package process

import (
	"maps"

	"github.com/quarrylabs/quarry/core"
)

// PolicyTable maps process types to retry policies. The table is fixed at
// construction; types without an entry fall back to the default policy.
type PolicyTable struct {
	policies map[core.ProcessType]core.RetryPolicy
	fallback core.RetryPolicy
}

// NewPolicyTable builds a table from the given per-type policies. The map
// is copied, so later mutation by the caller has no effect.
func NewPolicyTable(policies map[core.ProcessType]core.RetryPolicy) *PolicyTable {
	return &PolicyTable{
		policies: maps.Clone(policies),
		fallback: core.DefaultRetryPolicy(),
	}
}

// For returns the policy registered for the process type, or the default
// policy when none is registered.
func (t *PolicyTable) For(ptype core.ProcessType) core.RetryPolicy {
	if t == nil || t.policies == nil {
		return core.DefaultRetryPolicy()
	}
	if policy, ok := t.policies[ptype]; ok {
		return policy
	}
	return t.fallback
}
