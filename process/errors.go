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

import "errors"

var (
	// ErrTrackerClosed is returned by operations on a closed tracker.
	ErrTrackerClosed = errors.New("process tracker is closed")

	// ErrInvalidProcessType is returned when a start request carries an
	// unknown process type.
	ErrInvalidProcessType = errors.New("invalid process type")

	// ErrNilOperation is returned when the supervisor is given a nil
	// operation to run.
	ErrNilOperation = errors.New("operation must not be nil")
)
