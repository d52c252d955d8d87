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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quarrylabs/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor(t *testing.T, tracker *Tracker, policies map[core.ProcessType]core.RetryPolicy) *Supervisor {
	t.Helper()
	sup, err := NewSupervisor(tracker, NewPolicyTable(policies),
		WithSleeper(func(ctx context.Context, d time.Duration) error { return ctx.Err() }))
	require.NoError(t, err)
	return sup
}

func instantPolicy(maxAttempts int) core.RetryPolicy {
	return core.RetryPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Base:         2,
	}
}

func TestSupervisorSucceedsFirstAttempt(t *testing.T) {
	tracker := newTestTracker(t)
	sup := newTestSupervisor(t, tracker, nil)

	proc, err := tracker.Start(StartRequest{Type: core.ProcessDocumentJob})
	require.NoError(t, err)

	calls := 0
	err = sup.Do(context.Background(), proc.ID, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	got, err := tracker.Get(proc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusRunning, got.Status)
	assert.Equal(t, "1", got.Metadata["attempt"])
}

func TestSupervisorExhaustsPolicy(t *testing.T) {
	tracker := newTestTracker(t)
	sup := newTestSupervisor(t, tracker, map[core.ProcessType]core.RetryPolicy{
		core.ProcessDocumentJob: instantPolicy(3),
	})

	proc, err := tracker.Start(StartRequest{Type: core.ProcessDocumentJob})
	require.NoError(t, err)

	opErr := errors.New("decoder crashed")
	calls := 0
	err = sup.Do(context.Background(), proc.ID, func(ctx context.Context) error {
		calls++
		return opErr
	})
	assert.ErrorIs(t, err, core.ErrPolicyExhausted)
	assert.ErrorIs(t, err, opErr)
	assert.Equal(t, 3, calls)

	got, err := tracker.Get(proc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, "decoder crashed", got.Message)
	assert.Equal(t, "3", got.Metadata["attempt"])
	assert.Equal(t, "decoder crashed", got.Metadata["last_error"])
}

func TestSupervisorSingleAttemptPolicyNeverRetries(t *testing.T) {
	tracker := newTestTracker(t)

	sleeps := 0
	sup, err := NewSupervisor(tracker, NewPolicyTable(map[core.ProcessType]core.RetryPolicy{
		core.ProcessDocumentJob: instantPolicy(1),
	}), WithSleeper(func(ctx context.Context, d time.Duration) error {
		sleeps++
		return ctx.Err()
	}))
	require.NoError(t, err)

	proc, err := tracker.Start(StartRequest{Type: core.ProcessDocumentJob})
	require.NoError(t, err)

	opErr := errors.New("embedding service unreachable")
	calls := 0
	err = sup.Do(context.Background(), proc.ID, func(ctx context.Context) error {
		calls++
		return opErr
	})
	assert.ErrorIs(t, err, core.ErrPolicyExhausted)
	assert.ErrorIs(t, err, opErr)
	assert.Equal(t, 1, calls)
	assert.Zero(t, sleeps, "a one-attempt policy has no backoff to sleep for")

	got, err := tracker.Get(proc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, "embedding service unreachable", got.Message)
	assert.Equal(t, "1", got.Metadata["attempt"])
	assert.Equal(t, "embedding service unreachable", got.Metadata["last_error"])
}

func TestSupervisorRecoversAfterRetry(t *testing.T) {
	tracker := newTestTracker(t)
	sup := newTestSupervisor(t, tracker, map[core.ProcessType]core.RetryPolicy{
		core.ProcessDocumentJob: instantPolicy(3),
	})

	proc, err := tracker.Start(StartRequest{Type: core.ProcessDocumentJob})
	require.NoError(t, err)

	calls := 0
	err = sup.Do(context.Background(), proc.ID, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestSupervisorUnrecoverableShortCircuits(t *testing.T) {
	tracker := newTestTracker(t)
	sup := newTestSupervisor(t, tracker, map[core.ProcessType]core.RetryPolicy{
		core.ProcessDocumentJob: instantPolicy(5),
	})

	proc, err := tracker.Start(StartRequest{Type: core.ProcessDocumentJob})
	require.NoError(t, err)

	calls := 0
	err = sup.Do(context.Background(), proc.ID, func(ctx context.Context) error {
		calls++
		return core.ErrEmptyDocument
	})
	assert.ErrorIs(t, err, core.ErrEmptyDocument)
	assert.NotErrorIs(t, err, core.ErrPolicyExhausted)
	assert.Equal(t, 1, calls)

	got, err := tracker.Get(proc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
}

func TestSupervisorCancelledBeforeStart(t *testing.T) {
	tracker := newTestTracker(t)
	sup := newTestSupervisor(t, tracker, nil)

	proc, err := tracker.Start(StartRequest{Type: core.ProcessDocumentJob})
	require.NoError(t, err)
	require.NoError(t, tracker.Cancel(proc.ID))

	calls := 0
	err = sup.Do(context.Background(), proc.ID, func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)

	got, err := tracker.Get(proc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, got.Status)
}

func TestSupervisorCancelDuringRun(t *testing.T) {
	tracker := newTestTracker(t)
	sup := newTestSupervisor(t, tracker, map[core.ProcessType]core.RetryPolicy{
		core.ProcessDocumentJob: instantPolicy(5),
	})

	proc, err := tracker.Start(StartRequest{Type: core.ProcessDocumentJob})
	require.NoError(t, err)

	calls := 0
	err = sup.Do(context.Background(), proc.ID, func(ctx context.Context) error {
		calls++
		require.NoError(t, tracker.Cancel(proc.ID))
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)

	got, err := tracker.Get(proc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, got.Status)
}

func TestSupervisorTimeoutMarksTimedOut(t *testing.T) {
	tracker := newTestTracker(t)
	sup := newTestSupervisor(t, tracker, map[core.ProcessType]core.RetryPolicy{
		core.ProcessRetrain: {
			MaxAttempts:  5,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			Base:         2,
			Timeout:      20 * time.Millisecond,
		},
	})

	proc, err := tracker.Start(StartRequest{Type: core.ProcessRetrain})
	require.NoError(t, err)

	err = sup.Do(context.Background(), proc.ID, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got, err := tracker.Get(proc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusTimedOut, got.Status)
}

func TestSupervisorNilOperation(t *testing.T) {
	tracker := newTestTracker(t)
	sup := newTestSupervisor(t, tracker, nil)

	err := sup.Do(context.Background(), "any", nil)
	assert.ErrorIs(t, err, ErrNilOperation)
}

func TestBackoffDelayCapsAtMax(t *testing.T) {
	policy := core.RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		Base:         2,
	}
	assert.Equal(t, time.Second, backoffDelay(policy, 1))
	assert.Equal(t, 2*time.Second, backoffDelay(policy, 2))
	assert.Equal(t, 4*time.Second, backoffDelay(policy, 3))
	assert.Equal(t, 5*time.Second, backoffDelay(policy, 4))
	assert.Equal(t, 5*time.Second, backoffDelay(policy, 10))
}

func TestBackoffDelayJitterBounded(t *testing.T) {
	policy := core.RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
		Base:         2,
		Jitter:       true,
	}
	for range 50 {
		d := backoffDelay(policy, 2)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, time.Second)
	}
}
