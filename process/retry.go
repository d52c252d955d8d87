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
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/quarrylabs/quarry/core"
)

// Supervisor re-invokes failing operations under the retry policy of
// their process type. It records every attempt and the last error on
// the tracked process, marks the process failed when the policy is
// exhausted, and enforces the per-type timeout.
//
// The supervisor never marks success; whoever owns the process decides
// when it is completed.
type Supervisor struct {
	tracker  *Tracker
	policies *PolicyTable
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor) error

// WithSupervisorLogger sets the logger used by the supervisor.
func WithSupervisorLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithSleeper overrides how the supervisor waits between attempts.
// Intended for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) SupervisorOption {
	return func(s *Supervisor) error {
		if sleep == nil {
			return fmt.Errorf("sleeper must not be nil")
		}
		s.sleep = sleep
		return nil
	}
}

// NewSupervisor creates a retry supervisor bound to the tracker.
func NewSupervisor(tracker *Tracker, policies *PolicyTable, opts ...SupervisorOption) (*Supervisor, error) {
	if tracker == nil {
		return nil, fmt.Errorf("tracker must not be nil")
	}
	s := &Supervisor{
		tracker:  tracker,
		policies: policies,
		logger:   slog.Default().With("component", "retry-supervisor"),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Do runs op under the retry policy of the process's type. The process
// must already be registered; Do transitions it from pending to running,
// stamps attempt and last_error metadata on every try, and leaves it
// failed or timed out on defeat. On success the process is left running
// for the caller to complete.
func (s *Supervisor) Do(ctx context.Context, id string, op func(ctx context.Context) error) error {
	if op == nil {
		return ErrNilOperation
	}

	proc, err := s.tracker.Get(id)
	if err != nil {
		return err
	}
	if proc.Status.Terminal() {
		if proc.Status == core.StatusCancelled {
			return context.Canceled
		}
		return fmt.Errorf("process %s is already %s", id, proc.Status)
	}

	policy := s.policies.For(proc.Type)
	if policy.MaxAttempts <= 0 {
		return fmt.Errorf("policy for %s has no attempts", proc.Type)
	}

	runCtx := ctx
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	// Cancelling the process aborts in-flight work through the context.
	done, err := s.tracker.Done(id)
	if err != nil {
		return err
	}
	runCtx, stop := context.WithCancel(runCtx)
	defer stop()
	go func() {
		select {
		case <-done:
			stop()
		case <-runCtx.Done():
		}
	}()

	if _, err := s.tracker.Update(id, WithStatus(core.StatusRunning)); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if _, err := s.tracker.Update(id, WithMeta("attempt", strconv.Itoa(attempt))); err != nil {
			return err
		}

		lastErr = op(runCtx)
		if lastErr == nil {
			if attempt > 1 {
				s.logger.Debug("operation succeeded after retry", "id", id, "attempt", attempt)
			}
			return nil
		}

		if _, err := s.tracker.Update(id, WithMeta("last_error", lastErr.Error())); err != nil {
			return err
		}
		s.logger.Debug("attempt failed",
			"id", id, "attempt", attempt, "max_attempts", policy.MaxAttempts, "error", lastErr)

		if stopErr := s.classifyInterrupt(ctx, runCtx, id, lastErr); stopErr != nil {
			return stopErr
		}

		if !core.IsRecoverable(lastErr) {
			s.fail(id, lastErr)
			return lastErr
		}

		if attempt == policy.MaxAttempts {
			break
		}

		if err := s.sleep(runCtx, backoffDelay(policy, attempt)); err != nil {
			if stopErr := s.classifyInterrupt(ctx, runCtx, id, err); stopErr != nil {
				return stopErr
			}
			return err
		}
	}

	s.fail(id, lastErr)
	return fmt.Errorf("%w after %d attempts: %w", core.ErrPolicyExhausted, policy.MaxAttempts, lastErr)
}

// classifyInterrupt turns a context interruption into its terminal
// outcome: a cancelled process stays cancelled, an exceeded policy
// timeout marks the process timed out. Returns nil when the run may
// continue.
func (s *Supervisor) classifyInterrupt(parent, runCtx context.Context, id string, cause error) error {
	if runCtx.Err() == nil {
		return nil
	}

	if proc, err := s.tracker.Get(id); err == nil && proc.Status == core.StatusCancelled {
		return context.Canceled
	}
	if parent.Err() != nil {
		// The caller's context died; leave status to the caller.
		return parent.Err()
	}

	s.logger.Warn("process timed out", "id", id, "error", cause)
	_, _ = s.tracker.Update(id,
		WithStatus(core.StatusTimedOut),
		WithMessage("timed out"))
	return fmt.Errorf("process %s timed out: %w", id, context.DeadlineExceeded)
}

func (s *Supervisor) fail(id string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, _ = s.tracker.Update(id,
		WithStatus(core.StatusFailed),
		WithMessage(msg))
}

// backoffDelay computes the wait before the next attempt:
// min(maxDelay, initialDelay*base^(attempt-1)), drawn uniformly from
// [0, delay) when jitter is enabled.
func backoffDelay(policy core.RetryPolicy, attempt int) time.Duration {
	base := policy.Base
	if base <= 1 {
		base = 2
	}
	d := time.Duration(float64(policy.InitialDelay) * math.Pow(base, float64(attempt-1)))
	if policy.MaxDelay > 0 && d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	if d < 0 {
		d = policy.MaxDelay
	}
	if policy.Jitter && d > 0 {
		d = time.Duration(rand.Int64N(int64(d)))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
