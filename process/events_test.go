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
	"fmt"
	"testing"
	"time"

	"github.com/quarrylabs/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, ch <-chan core.ProcessEvent) core.ProcessEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return core.ProcessEvent{}
	}
}

func TestSubscribeDeliversSnapshotThenUpdates(t *testing.T) {
	tracker := newTestTracker(t)

	proc, err := tracker.Start(StartRequest{Type: core.ProcessIngestionRun})
	require.NoError(t, err)

	ch, cancel, err := tracker.Subscribe(proc.ID)
	require.NoError(t, err)
	defer cancel()

	first := recvEvent(t, ch)
	assert.Equal(t, core.StatusPending, first.Status)

	_, err = tracker.Update(proc.ID, WithStatus(core.StatusRunning), WithProgress(40))
	require.NoError(t, err)

	second := recvEvent(t, ch)
	assert.Equal(t, core.StatusRunning, second.Status)
	assert.Equal(t, 40, second.Progress)
}

func TestSubscribeSeedExcludesConcurrentPublish(t *testing.T) {
	bus := newEventBus()

	seeding := make(chan struct{})
	finish := make(chan struct{})
	subs := make(chan *subscriber, 1)
	go func() {
		sub, err := bus.subscribeSeeded("p1", func() (core.ProcessEvent, error) {
			close(seeding)
			<-finish
			return core.ProcessEvent{ID: "p1", Progress: 1}, nil
		})
		assert.NoError(t, err)
		subs <- sub
	}()

	<-seeding
	published := make(chan struct{})
	go func() {
		bus.publish(core.ProcessEvent{ID: "p1", Progress: 2})
		close(published)
	}()

	// While the snapshot is being read, any publish has to wait.
	select {
	case <-published:
		t.Fatal("publish interleaved with subscription seeding")
	case <-time.After(50 * time.Millisecond):
	}

	close(finish)
	sub := <-subs
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for publish")
	}

	first := recvEvent(t, sub.ch)
	assert.Equal(t, 1, first.Progress)
	second := recvEvent(t, sub.ch)
	assert.Equal(t, 2, second.Progress)
}

func TestSubscribeUnknownID(t *testing.T) {
	tracker := newTestTracker(t)

	_, _, err := tracker.Subscribe("ghost")
	assert.ErrorIs(t, err, core.ErrUnknownProcessID)
}

func TestSubscribeFiltersOtherProcesses(t *testing.T) {
	tracker := newTestTracker(t)

	watched, err := tracker.Start(StartRequest{Type: core.ProcessQuery})
	require.NoError(t, err)
	other, err := tracker.Start(StartRequest{Type: core.ProcessQuery})
	require.NoError(t, err)

	ch, cancel, err := tracker.Subscribe(watched.ID)
	require.NoError(t, err)
	defer cancel()

	recvEvent(t, ch) // snapshot

	_, err = tracker.Update(other.ID, WithStatus(core.StatusRunning))
	require.NoError(t, err)
	_, err = tracker.Update(watched.ID, WithStatus(core.StatusCompleted))
	require.NoError(t, err)

	ev := recvEvent(t, ch)
	assert.Equal(t, watched.ID, ev.ID)
	assert.Equal(t, core.StatusCompleted, ev.Status)
}

func TestSlowSubscriberCoalescesToNewest(t *testing.T) {
	tracker := newTestTracker(t)

	proc, err := tracker.Start(StartRequest{Type: core.ProcessRetrain})
	require.NoError(t, err)

	ch, cancel, err := tracker.Subscribe(proc.ID)
	require.NoError(t, err)
	defer cancel()

	// Flood well past the buffer without draining.
	for i := 1; i <= subscriberBuffer*4; i++ {
		_, err = tracker.Update(proc.ID,
			WithProgress(i%100),
			WithMeta("tick", fmt.Sprintf("%d", i)))
		require.NoError(t, err)
	}
	_, err = tracker.Update(proc.ID, WithStatus(core.StatusCompleted))
	require.NoError(t, err)

	// Drain everything buffered; the final event must have survived.
	var last core.ProcessEvent
	for {
		select {
		case ev := <-ch:
			last = ev
			continue
		default:
		}
		break
	}
	assert.Equal(t, core.StatusCompleted, last.Status)
}

func TestSubscribeAllSeesEveryProcess(t *testing.T) {
	tracker := newTestTracker(t)

	a, err := tracker.Start(StartRequest{Type: core.ProcessIngestionRun})
	require.NoError(t, err)
	b, err := tracker.Start(StartRequest{Type: core.ProcessDocumentJob})
	require.NoError(t, err)

	ch, cancel := tracker.SubscribeAll()
	defer cancel()

	seen := map[string]bool{}
	seen[recvEvent(t, ch).ID] = true
	seen[recvEvent(t, ch).ID] = true
	assert.True(t, seen[a.ID])
	assert.True(t, seen[b.ID])
}

func TestCancelledSubscriptionClosesChannel(t *testing.T) {
	tracker := newTestTracker(t)

	proc, err := tracker.Start(StartRequest{Type: core.ProcessQuery})
	require.NoError(t, err)

	ch, cancel, err := tracker.Subscribe(proc.ID)
	require.NoError(t, err)
	recvEvent(t, ch)
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
}
