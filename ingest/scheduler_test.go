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

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quarrylabs/quarry/ai/mock"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/process"
	badgerstore "github.com/quarrylabs/quarry/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, provider *mock.Provider) (*Scheduler, *process.Tracker) {
	t.Helper()

	tracker, err := process.NewTracker()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })

	sink := badgerstore.NewTestSink(t)
	pipeline, err := NewPipeline(provider, sink, tracker, WithChunking(200, 20))
	require.NoError(t, err)

	policies := process.NewPolicyTable(map[core.ProcessType]core.RetryPolicy{
		core.ProcessDocumentJob: {
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			Base:         2,
		},
	})
	supervisor, err := process.NewSupervisor(tracker, policies,
		process.WithSleeper(func(ctx context.Context, d time.Duration) error { return ctx.Err() }))
	require.NoError(t, err)

	scheduler, err := NewScheduler(pipeline, tracker, supervisor, WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(scheduler.Release)
	return scheduler, tracker
}

func writeTestFiles(t *testing.T, dir string, good, empty int) {
	t.Helper()
	for i := range good {
		path := filepath.Join(dir, fmt.Sprintf("doc-%d.txt", i))
		require.NoError(t, os.WriteFile(path, []byte(estimateText()), 0o644))
	}
	for i := range empty {
		path := filepath.Join(dir, fmt.Sprintf("empty-%d.txt", i))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
}

func TestSchedulerBatchMixedResults(t *testing.T) {
	scheduler, tracker := newTestScheduler(t, mock.NewProvider())

	dir := t.TempDir()
	writeTestFiles(t, dir, 3, 2)

	runID, err := scheduler.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, scheduler.Wait(runID))

	parent, err := tracker.Get(runID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, parent.Status)
	assert.Equal(t, 100, parent.Progress)
	assert.Equal(t, "3", parent.Metadata["succeeded"])
	assert.Equal(t, "2", parent.Metadata["failed"])
	assert.Equal(t, "0", parent.Metadata["pending"])
	assert.Equal(t, "indexed 3 of 5 documents", parent.Message)

	jobs := tracker.List(process.ListFilter{Types: []core.ProcessType{core.ProcessDocumentJob}})
	require.Len(t, jobs, 5)
	failed := 0
	for _, job := range jobs {
		require.True(t, job.Status.Terminal())
		if job.Status == core.StatusFailed {
			failed++
		}
	}
	assert.Equal(t, 2, failed)
}

func TestSchedulerAllDocumentsFailed(t *testing.T) {
	scheduler, tracker := newTestScheduler(t, mock.NewProvider())

	dir := t.TempDir()
	writeTestFiles(t, dir, 0, 2)

	runID, err := scheduler.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, scheduler.Wait(runID))

	parent, err := tracker.Get(runID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, parent.Status)
	assert.Equal(t, "all 2 documents failed", parent.Message)
}

func TestSchedulerEmptyDirectory(t *testing.T) {
	scheduler, tracker := newTestScheduler(t, mock.NewProvider())

	runID, err := scheduler.IngestDirectory(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.NoError(t, scheduler.Wait(runID))

	parent, err := tracker.Get(runID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, parent.Status)
	assert.Equal(t, "no documents found", parent.Message)
}

func TestSchedulerSkipsHiddenEntries(t *testing.T) {
	scheduler, tracker := newTestScheduler(t, mock.NewProvider())

	dir := t.TempDir()
	writeTestFiles(t, dir, 1, 0)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte(estimateText()), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "config"), []byte("x"), 0o644))

	runID, err := scheduler.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, scheduler.Wait(runID))

	parent, err := tracker.Get(runID)
	require.NoError(t, err)
	assert.Equal(t, "1", parent.Metadata["total"])
	assert.Equal(t, "1", parent.Metadata["succeeded"])
}

func TestSchedulerUnreadableDirectoryFailsBatch(t *testing.T) {
	scheduler, _ := newTestScheduler(t, mock.NewProvider())

	_, err := scheduler.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrBatchPrecondition)
}

func TestSchedulerSingleFile(t *testing.T) {
	scheduler, tracker := newTestScheduler(t, mock.NewProvider())

	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(estimateText()), 0o644))

	runID, err := scheduler.IngestFile(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, scheduler.Wait(runID))

	parent, err := tracker.Get(runID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, parent.Status)
	assert.Equal(t, "1", parent.Metadata["succeeded"])
}

func TestSchedulerUnreadableFileCountsAsFailed(t *testing.T) {
	scheduler, tracker := newTestScheduler(t, mock.NewProvider())

	runID, err := scheduler.IngestFiles(context.Background(),
		[]string{filepath.Join(t.TempDir(), "missing.txt")})
	require.NoError(t, err)
	require.NoError(t, scheduler.Wait(runID))

	parent, err := tracker.Get(runID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, parent.Status)
	assert.Equal(t, "1", parent.Metadata["failed"])
}

func TestSchedulerReleasesFinishedRuns(t *testing.T) {
	scheduler, _ := newTestScheduler(t, mock.NewProvider())

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(estimateText()), 0o644))

	runIDs := make([]string, 0, 10)
	for range 10 {
		runID, err := scheduler.IngestFile(context.Background(), path)
		require.NoError(t, err)
		require.NoError(t, scheduler.Wait(runID))
		runIDs = append(runIDs, runID)
	}

	scheduler.mu.Lock()
	retained := len(scheduler.runs)
	scheduler.mu.Unlock()
	assert.Zero(t, retained, "finished runs must not accumulate")

	// A pruned run is still waitable through its process record.
	for _, runID := range runIDs {
		assert.NoError(t, scheduler.Wait(runID))
	}
}

func TestSchedulerWaitUnknownRun(t *testing.T) {
	scheduler, _ := newTestScheduler(t, mock.NewProvider())

	err := scheduler.Wait("no-such-run")
	assert.ErrorIs(t, err, ErrUnknownRun)
}

func TestSchedulerReleasedRejectsSubmissions(t *testing.T) {
	scheduler, _ := newTestScheduler(t, mock.NewProvider())
	scheduler.Release()

	_, err := scheduler.IngestFile(context.Background(), "whatever.txt")
	assert.ErrorIs(t, err, ErrSchedulerReleased)
}

func TestSchedulerCancelRunStopsChildren(t *testing.T) {
	provider := mock.NewProvider()
	started := make(chan struct{}, 8)
	provider.Primary.DecodeTextFunc = func(ctx context.Context, _ string, _ []byte) (string, error) {
		started <- struct{}{}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(10 * time.Second):
			return estimateText(), nil
		}
	}
	scheduler, tracker := newTestScheduler(t, provider)

	dir := t.TempDir()
	writeTestFiles(t, dir, 4, 0)

	runID, err := scheduler.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	// Wait for at least one document to be mid-extraction, then cancel
	// the whole run.
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("no document started")
	}
	require.NoError(t, tracker.Cancel(runID))
	require.NoError(t, scheduler.Wait(runID))

	parent, err := tracker.Get(runID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, parent.Status)

	for _, job := range tracker.List(process.ListFilter{Types: []core.ProcessType{core.ProcessDocumentJob}}) {
		assert.True(t, job.Status.Terminal(), "job %s left in %s", job.ID, job.Status)
		assert.NotEqual(t, core.StatusCompleted, job.Status)
	}
}
