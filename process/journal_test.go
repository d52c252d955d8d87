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
	"testing"
	"time"

	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
	badgerstore "github.com/quarrylabs/quarry/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	backend, err := badgerstore.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	journal, err := NewJournal(backend)
	require.NoError(t, err)
	return journal
}

func TestJournalRecordAndGet(t *testing.T) {
	journal := newTestJournal(t)

	proc := &core.Process{
		ID:        "run-1",
		Type:      core.ProcessIngestionRun,
		Name:      "ingest /docs",
		Status:    core.StatusCompleted,
		Progress:  100,
		Message:   "done",
		Metadata:  map[string]string{"succeeded": "4", "failed": "1"},
		CreatedAt: time.Now().Add(-time.Minute),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, journal.Record(proc))

	got, err := journal.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, proc.ID, got.ID)
	assert.Equal(t, proc.Status, got.Status)
	assert.Equal(t, proc.Metadata, got.Metadata)
}

func TestJournalGetUnknown(t *testing.T) {
	journal := newTestJournal(t)

	_, err := journal.Get("ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJournalListNewestFirst(t *testing.T) {
	journal := newTestJournal(t)
	now := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, journal.Record(&core.Process{
			ID:        id,
			Type:      core.ProcessDocumentJob,
			Status:    core.StatusCompleted,
			UpdatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	procs, err := journal.List()
	require.NoError(t, err)
	require.Len(t, procs, 3)
	assert.Equal(t, "c", procs[0].ID)
	assert.Equal(t, "a", procs[2].ID)
}

func TestTrackerRecordsTerminalToJournal(t *testing.T) {
	journal := newTestJournal(t)
	tracker := newTestTracker(t, WithJournal(journal))

	proc, err := tracker.Start(StartRequest{ID: "job-9", Type: core.ProcessDocumentJob})
	require.NoError(t, err)
	_, err = tracker.Update(proc.ID, WithStatus(core.StatusFailed), WithMessage("boom"))
	require.NoError(t, err)

	got, err := journal.Get("job-9")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Message)
}
