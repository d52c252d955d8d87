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
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
	badgerstore "github.com/quarrylabs/quarry/storage/badger"
)

// Recorder receives the final snapshot of every terminal process.
type Recorder interface {
	Record(p *core.Process) error
}

const journalPrefix = "procj"

// Journal persists terminal process snapshots in badger so run history
// survives restarts and the tracker's reaper.
type Journal struct {
	backend *badgerstore.Backend
}

var _ Recorder = (*Journal)(nil)

// NewJournal creates a journal on the given backend.
func NewJournal(backend *badgerstore.Backend) (*Journal, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &Journal{backend: backend}, nil
}

func journalKey(id string) []byte {
	return []byte(journalPrefix + ":" + id)
}

// Record stores the process snapshot, overwriting any prior record
// under the same id.
func (j *Journal) Record(p *core.Process) error {
	if p == nil {
		return errors.New("process required")
	}
	buf := make([]byte, core.ProcessMUS.Size(*p))
	core.ProcessMUS.Marshal(*p, buf)

	return j.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(journalKey(p.ID), buf); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Get returns the recorded snapshot for the id, or storage.ErrNotFound.
func (j *Journal) Get(id string) (*core.Process, error) {
	var proc core.Process
	err := j.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(journalKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			p, _, err := core.ProcessMUS.Unmarshal(val)
			if err != nil {
				return fmt.Errorf("corrupt journal record %s: %w", id, err)
			}
			proc = p
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return &proc, nil
}

// List returns all recorded processes, most recently updated first.
func (j *Journal) List() ([]*core.Process, error) {
	var procs []*core.Process
	err := j.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(journalPrefix + ":")
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				p, _, err := core.ProcessMUS.Unmarshal(val)
				if err != nil {
					return fmt.Errorf("corrupt journal record %s: %w", it.Item().Key(), err)
				}
				procs = append(procs, &p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sort.Slice(procs, func(i, j int) bool {
		if !procs[i].UpdatedAt.Equal(procs[j].UpdatedAt) {
			return procs[i].UpdatedAt.After(procs[j].UpdatedAt)
		}
		return procs[i].ID < procs[j].ID
	})
	return procs, nil
}
