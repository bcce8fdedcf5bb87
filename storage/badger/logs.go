// Copyright 2025 Poiesic Systems
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


package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/suchitkumarchennuri/logiq/core"
	"github.com/suchitkumarchennuri/logiq/storage"
)

// Store implements storage.LogStore on BadgerDB.
//
// Records are stored as MUS-encoded values under a common key prefix; IDs
// come from a Badger sequence. Similarity search scans the record prefix,
// applies the query filter, and scores each candidate with cosine distance.
// The embedding dimension is pinned under a meta key at bootstrap time.
type Store struct {
	backend   *Backend
	idSeq     *badger.Sequence
	bootMu    sync.Mutex
	dimension atomic.Int32
}

var _ storage.LogStore = (*Store)(nil)

// NewStore creates a log store on an open backend.
//
// Returns storage.LogStore to enforce abstraction. The caller remains
// responsible for closing the backend after closing the store.
func NewStore(backend *Backend) (storage.LogStore, error) {
	return newStore(backend)
}

func newStore(backend *Backend) (*Store, error) {
	idSeq, err := backend.GetSequence(logRecordIDSeq)
	if err != nil {
		return nil, err
	}

	return &Store{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (s *Store) Close() error {
	return s.idSeq.Release()
}

// Bootstrap pins the embedding dimension under the meta key. Calling it
// again, from any number of goroutines, is a no-op when the dimension
// matches and a configuration error when it doesn't.
func (s *Store) Bootstrap(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimension %d", storage.ErrDimensionMismatch, dimensions)
	}

	// The mutex serializes concurrent bootstraps within the process so the
	// read-check-write below never conflicts with itself; Badger databases
	// are single-process, so this is the only writer.
	s.bootMu.Lock()
	defer s.bootMu.Unlock()

	if current := s.dimension.Load(); current != 0 {
		if int(current) != dimensions {
			return fmt.Errorf("%w: store has %d, configured %d", storage.ErrDimensionMismatch, current, dimensions)
		}
		return nil
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(metaDimKey))
		if err == nil {
			var stored core.ID
			if err := item.Value(func(val []byte) error {
				stored, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}
			if int(stored) != dimensions {
				return fmt.Errorf("%w: store has %d, configured %d", storage.ErrDimensionMismatch, stored, dimensions)
			}
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := tx.Set([]byte(metaDimKey), storage.MarshalID(core.ID(dimensions))); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	s.dimension.Store(int32(dimensions))
	s.backend.logger.Debug("log store bootstrapped", "dimensions", dimensions)
	return nil
}

// dims returns the pinned embedding dimension, loading it from the meta key
// if the store was bootstrapped by an earlier process lifetime.
func (s *Store) dims() (int, error) {
	if d := s.dimension.Load(); d != 0 {
		return int(d), nil
	}

	var stored core.ID
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(metaDimKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			stored, err = storage.UnmarshalID(val)
			return err
		})
	}, false)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, storage.ErrNotBootstrapped
	}
	if err != nil {
		return 0, err
	}

	s.dimension.Store(int32(stored))
	return int(stored), nil
}

// Add atomically persists records with their embeddings. Every record must
// carry a vector of the bootstrapped dimension; otherwise nothing is written.
func (s *Store) Add(ctx context.Context, records ...*core.LogRecord) ([]*core.LogRecord, error) {
	dims, err := s.dims()
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if len(record.Vector) == 0 {
			return nil, storage.ErrMissingEmbedding
		}
		if len(record.Vector) != dims {
			return nil, fmt.Errorf("%w: record has %d, store has %d", storage.ErrDimensionMismatch, len(record.Vector), dims)
		}
	}

	err = s.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			// Always generate new ID from sequence
			nextID, err := s.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = s.idSeq.Next()
				if err != nil {
					return err
				}
			}
			record.Id = core.ID(nextID)

			if record.CreatedAt.IsZero() {
				record.CreatedAt = time.Now().UTC()
			}
			if record.Timestamp.IsZero() {
				record.Timestamp = record.CreatedAt
			}

			value, err := storage.MarshalLogRecord(record)
			if err != nil {
				return err
			}
			if err := tx.Set(makeLogRecordKey(record.Id), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Get retrieves a single log record by ID.
func (s *Store) Get(ctx context.Context, id core.ID) (*core.LogRecord, error) {
	var record *core.LogRecord

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeLogRecordKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			record, err = storage.UnmarshalLogRecord(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Search scans records matching the filter and returns the nearest by
// cosine distance, ascending, ties broken by most recent CreatedAt.
func (s *Store) Search(ctx context.Context, vector []float32, filter core.QueryFilter, limit int) ([]core.ScoredRecord, error) {
	dims, err := s.dims()
	if err != nil {
		return nil, err
	}
	if len(vector) != dims {
		return nil, fmt.Errorf("%w: query has %d, store has %d", storage.ErrDimensionMismatch, len(vector), dims)
	}
	if limit <= 0 {
		return []core.ScoredRecord{}, nil
	}

	var results []core.ScoredRecord

	err = s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(logRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var record *core.LogRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalLogRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if record == nil || !filter.Matches(record) {
				continue
			}

			distance, err := storage.CosineDistance(vector, record.Vector)
			if err != nil {
				return err
			}
			results = append(results, core.ScoredRecord{Record: record, Distance: distance})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	storage.SortScored(results)
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []core.ScoredRecord{}
	}
	return results, nil
}
