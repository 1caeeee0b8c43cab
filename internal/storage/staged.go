package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// A batch too large for one badger transaction is committed in three steps:
//
//  1. its pages are written under a staging prefix, invisible to readers;
//  2. a commit marker naming the staged set is written in one small
//     transaction, which is the commit point;
//  3. staged pages are copied over the live pages, the truncation is
//     applied, then the marker and the staging keys are removed.
//
// A marker found at open means step 3 was interrupted and is redone.
// Staging keys without a marker belong to a batch that never committed.

type commitMarker struct {
	id       uint64
	truncate *uint32
}

const markerSize = 8 + 1 + 4

func (m commitMarker) encode() []byte {
	b := make([]byte, markerSize)
	binary.BigEndian.PutUint64(b, m.id)
	if m.truncate != nil {
		b[8] = 1
		binary.BigEndian.PutUint32(b[9:], *m.truncate)
	}
	return b
}

func decodeCommitMarker(b []byte) (commitMarker, error) {
	if len(b) != markerSize {
		return commitMarker{}, fmt.Errorf("storage: commit marker is %d bytes, want %d", len(b), markerSize)
	}
	m := commitMarker{id: binary.BigEndian.Uint64(b)}
	if b[8] == 1 {
		n := binary.BigEndian.Uint32(b[9:])
		m.truncate = &n
	}
	return m, nil
}

// writeBatch runs fill against a badger WriteBatch, which splits its
// writes over as many transactions as needed, and flushes it.
func (e *BadgerEngine) writeBatch(fill func(wb *badger.WriteBatch) error) error {
	wb := e.db.NewWriteBatch()
	if err := fill(wb); err != nil {
		wb.Cancel()
		return err
	}
	return wb.Flush()
}

func (e *BadgerEngine) applyStaged(db string, batch PageBatch) error {
	m := commitMarker{id: e.stageSeq.Add(1), truncate: batch.TruncateTo}

	err := e.writeBatch(func(wb *badger.WriteBatch) error {
		for index, page := range batch.Pages {
			if err := wb.Set(stageKey(db, m.id, index), e.codec.encode(page)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.dropStaged(stagePrefix(db, m.id))
		return fmt.Errorf("badger: stage %d pages of %s: %w", len(batch.Pages), db, err)
	}

	err = e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(markerKey(db), m.encode())
	})
	if err != nil {
		e.dropStaged(stagePrefix(db, m.id))
		return fmt.Errorf("badger: mark commit of %s: %w", db, err)
	}

	if err := e.finishCommit(db, m); err != nil {
		return fmt.Errorf("badger: apply staged commit of %s: %w", db, err)
	}
	e.logger.Debug("staged commit applied", "db", db, "pages", len(batch.Pages))
	return nil
}

// finishCommit copies the staged pages of m over the live pages of db and
// clears the marker. It is idempotent.
func (e *BadgerEngine) finishCommit(db string, m commitMarker) error {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	prefix := stagePrefix(db, m.id)
	err := e.writeBatch(func(wb *badger.WriteBatch) error {
		return e.db.View(func(txn *badger.Txn) error {
			staged := make(map[uint32]struct{})

			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				key := item.Key()
				if len(key) != len(prefix)+4 {
					continue
				}
				index := binary.BigEndian.Uint32(key[len(prefix):])
				value, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				if err := wb.Set(PageKey(db, index), value); err != nil {
					return err
				}
				staged[index] = struct{}{}
			}

			if m.truncate == nil {
				return nil
			}
			popts := badger.DefaultIteratorOptions
			popts.PrefetchValues = false
			popts.Prefix = PagePrefix(db)
			pit := txn.NewIterator(popts)
			defer pit.Close()
			for pit.Seek(PageKey(db, *m.truncate)); pit.Valid(); pit.Next() {
				_, index, err := ParsePageKey(pit.Item().Key())
				if err != nil {
					return err
				}
				// Each key is touched once: the write batch may commit a
				// set and a delete of one key in either order.
				if _, ok := staged[index]; ok {
					continue
				}
				if err := wb.Delete(pit.Item().KeyCopy(nil)); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	if err := e.db.Update(func(txn *badger.Txn) error { return txn.Delete(markerKey(db)) }); err != nil {
		return err
	}
	e.dropStaged(prefix)
	return nil
}

// dropStaged removes staging keys under prefix. Leftovers are harmless
// and removed at the next open.
func (e *BadgerEngine) dropStaged(prefix []byte) {
	keys, err := e.keysWithPrefix(prefix)
	if err == nil {
		err = e.writeBatch(func(wb *badger.WriteBatch) error {
			for _, k := range keys {
				if err := wb.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err != nil {
		e.logger.Warn("dropping staged pages failed", "error", err)
	}
}

func (e *BadgerEngine) keysWithPrefix(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// recoverCommits finishes commits interrupted after their marker was
// written and discards staging keys of commits that never got one.
func (e *BadgerEngine) recoverCommits() error {
	markers := make(map[string]commitMarker)
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(markerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			db, err := parseMarkerKey(it.Item().Key())
			if err != nil {
				return err
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			m, err := decodeCommitMarker(value)
			if err != nil {
				return fmt.Errorf("%s: %w", db, err)
			}
			markers[db] = m
		}
		return nil
	})
	if err != nil {
		return err
	}

	for db, m := range markers {
		e.logger.Warn("completing interrupted commit", "db", db)
		if err := e.finishCommit(db, m); err != nil {
			return fmt.Errorf("%s: %w", db, err)
		}
	}

	orphans, err := e.keysWithPrefix([]byte(stageKeyPrefix))
	if err != nil {
		return err
	}
	if len(orphans) > 0 {
		e.logger.Warn("discarding staged pages of uncommitted batches", "keys", len(orphans))
		e.dropStaged([]byte(stageKeyPrefix))
	}
	return nil
}
