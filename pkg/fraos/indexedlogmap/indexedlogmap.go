// Package indexedlogmap layers a secondary key index on top of a fraos
// Database, so records can be looked up by an application-chosen key in
// addition to their sequence number.
package indexedlogmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/dcspark/chainvault/pkg/fraos"
)

// ErrKeyNotFound is returned by Get when the key has never been appended.
var ErrKeyNotFound = errors.New("indexedlogmap: key not found")

// IndexedLogMap appends values to a fraos.Database and mirrors
// key -> sequence number into a badger key index, so both ordered-by-seqno
// and lookup-by-key access patterns are available over the same log.
type IndexedLogMap struct {
	db    *fraos.Database
	index *badger.DB

	writeMu sync.Mutex
}

// Open opens (or creates, when writable) an IndexedLogMap rooted at dir: the
// underlying log's data and seqno files live directly in dir, the key index
// at dir/key_index. Any fraos.Option is forwarded to the underlying log (e.g.
// fraos.WithLogger, fraos.WithMetrics).
func Open(dir string, writable bool, opts ...fraos.Option) (*IndexedLogMap, error) {
	db, err := fraos.File(dir, writable, opts...)
	if err != nil {
		return nil, fmt.Errorf("indexedlogmap: open log: %w", err)
	}

	indexOpts := badger.DefaultOptions(filepath.Join(dir, "key_index")).WithLogger(nil)
	if !writable {
		indexOpts = indexOpts.WithReadOnly(true)
	}
	index, err := badger.Open(indexOpts)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("indexedlogmap: open key index: %w", err)
	}

	return &IndexedLogMap{db: db, index: index}, nil
}

// Append stores value under key and returns its assigned sequence number. If
// key was already present, its mapping is overwritten to point at the new
// record — the old record is left untouched in the log (fraos is
// append-only), only unreachable through Get.
func (m *IndexedLogMap) Append(key, value []byte) (int, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	seqno, err := m.db.PutSeqno(value)
	if err != nil {
		return 0, fmt.Errorf("indexedlogmap: append to log: %w", err)
	}

	err = m.index.Update(func(txn *badger.Txn) error {
		return txn.Set(append([]byte(nil), key...), encodeSeqno(seqno))
	})
	if err != nil {
		return 0, fmt.Errorf("indexedlogmap: index key: %w", err)
	}

	return seqno, nil
}

// Get returns the most recently appended value stored under key.
func (m *IndexedLogMap) Get(key []byte) ([]byte, bool, error) {
	seqno, ok, err := m.lookupSeqno(key)
	if err != nil || !ok {
		return nil, ok, err
	}

	value, ok, err := m.db.GetBySeqno(seqno)
	if err != nil {
		return nil, false, fmt.Errorf("indexedlogmap: read log at seqno %d: %w", seqno, err)
	}
	if !ok {
		return nil, false, fmt.Errorf("indexedlogmap: key index points at seqno %d, which is missing from the log: %w", seqno, fraos.ErrIndexFileDamaged)
	}
	return value, true, nil
}

func (m *IndexedLogMap) lookupSeqno(key []byte) (int, bool, error) {
	var seqno int
	var found bool

	err := m.index.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			seqno = decodeSeqno(val)
			return nil
		})
	})
	if err != nil {
		return 0, false, fmt.Errorf("indexedlogmap: lookup key: %w", err)
	}
	return seqno, found, nil
}

// Entry is one (key, value) pair yielded by IterFrom, in log insertion
// order.
type Entry struct {
	Key   []byte
	Value []byte
}

// IterFrom positions at the seqno that key maps to and yields the rest of
// the log in insertion order. Each entry carries the key whose current
// mapping points at that record's seqno; a record whose key has since been
// re-appended is no longer pointed at by any key and gets a nil Key. Per the
// underlying log's contract,
// the key index is consulted only to find the starting seqno — the walk
// itself follows Database.IterFromSeqno, never the key index's own (key)
// ordering.
func (m *IndexedLogMap) IterFrom(key []byte) ([]Entry, error) {
	startSeqno, ok, err := m.lookupSeqno(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	seqnoToKey, err := m.seqnoToKey()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	it := m.db.IterFromSeqno(startSeqno)
	for {
		value, ok, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("indexedlogmap: iterate log: %w", err)
		}
		if !ok {
			break
		}
		entries = append(entries, Entry{Key: seqnoToKey[startSeqno+len(entries)], Value: value})
	}

	return entries, nil
}

// seqnoToKey builds the reverse of the key index (seqno -> key) by
// scanning it once. The key index is small relative to the log (one entry
// per distinct live key, not per record), so a full scan per IterFrom call
// is acceptable.
func (m *IndexedLogMap) seqnoToKey() (map[int][]byte, error) {
	reverse := make(map[int][]byte)

	err := m.index.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()...)

			var seqno int
			if err := item.Value(func(val []byte) error {
				seqno = decodeSeqno(val)
				return nil
			}); err != nil {
				return err
			}
			reverse[seqno] = key
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("indexedlogmap: build reverse key index: %w", err)
	}
	return reverse, nil
}

// Len returns the number of records in the underlying log.
func (m *IndexedLogMap) Len() int { return m.db.Len() }

// Close closes both the log and the key index.
func (m *IndexedLogMap) Close() error {
	var firstErr error
	if err := m.index.Close(); err != nil {
		firstErr = err
	}
	if err := m.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func encodeSeqno(seqno int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(seqno))
	return buf
}

func decodeSeqno(buf []byte) int {
	return int(binary.BigEndian.Uint64(buf))
}
