package multiverse

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/dcspark/chainvault/internal/logger"
)

// Codec tells the persistent mirror how to turn a key and value into bytes
// and back. It is supplied by the caller rather than expressed as a type
// constraint on K/V because Go generics can't cleanly require "K produces
// bytes" alongside the Block[K] constraint without forcing every caller's
// key type to implement an extra interface.
type Codec[K comparable, V any] struct {
	EncodeKey   func(K) []byte
	EncodeValue func(V) ([]byte, error)
	DecodeValue func([]byte) (V, error)
}

// persistence mirrors a Multiverse's blocks into an embedded key-value
// store, keyed by big-endian block number concatenated with the encoded
// block id — so an ordered badger iteration yields blocks in block-number
// order, with parents always preceding their children.
type persistence[K comparable, V any] struct {
	db    *badger.DB
	codec Codec[K, V]
}

func mkKey[K comparable, V any](codec Codec[K, V], blockNumber uint64, id K) []byte {
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, blockNumber)
	return append(append(prefix, '-'), codec.EncodeKey(id)...)
}

// insert writes v under its key if blockNumber >= storeFrom, returning
// whether the key was newly written (false if it was already present, or
// if blockNumber fell below storeFrom and nothing was written at all).
func (p *persistence[K, V]) insert(blockNumber uint64, id K, v V, storeFrom uint64) (bool, error) {
	if blockNumber < storeFrom {
		return false, nil
	}

	key := mkKey(p.codec, blockNumber, id)
	value, err := p.codec.EncodeValue(v)
	if err != nil {
		return false, fmt.Errorf("multiverse: encode value: %w", err)
	}

	newlyInserted := false
	err = p.db.Update(func(txn *badger.Txn) error {
		_, getErr := txn.Get(key)
		if getErr == badger.ErrKeyNotFound {
			newlyInserted = true
		} else if getErr != nil {
			return getErr
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return false, fmt.Errorf("multiverse: persist insert: %w", err)
	}
	return newlyInserted, nil
}

func (p *persistence[K, V]) remove(blockNumber uint64, id K) error {
	key := mkKey(p.codec, blockNumber, id)
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("multiverse: persist remove: %w", err)
	}
	return nil
}

func (p *persistence[K, V]) clear() error {
	return p.db.DropAll()
}

func (p *persistence[K, V]) close() error {
	return p.db.Close()
}

// loadAll iterates the persisted tree in key order (== block-number order,
// by construction of mkKey) and returns the decoded values.
func (p *persistence[K, V]) loadAll() ([]V, error) {
	var values []V

	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var v V
			if err := item.Value(func(val []byte) error {
				decoded, err := p.codec.DecodeValue(val)
				if err != nil {
					return err
				}
				v = decoded
				return nil
			}); err != nil {
				return err
			}
			values = append(values, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("multiverse: load persisted entries: %w", err)
	}
	return values, nil
}

// Open opens a Multiverse whose persistent mirror lives at path, restoring
// any previously persisted blocks into memory.
func Open[K comparable, V Block[K]](path string, storeFrom uint64, codec Codec[K, V], opts ...Option[K, V]) (*Multiverse[K, V], error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("multiverse: open persistent mirror: %w", err)
	}
	return loadFrom(db, storeFrom, codec, opts)
}

// Temporary opens a Multiverse backed by an in-memory badger instance — the
// persisted mirror never touches disk and is gone once the process exits.
// It exists for tests and dry runs, not production use.
func Temporary[K comparable, V Block[K]](codec Codec[K, V], opts ...Option[K, V]) (*Multiverse[K, V], error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("multiverse: open temporary mirror: %w", err)
	}
	return loadFrom(db, 0, codec, opts)
}

func loadFrom[K comparable, V Block[K]](db *badger.DB, storeFrom uint64, codec Codec[K, V], opts []Option[K, V]) (*Multiverse[K, V], error) {
	m := New[K, V](opts...)
	m.storeFrom = storeFrom
	m.persist = &persistence[K, V]{db: db, codec: codec}

	values, err := m.persist.loadAll()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, v := range values {
		if err := m.insertInMemory(v.ID(), v.ParentID(), v.BlockNumber(), v); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	m.log.Debug("loaded persisted multiverse", logger.RecordCount(len(values)))

	return m, nil
}
