package storage

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/klingnet-walletstore/internal/log"
	"github.com/dgraph-io/badger/v4"
)

// BadgerOptions tunes the Badger backend.
type BadgerOptions struct {
	// InMemory keeps all data in memory; Path is ignored.
	InMemory bool
	// SyncWrites fsyncs every write before returning.
	SyncWrites bool
}

// BadgerDB implements DB using Badger.
type BadgerDB struct {
	db *badger.DB
}

// NewBadger creates a new Badger database at the given path.
func NewBadger(path string) (*BadgerDB, error) {
	return NewBadgerWithOptions(path, BadgerOptions{})
}

// NewBadgerWithOptions creates a Badger database with the given options.
func NewBadgerWithOptions(path string, o BadgerOptions) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(o.SyncWrites)
	opts.Logger = nil // Disable badger's built-in logging.

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("database at %s is locked by another process: %w", path, err)
		}
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	log.Storage.Debug().
		Str("path", path).
		Bool("in_memory", o.InMemory).
		Bool("sync_writes", o.SyncWrites).
		Msg("Opened badger database")
	return &BadgerDB{db: db}, nil
}

// Get retrieves a value by key. Returns ErrNotFound if the key does not exist.
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return val, nil
}

// Put stores a key-value pair.
func (b *BadgerDB) Put(key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

// Delete removes a key.
func (b *BadgerDB) Delete(key []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Has checks if a key exists.
func (b *BadgerDB) Has(key []byte) (bool, error) {
	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger has: %w", err)
	}
	return exists, nil
}

// ForEach iterates over all keys with the given prefix.
func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

// NewIterator returns a cursor over [start, end) inside a read-only
// transaction. The transaction is discarded on Close.
func (b *BadgerDB) NewIterator(start, end []byte, reverse bool) Iterator {
	txn := b.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = reverse
	return &badgerIterator{
		txn:     txn,
		it:      txn.NewIterator(opts),
		start:   start,
		end:     end,
		reverse: reverse,
	}
}

// NewBatch returns a batch committed atomically through a WriteBatch.
func (b *BadgerDB) NewBatch() Batch {
	return &badgerBatch{wb: b.db.NewWriteBatch()}
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}

type badgerIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	start   []byte
	end     []byte
	reverse bool

	started bool
	done    bool
	key     []byte
	val     []byte
	err     error
}

func (i *badgerIterator) Next() bool {
	if i.done {
		return false
	}
	if !i.started {
		i.started = true
		i.seek()
	} else {
		i.it.Next()
	}

	for ; i.it.Valid(); i.it.Next() {
		item := i.it.Item()
		k := item.Key()
		if i.reverse {
			// Seek lands on the largest key <= end; end itself is excluded.
			if i.end != nil && bytes.Compare(k, i.end) >= 0 {
				continue
			}
			if i.start != nil && bytes.Compare(k, i.start) < 0 {
				break
			}
		} else if i.end != nil && bytes.Compare(k, i.end) >= 0 {
			break
		}

		i.key = item.KeyCopy(nil)
		i.val, i.err = item.ValueCopy(nil)
		if i.err != nil {
			i.done = true
			return false
		}
		return true
	}
	i.done = true
	return false
}

func (i *badgerIterator) seek() {
	switch {
	case i.reverse && i.end != nil:
		i.it.Seek(i.end)
	case !i.reverse && i.start != nil:
		i.it.Seek(i.start)
	default:
		i.it.Rewind()
	}
}

func (i *badgerIterator) Key() []byte   { return i.key }
func (i *badgerIterator) Value() []byte { return i.val }
func (i *badgerIterator) Err() error    { return i.err }

func (i *badgerIterator) Close() error {
	if i.it == nil {
		return nil
	}
	i.it.Close()
	i.txn.Discard()
	i.it = nil
	i.done = true
	return nil
}

type badgerBatch struct {
	wb *badger.WriteBatch
}

func (bb *badgerBatch) Put(key, value []byte) error {
	return bb.wb.Set(key, value)
}

func (bb *badgerBatch) Delete(key []byte) error {
	return bb.wb.Delete(key)
}

func (bb *badgerBatch) Commit() error {
	if err := bb.wb.Flush(); err != nil {
		return fmt.Errorf("badger batch commit: %w", err)
	}
	return nil
}

func (bb *badgerBatch) Cancel() {
	bb.wb.Cancel()
}
