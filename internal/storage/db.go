// Package storage provides ordered key-value database abstractions.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for ordered key-value storage. Keys sort byte-wise.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates in key order over all keys with the given prefix.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	// NewIterator returns a cursor over keys in [start, end). A nil start
	// means the first key, a nil end means past the last key. With reverse
	// set the cursor walks from the largest key down. The iterator must be
	// closed.
	NewIterator(start, end []byte, reverse bool) Iterator
	Close() error
}

// Iterator is a pull cursor over an ordered key range.
//
//	it := db.NewIterator(start, end, false)
//	defer it.Close()
//	for it.Next() {
//		use(it.Key(), it.Value())
//	}
//	return it.Err()
type Iterator interface {
	// Next advances to the next entry and reports whether one exists.
	Next() bool
	// Key returns the current key. Valid until the next call to Next.
	Key() []byte
	// Value returns the current value. Valid until the next call to Next.
	Value() []byte
	Err() error
	// Close releases the iterator. It is safe to call more than once.
	Close() error
}

// Batch groups writes that are committed together. A batch must end with
// either Commit or Cancel.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	// Cancel drops the buffered writes and releases the batch.
	Cancel()
}

// Batcher is implemented by databases that can commit batches atomically.
type Batcher interface {
	NewBatch() Batch
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil if no such key exists (prefix is all 0xff).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// DeletePrefix removes every key with the given prefix from db.
func DeletePrefix(db DB, prefix []byte) error {
	// Collect all keys first to avoid modifying during iteration.
	var keys [][]byte
	err := db.ForEach(prefix, func(key, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := db.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
