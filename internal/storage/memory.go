package storage

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

// memoryDegree is the btree node degree used by MemoryDB.
const memoryDegree = 32

type memEntry struct {
	key   []byte
	value []byte
}

func memLess(a, b memEntry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// MemoryDB implements DB using an in-memory ordered btree.
type MemoryDB struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[memEntry]
}

// NewMemory creates a new in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{
		tree: btree.NewG(memoryDegree, memLess),
	}
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Get retrieves a value by key.
func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.tree.Get(memEntry{key: key})
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(e.value), nil
}

// Put stores a key-value pair.
func (m *MemoryDB) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.ReplaceOrInsert(memEntry{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

// Delete removes a key.
func (m *MemoryDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Delete(memEntry{key: key})
	return nil
}

// Has checks if a key exists.
func (m *MemoryDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Has(memEntry{key: key}), nil
}

// ForEach iterates over all keys with the given prefix in key order.
func (m *MemoryDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	it := m.NewIterator(prefix, PrefixEnd(prefix), false)
	defer it.Close()
	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Err()
}

// NewIterator returns a cursor over [start, end) on a snapshot of the tree.
// Writes made after the call are not visible to the iterator.
func (m *MemoryDB) NewIterator(start, end []byte, reverse bool) Iterator {
	m.mu.Lock()
	snap := m.tree.Clone()
	m.mu.Unlock()
	return &memIterator{tree: snap, start: start, end: end, reverse: reverse}
}

// NewBatch returns a batch applied under a single write lock.
func (m *MemoryDB) NewBatch() Batch {
	return &memBatch{db: m}
}

// Len returns the number of keys in the database.
func (m *MemoryDB) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

// Close closes the database.
func (m *MemoryDB) Close() error {
	return nil
}

// memIterator steps through the snapshot one O(log n) lookup at a time so
// nothing beyond the current entry is materialized.
type memIterator struct {
	tree    *btree.BTreeG[memEntry]
	start   []byte
	end     []byte
	reverse bool

	started bool
	cur     *memEntry
}

func (i *memIterator) Next() bool {
	if i.tree == nil {
		return false
	}
	var next *memEntry
	take := func(e memEntry) bool {
		next = &e
		return false
	}

	if i.reverse {
		switch {
		case i.started:
			i.tree.DescendLessOrEqual(*i.cur, func(e memEntry) bool {
				if bytes.Equal(e.key, i.cur.key) {
					return true
				}
				return take(e)
			})
		case i.end != nil:
			i.tree.DescendLessOrEqual(memEntry{key: i.end}, func(e memEntry) bool {
				if bytes.Equal(e.key, i.end) {
					return true
				}
				return take(e)
			})
		default:
			i.tree.Descend(take)
		}
		if next != nil && i.start != nil && bytes.Compare(next.key, i.start) < 0 {
			next = nil
		}
	} else {
		switch {
		case i.started:
			i.tree.AscendGreaterOrEqual(*i.cur, func(e memEntry) bool {
				if bytes.Equal(e.key, i.cur.key) {
					return true
				}
				return take(e)
			})
		case i.start != nil:
			i.tree.AscendGreaterOrEqual(memEntry{key: i.start}, take)
		default:
			i.tree.Ascend(take)
		}
		if next != nil && i.end != nil && bytes.Compare(next.key, i.end) >= 0 {
			next = nil
		}
	}

	i.started = true
	if next == nil {
		i.tree = nil
		return false
	}
	i.cur = next
	return true
}

func (i *memIterator) Key() []byte {
	if i.cur == nil {
		return nil
	}
	return cloneBytes(i.cur.key)
}

func (i *memIterator) Value() []byte {
	if i.cur == nil {
		return nil
	}
	return cloneBytes(i.cur.value)
}

func (i *memIterator) Err() error { return nil }

func (i *memIterator) Close() error {
	i.tree = nil
	return nil
}

type memBatch struct {
	db  *MemoryDB
	ops []memEntry
	del []bool
}

func (mb *memBatch) Put(key, value []byte) error {
	mb.ops = append(mb.ops, memEntry{key: cloneBytes(key), value: cloneBytes(value)})
	mb.del = append(mb.del, false)
	return nil
}

func (mb *memBatch) Delete(key []byte) error {
	mb.ops = append(mb.ops, memEntry{key: cloneBytes(key)})
	mb.del = append(mb.del, true)
	return nil
}

func (mb *memBatch) Commit() error {
	mb.db.mu.Lock()
	defer mb.db.mu.Unlock()
	for i, op := range mb.ops {
		if mb.del[i] {
			mb.db.tree.Delete(op)
		} else {
			mb.db.tree.ReplaceOrInsert(op)
		}
	}
	mb.ops, mb.del = nil, nil
	return nil
}

func (mb *memBatch) Cancel() {
	mb.ops, mb.del = nil, nil
}
