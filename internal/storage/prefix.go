package storage

// PrefixDB wraps a DB and prepends a fixed prefix to all keys.
// This isolates one wallet, and each index of a wallet, within a single
// underlying database.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB creates a new PrefixDB wrapping inner with the given prefix.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	p := make([]byte, len(prefix))
	copy(p, prefix)
	return &PrefixDB{inner: inner, prefix: p}
}

// prefixed returns key with the prefix prepended.
func (p *PrefixDB) prefixed(key []byte) []byte {
	out := make([]byte, len(p.prefix)+len(key))
	copy(out, p.prefix)
	copy(out[len(p.prefix):], key)
	return out
}

// Get retrieves a value by key.
func (p *PrefixDB) Get(key []byte) ([]byte, error) {
	return p.inner.Get(p.prefixed(key))
}

// Put stores a key-value pair.
func (p *PrefixDB) Put(key, value []byte) error {
	return p.inner.Put(p.prefixed(key), value)
}

// Delete removes a key.
func (p *PrefixDB) Delete(key []byte) error {
	return p.inner.Delete(p.prefixed(key))
}

// Has checks if a key exists.
func (p *PrefixDB) Has(key []byte) (bool, error) {
	return p.inner.Has(p.prefixed(key))
}

// ForEach iterates over all keys with the given prefix (within the PrefixDB namespace).
// The callback receives keys with the PrefixDB prefix stripped, so callers see only
// their logical keyspace.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	fullPrefix := p.prefixed(prefix)
	return p.inner.ForEach(fullPrefix, func(key, value []byte) error {
		// Strip the PrefixDB prefix so the caller sees only its logical key.
		stripped := key[len(p.prefix):]
		return fn(stripped, value)
	})
}

// NewIterator returns a cursor over [start, end) within the PrefixDB
// namespace. Keys are returned with the prefix stripped.
func (p *PrefixDB) NewIterator(start, end []byte, reverse bool) Iterator {
	fullStart := p.prefixed(start)
	var fullEnd []byte
	if end == nil {
		fullEnd = PrefixEnd(p.prefix)
	} else {
		fullEnd = p.prefixed(end)
	}
	return &prefixIterator{inner: p.inner.NewIterator(fullStart, fullEnd, reverse), n: len(p.prefix)}
}

type prefixIterator struct {
	inner Iterator
	n     int
}

func (pi *prefixIterator) Next() bool    { return pi.inner.Next() }
func (pi *prefixIterator) Key() []byte   { return pi.inner.Key()[pi.n:] }
func (pi *prefixIterator) Value() []byte { return pi.inner.Value() }
func (pi *prefixIterator) Err() error    { return pi.inner.Err() }
func (pi *prefixIterator) Close() error  { return pi.inner.Close() }

// DeleteAll removes all keys under this PrefixDB's namespace from the inner DB.
func (p *PrefixDB) DeleteAll() error {
	return DeletePrefix(p.inner, p.prefix)
}

// Close is a no-op; the outer DB manages its own lifecycle.
func (p *PrefixDB) Close() error {
	return nil
}

// NewBatch returns a batch over the namespace. It commits atomically when
// the inner DB is a Batcher and applies writes one by one otherwise.
func (p *PrefixDB) NewBatch() Batch {
	if batcher, ok := p.inner.(Batcher); ok {
		return &prefixBatch{db: p, inner: batcher.NewBatch()}
	}
	return &fallbackBatch{db: p}
}

type prefixBatch struct {
	db    *PrefixDB
	inner Batch
}

func (pb *prefixBatch) Put(key, value []byte) error { return pb.inner.Put(pb.db.prefixed(key), value) }
func (pb *prefixBatch) Delete(key []byte) error     { return pb.inner.Delete(pb.db.prefixed(key)) }
func (pb *prefixBatch) Commit() error               { return pb.inner.Commit() }
func (pb *prefixBatch) Cancel()                     { pb.inner.Cancel() }

// batchOp is a buffered write; a nil value deletes.
type batchOp struct {
	key, value []byte
}

type fallbackBatch struct {
	db  *PrefixDB
	ops []batchOp
}

func (fb *fallbackBatch) Put(key, value []byte) error {
	fb.ops = append(fb.ops, batchOp{cloneBytes(key), cloneBytes(value)})
	return nil
}

func (fb *fallbackBatch) Delete(key []byte) error {
	fb.ops = append(fb.ops, batchOp{key: cloneBytes(key)})
	return nil
}

func (fb *fallbackBatch) Commit() error {
	for _, op := range fb.ops {
		var err error
		if op.value == nil {
			err = fb.db.Delete(op.key)
		} else {
			err = fb.db.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	fb.ops = nil
	return nil
}

func (fb *fallbackBatch) Cancel() {
	fb.ops = nil
}
