package store

import "iter"

// Cursor streams ordered results from an index. It must be closed; Close
// releases the underlying resources (open transactions, iterators) whether
// or not the cursor was drained.
//
//	c := s.Utxos().Iter()
//	defer c.Close()
//	for c.Next() {
//		use(c.Value())
//	}
//	return c.Err()
type Cursor[T any] struct {
	next func() (T, error, bool)
	stop func()
	cur  T
	err  error
	done bool
}

// NewCursor turns a sequence into a Cursor. The sequence runs lazily, one
// element per Next, and its deferred cleanups run when the sequence ends or
// the cursor is closed, whichever comes first. A non-nil error ends the
// cursor.
func NewCursor[T any](seq iter.Seq2[T, error]) *Cursor[T] {
	next, stop := iter.Pull2(seq)
	return &Cursor[T]{next: next, stop: stop}
}

// ErrCursor returns a cursor that yields nothing and reports err.
func ErrCursor[T any](err error) *Cursor[T] {
	return &Cursor[T]{err: err, done: true}
}

// Next advances the cursor and reports whether a value is available.
func (c *Cursor[T]) Next() bool {
	if c.done {
		return false
	}
	v, err, ok := c.next()
	if !ok {
		c.finish()
		return false
	}
	if err != nil {
		c.err = err
		c.finish()
		return false
	}
	c.cur = v
	return true
}

// Value returns the value at the cursor.
func (c *Cursor[T]) Value() T {
	return c.cur
}

// Err returns the error that ended the cursor, if any.
func (c *Cursor[T]) Err() error {
	return c.err
}

// Close releases the cursor. It is safe to call more than once.
func (c *Cursor[T]) Close() error {
	if !c.done {
		c.finish()
	}
	return nil
}

func (c *Cursor[T]) finish() {
	c.done = true
	if c.stop != nil {
		c.stop()
	}
	var zero T
	c.cur = zero
}

// Collect drains and closes c.
func Collect[T any](c *Cursor[T]) ([]T, error) {
	defer c.Close()
	var out []T
	for c.Next() {
		out = append(out, c.Value())
	}
	return out, c.Err()
}

// Count drains and closes c, returning the number of values seen.
func Count[T any](c *Cursor[T]) (uint64, error) {
	defer c.Close()
	var n uint64
	for c.Next() {
		n++
	}
	return n, c.Err()
}
