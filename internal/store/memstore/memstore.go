// Package memstore is the volatile wallet store backend. Everything lives in
// process memory and is lost on Close; it is used for ephemeral and test
// wallets.
package memstore

import (
	"github.com/Klingon-tech/klingnet-walletstore/internal/log"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/google/btree"
	"github.com/rs/zerolog"
)

// treeDegree is the btree node degree of every ordered index.
const treeDegree = 16

// Backend implements store.Backend in memory.
type Backend struct {
	addresses *addressIndex
	history   *historyIndex
	tokens    *tokenIndex
	utxos     *utxoIndex
	wallet    *walletIndex
}

var _ store.Backend = (*Backend)(nil)

// New creates an empty in-memory backend.
func New() *Backend {
	logger := log.Store.With().Str("backend", "memory").Logger()
	return &Backend{
		addresses: newAddressIndex(logger),
		history:   newHistoryIndex(logger),
		tokens:    newTokenIndex(),
		utxos:     newUtxoIndex(logger),
		wallet:    newWalletIndex(),
	}
}

// NewStore creates a Store over a fresh in-memory backend.
func NewStore(opts ...store.Option) *store.Store {
	return store.New(New(), opts...)
}

func (b *Backend) Addresses() store.AddressIndex { return b.addresses }
func (b *Backend) History() store.HistoryIndex   { return b.history }
func (b *Backend) Tokens() store.TokenIndex      { return b.tokens }
func (b *Backend) Utxos() store.UtxoIndex        { return b.utxos }
func (b *Backend) Wallet() store.WalletIndex     { return b.wallet }

// Close is a no-op.
func (b *Backend) Close() error { return nil }

// keyed is an entry of an ordered string-keyed index.
type keyed[T any] struct {
	key string
	val T
}

func newTree[T any]() *btree.BTreeG[keyed[T]] {
	return btree.NewG(treeDegree, func(a, b keyed[T]) bool { return a.key < b.key })
}

// ascend walks a snapshot of tree in key order, yielding mapped values.
// map returns ok=false to skip an entry.
func ascend[T, V any](tree *btree.BTreeG[keyed[T]], mapFn func(keyed[T]) (V, bool)) *store.Cursor[V] {
	snap := tree.Clone()
	return store.NewCursor(func(yield func(V, error) bool) {
		snap.Ascend(func(e keyed[T]) bool {
			v, ok := mapFn(e)
			if !ok {
				return true
			}
			return yield(v, nil)
		})
	})
}

// descend walks a snapshot of tree in reverse key order.
func descend[T, V any](tree *btree.BTreeG[keyed[T]], mapFn func(keyed[T]) (V, bool)) *store.Cursor[V] {
	snap := tree.Clone()
	return store.NewCursor(func(yield func(V, error) bool) {
		snap.Descend(func(e keyed[T]) bool {
			v, ok := mapFn(e)
			if !ok {
				return true
			}
			return yield(v, nil)
		})
	})
}

func logRepair(l zerolog.Logger, index, key string) {
	l.Warn().Str("index", index).Str("key", key).Msg("Recreated missing index entry")
}
