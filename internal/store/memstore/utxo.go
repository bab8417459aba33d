package memstore

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Klingon-tech/klingnet-walletstore/internal/keys"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
	"github.com/google/btree"
	"github.com/rs/zerolog"
)

type utxoTree = btree.BTreeG[keyed[*types.Utxo]]

type utxoIndex struct {
	log         zerolog.Logger
	primary     *utxoTree // "{txId}:{index}"
	byToken     *utxoTree // "{authorities}:{token}:{amount}:{txId}:{index}"
	byTokenAddr *utxoTree // "{authorities}:{token}:{address}:{amount}:{txId}:{index}"
	locked      map[string]*types.LockedUtxo
}

func newUtxoIndex(l zerolog.Logger) *utxoIndex {
	return &utxoIndex{
		log:         l,
		primary:     newTree[*types.Utxo](),
		byToken:     newTree[*types.Utxo](),
		byTokenAddr: newTree[*types.Utxo](),
		locked:      make(map[string]*types.LockedUtxo),
	}
}

func (x *utxoIndex) removeSecondary(u *types.Utxo) {
	x.byToken.Delete(keyed[*types.Utxo]{key: keys.TokenUtxo(u)})
	if u.Address != "" {
		x.byTokenAddr.Delete(keyed[*types.Utxo]{key: keys.TokenAddressUtxo(u)})
	}
}

func (x *utxoIndex) Save(u *types.Utxo) error {
	if err := store.CheckUtxo(u); err != nil {
		return err
	}
	pk := keys.Utxo(u.Outpoint())
	if old, ok := x.primary.Get(keyed[*types.Utxo]{key: pk}); ok {
		x.removeSecondary(old.val)
	}

	c := u.Clone()
	x.primary.ReplaceOrInsert(keyed[*types.Utxo]{key: pk, val: c})
	x.byToken.ReplaceOrInsert(keyed[*types.Utxo]{key: keys.TokenUtxo(c), val: c})
	if c.Address != "" {
		x.byTokenAddr.ReplaceOrInsert(keyed[*types.Utxo]{key: keys.TokenAddressUtxo(c), val: c})
	}
	return nil
}

func (x *utxoIndex) Get(op types.Outpoint) (*types.Utxo, error) {
	e, ok := x.primary.Get(keyed[*types.Utxo]{key: keys.Utxo(op)})
	if !ok {
		return nil, nil
	}
	return e.val.Clone(), nil
}

func (x *utxoIndex) Delete(op types.Outpoint) error {
	e, ok := x.primary.Delete(keyed[*types.Utxo]{key: keys.Utxo(op)})
	if !ok {
		return nil
	}
	x.removeSecondary(e.val)
	return nil
}

func cloneEntry(e keyed[*types.Utxo]) (*types.Utxo, bool) {
	return e.val.Clone(), true
}

func (x *utxoIndex) Iter() *store.Cursor[*types.Utxo] {
	return ascend(x.primary, cloneEntry)
}

func (x *utxoIndex) Count() (uint64, error) {
	return uint64(x.primary.Len()), nil
}

func (x *utxoIndex) Scan(q store.RangeQuery) *store.Cursor[*types.Utxo] {
	tree := x.byToken
	if q.ByAddress {
		tree = x.byTokenAddr
	}
	snap := tree.Clone()
	start := keyed[*types.Utxo]{key: q.Range.Start}
	end := keyed[*types.Utxo]{key: q.Range.End}

	return store.NewCursor(func(yield func(*types.Utxo, error) bool) {
		if !q.Reverse {
			snap.AscendRange(start, end, func(e keyed[*types.Utxo]) bool {
				return yield(e.val.Clone(), nil)
			})
			return
		}
		snap.DescendLessOrEqual(end, func(e keyed[*types.Utxo]) bool {
			if e.key >= q.Range.End {
				return true
			}
			if e.key < q.Range.Start {
				return false
			}
			return yield(e.val.Clone(), nil)
		})
	})
}

func (x *utxoIndex) Validate() (store.ValidationResult, error) {
	var res store.ValidationResult
	var err error
	check := func(tree *utxoTree, name, key string, u *types.Utxo) bool {
		e, ok := tree.Get(keyed[*types.Utxo]{key: key})
		if !ok {
			tree.ReplaceOrInsert(keyed[*types.Utxo]{key: key, val: u})
			logRepair(x.log, name, key)
			res.Repaired++
			return true
		}
		if !e.val.Equal(u) {
			err = fmt.Errorf("%w: %s entry %s differs from utxo %s",
				store.ErrInconsistentDatabase, name, key, u.Outpoint())
			return false
		}
		return true
	}

	// Repairs only touch the secondary trees, so walking the primary tree
	// directly is safe.
	x.primary.Ascend(func(e keyed[*types.Utxo]) bool {
		u := e.val
		if !check(x.byToken, "token_utxo", keys.TokenUtxo(u), u) {
			return false
		}
		if u.Address != "" && !check(x.byTokenAddr, "token_address_utxo", keys.TokenAddressUtxo(u), u) {
			return false
		}
		res.Count++
		return true
	})
	return res, err
}

func (x *utxoIndex) SaveLocked(l *types.LockedUtxo) error {
	if err := store.CheckLockedUtxo(l); err != nil {
		return err
	}
	x.locked[keys.Utxo(l.Outpoint())] = &types.LockedUtxo{Tx: copyTx(l.Tx), Index: l.Index}
	return nil
}

func (x *utxoIndex) GetLocked(op types.Outpoint) (*types.LockedUtxo, error) {
	l, ok := x.locked[keys.Utxo(op)]
	if !ok {
		return nil, nil
	}
	return &types.LockedUtxo{Tx: copyTx(l.Tx), Index: l.Index}, nil
}

func (x *utxoIndex) Unlock(op types.Outpoint) error {
	delete(x.locked, keys.Utxo(op))
	return nil
}

func (x *utxoIndex) LockedIter() *store.Cursor[*types.LockedUtxo] {
	ks := slices.Sorted(maps.Keys(x.locked))
	return store.NewCursor(func(yield func(*types.LockedUtxo, error) bool) {
		for _, k := range ks {
			l, ok := x.locked[k]
			if !ok {
				continue
			}
			if !yield(&types.LockedUtxo{Tx: copyTx(l.Tx), Index: l.Index}, nil) {
				return
			}
		}
	})
}

func (x *utxoIndex) Clear() error {
	x.primary.Clear(false)
	x.byToken.Clear(false)
	x.byTokenAddr.Clear(false)
	clear(x.locked)
	return nil
}
