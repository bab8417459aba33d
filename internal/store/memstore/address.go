package memstore

import (
	"fmt"
	"maps"

	"github.com/Klingon-tech/klingnet-walletstore/internal/keys"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
	"github.com/google/btree"
	"github.com/rs/zerolog"
)

type addressIndex struct {
	log     zerolog.Logger
	byAddr  map[string]types.AddressInfo
	byIndex *btree.BTreeG[keyed[string]] // indexKey(bip32) -> base58
	meta    map[string]*types.AddressMetadata
}

func newAddressIndex(l zerolog.Logger) *addressIndex {
	return &addressIndex{
		log:     l,
		byAddr:  make(map[string]types.AddressInfo),
		byIndex: newTree[string](),
		meta:    make(map[string]*types.AddressMetadata),
	}
}

func (a *addressIndex) Save(info *types.AddressInfo) error {
	if err := store.CheckAddress(info); err != nil {
		return err
	}
	if _, ok := a.byAddr[info.Base58]; ok {
		return fmt.Errorf("%w: address %s", store.ErrDuplicateKey, info.Base58)
	}
	ik := keys.IndexKey(info.Bip32Index)
	if e, ok := a.byIndex.Get(keyed[string]{key: ik}); ok {
		return fmt.Errorf("%w: bip32 index %d already maps to %s", store.ErrDuplicateKey, info.Bip32Index, e.val)
	}
	a.byAddr[info.Base58] = *info
	a.byIndex.ReplaceOrInsert(keyed[string]{key: ik, val: info.Base58})
	return nil
}

func (a *addressIndex) Get(base58 string) (*types.AddressInfo, error) {
	info, ok := a.byAddr[base58]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (a *addressIndex) AtIndex(index uint32) (*types.AddressInfo, error) {
	e, ok := a.byIndex.Get(keyed[string]{key: keys.IndexKey(index)})
	if !ok {
		return nil, nil
	}
	return a.Get(e.val)
}

func (a *addressIndex) Exists(base58 string) (bool, error) {
	_, ok := a.byAddr[base58]
	return ok, nil
}

func (a *addressIndex) Iter() *store.Cursor[*types.AddressInfo] {
	return ascend(a.byIndex, func(e keyed[string]) (*types.AddressInfo, bool) {
		info, ok := a.byAddr[e.val]
		if !ok {
			return nil, false
		}
		return &info, true
	})
}

func (a *addressIndex) Count() (uint64, error) {
	return uint64(len(a.byAddr)), nil
}

func (a *addressIndex) Validate() (store.AddressValidation, error) {
	res := store.AddressValidation{FirstIndex: -1, LastIndex: -1}
	for base58, info := range a.byAddr {
		ik := keys.IndexKey(info.Bip32Index)
		e, ok := a.byIndex.Get(keyed[string]{key: ik})
		switch {
		case !ok:
			a.byIndex.ReplaceOrInsert(keyed[string]{key: ik, val: base58})
			logRepair(a.log, "address", ik)
			res.Repaired++
		case e.val != base58:
			return res, fmt.Errorf("%w: bip32 index %d maps to %s, want %s",
				store.ErrInconsistentDatabase, info.Bip32Index, e.val, base58)
		}

		idx := int64(info.Bip32Index)
		if res.FirstIndex == -1 || idx < res.FirstIndex {
			res.FirstIndex = idx
		}
		if idx > res.LastIndex {
			res.LastIndex = idx
		}
		res.Count++
	}
	return res, nil
}

func (a *addressIndex) SetMeta(base58 string, meta *types.AddressMetadata) error {
	if meta == nil {
		return fmt.Errorf("%w: nil address metadata", store.ErrInvalidArgument)
	}
	c := *meta
	c.Balance = maps.Clone(meta.Balance)
	a.meta[base58] = &c
	return nil
}

func (a *addressIndex) GetMeta(base58 string) (*types.AddressMetadata, error) {
	m, ok := a.meta[base58]
	if !ok {
		return nil, nil
	}
	c := *m
	c.Balance = maps.Clone(m.Balance)
	return &c, nil
}

func (a *addressIndex) ClearMeta() error {
	clear(a.meta)
	return nil
}

func (a *addressIndex) Clear() error {
	clear(a.byAddr)
	a.byIndex.Clear(false)
	clear(a.meta)
	return nil
}
