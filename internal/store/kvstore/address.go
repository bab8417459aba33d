package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-walletstore/internal/keys"
	"github.com/Klingon-tech/klingnet-walletstore/internal/storage"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
	"github.com/rs/zerolog"
)

const (
	prefixAddr      = "addr/"
	prefixAddrIndex = "index/"
	prefixAddrMeta  = "meta/"
)

type addressIndex struct {
	db    *storage.PrefixDB
	log   zerolog.Logger
	count counter
}

func newAddressIndex(db *storage.PrefixDB, l zerolog.Logger) *addressIndex {
	return &addressIndex{db: db, log: l}
}

func (a *addressIndex) Save(info *types.AddressInfo) error {
	if err := store.CheckAddress(info); err != nil {
		return err
	}
	if ok, err := a.db.Has(key(prefixAddr, info.Base58)); err != nil {
		return fmt.Errorf("address has: %w", err)
	} else if ok {
		return fmt.Errorf("%w: address %s", store.ErrDuplicateKey, info.Base58)
	}
	ik := key(prefixAddrIndex, keys.IndexKey(info.Bip32Index))
	if owner, err := a.db.Get(ik); err == nil {
		return fmt.Errorf("%w: bip32 index %d already maps to %s", store.ErrDuplicateKey, info.Bip32Index, owner)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("address index get: %w", err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("address marshal: %w", err)
	}
	err = commit(a.db, func(b storage.Batch) error {
		if err := b.Put(key(prefixAddr, info.Base58), data); err != nil {
			return err
		}
		return b.Put(ik, []byte(info.Base58))
	})
	if err != nil {
		return fmt.Errorf("address put: %w", err)
	}
	a.count.inc()
	return nil
}

func (a *addressIndex) Get(base58 string) (*types.AddressInfo, error) {
	var info types.AddressInfo
	ok, err := getJSON(a.db, key(prefixAddr, base58), &info)
	if err != nil || !ok {
		return nil, err
	}
	return &info, nil
}

func (a *addressIndex) AtIndex(index uint32) (*types.AddressInfo, error) {
	base58, err := a.db.Get(key(prefixAddrIndex, keys.IndexKey(index)))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("address index get: %w", err)
	}
	return a.Get(string(base58))
}

func (a *addressIndex) Exists(base58 string) (bool, error) {
	return a.db.Has(key(prefixAddr, base58))
}

func (a *addressIndex) Iter() *store.Cursor[*types.AddressInfo] {
	return scanPrefix(a.db, prefixAddrIndex, false, func(_, v []byte) (*types.AddressInfo, bool, error) {
		info, err := a.Get(string(v))
		if err != nil {
			return nil, false, err
		}
		return info, info != nil, nil
	})
}

func (a *addressIndex) Count() (uint64, error) {
	if a.count.valid {
		return a.count.n, nil
	}
	return countPrefix(a.db, prefixAddr)
}

func (a *addressIndex) Validate() (store.AddressValidation, error) {
	res := store.AddressValidation{FirstIndex: -1, LastIndex: -1}
	var missing []*types.AddressInfo

	err := a.db.ForEach([]byte(prefixAddr), func(k, v []byte) error {
		var info types.AddressInfo
		if err := json.Unmarshal(v, &info); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		owner, err := a.db.Get(key(prefixAddrIndex, keys.IndexKey(info.Bip32Index)))
		switch {
		case errors.Is(err, storage.ErrNotFound):
			missing = append(missing, &info)
		case err != nil:
			return fmt.Errorf("address index get: %w", err)
		case string(owner) != info.Base58:
			return fmt.Errorf("%w: bip32 index %d maps to %s, want %s",
				store.ErrInconsistentDatabase, info.Bip32Index, owner, info.Base58)
		}

		idx := int64(info.Bip32Index)
		if res.FirstIndex == -1 || idx < res.FirstIndex {
			res.FirstIndex = idx
		}
		if idx > res.LastIndex {
			res.LastIndex = idx
		}
		res.Count++
		return nil
	})
	if err != nil {
		return res, err
	}

	for _, info := range missing {
		ik := keys.IndexKey(info.Bip32Index)
		if err := a.db.Put(key(prefixAddrIndex, ik), []byte(info.Base58)); err != nil {
			return res, fmt.Errorf("repair address index: %w", err)
		}
		a.log.Warn().Str("index", "address").Str("key", ik).Msg("Recreated missing index entry")
		res.Repaired++
	}
	a.count.set(res.Count)
	return res, nil
}

func (a *addressIndex) SetMeta(base58 string, meta *types.AddressMetadata) error {
	if meta == nil {
		return fmt.Errorf("%w: nil address metadata", store.ErrInvalidArgument)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("address meta marshal: %w", err)
	}
	return a.db.Put(key(prefixAddrMeta, base58), data)
}

func (a *addressIndex) GetMeta(base58 string) (*types.AddressMetadata, error) {
	var meta types.AddressMetadata
	ok, err := getJSON(a.db, key(prefixAddrMeta, base58), &meta)
	if err != nil || !ok {
		return nil, err
	}
	return &meta, nil
}

func (a *addressIndex) ClearMeta() error {
	return a.deletePrefix(prefixAddrMeta)
}

func (a *addressIndex) Clear() error {
	for _, p := range []string{prefixAddr, prefixAddrIndex, prefixAddrMeta} {
		if err := a.deletePrefix(p); err != nil {
			return err
		}
	}
	a.count.set(0)
	return nil
}

func (a *addressIndex) deletePrefix(prefix string) error {
	if err := storage.DeletePrefix(a.db, []byte(prefix)); err != nil {
		return fmt.Errorf("clear %s: %w", prefix, err)
	}
	return nil
}
