package kvstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-walletstore/internal/storage"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

const (
	prefixWalletData = "data/"
	prefixItem       = "item/"
)

// Wallet scalar fields. Absent fields read as their defaults.
const (
	fieldLastLoaded = "lastLoadedAddressIndex"
	fieldLastUsed   = "lastUsedAddressIndex"
	fieldCurrent    = "currentAddressIndex"
	fieldBestBlock  = "bestBlockHeight"
	fieldGapLimit   = "gapLimit"
	fieldScanPolicy = "scanPolicy"
)

type walletIndex struct {
	db *storage.PrefixDB
}

func newWalletIndex(db *storage.PrefixDB) *walletIndex {
	return &walletIndex{db: db}
}

// getField decodes a stored field into a fresh value and assigns it to dst
// only when the field exists, so absent fields keep the default in dst.
func getField[T any](w *walletIndex, field string, dst *T) error {
	var v T
	ok, err := getJSON(w.db, key(prefixWalletData, field), &v)
	if err != nil {
		return fmt.Errorf("wallet %s: %w", field, err)
	}
	if ok {
		*dst = v
	}
	return nil
}

func (w *walletIndex) set(field string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wallet %s marshal: %w", field, err)
	}
	if err := w.db.Put(key(prefixWalletData, field), data); err != nil {
		return fmt.Errorf("wallet %s put: %w", field, err)
	}
	return nil
}

func (w *walletIndex) WalletData() (*types.WalletData, error) {
	d := types.DefaultWalletData()
	for _, get := range []func() error{
		func() error { return getField(w, fieldLastLoaded, &d.LastLoadedAddressIndex) },
		func() error { return getField(w, fieldLastUsed, &d.LastUsedAddressIndex) },
		func() error { return getField(w, fieldCurrent, &d.CurrentAddressIndex) },
		func() error { return getField(w, fieldBestBlock, &d.BestBlockHeight) },
		func() error { return getField(w, fieldGapLimit, &d.GapLimit) },
		func() error { return getField(w, fieldScanPolicy, &d.ScanPolicy) },
	} {
		if err := get(); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func (w *walletIndex) setPointer(field string, index int64) error {
	if err := store.CheckPointer(field, index); err != nil {
		return err
	}
	return w.set(field, index)
}

func (w *walletIndex) SetLastLoadedAddressIndex(index int64) error {
	return w.setPointer(fieldLastLoaded, index)
}

func (w *walletIndex) SetLastUsedAddressIndex(index int64) error {
	return w.setPointer(fieldLastUsed, index)
}

func (w *walletIndex) SetCurrentAddressIndex(index int64) error {
	return w.setPointer(fieldCurrent, index)
}

func (w *walletIndex) SetBestBlockHeight(height uint32) error {
	return w.set(fieldBestBlock, height)
}

func (w *walletIndex) SetGapLimit(gapLimit uint32) error {
	return w.set(fieldGapLimit, gapLimit)
}

func (w *walletIndex) SetScanPolicy(p types.ScanPolicy) error {
	if err := store.CheckScanPolicy(p); err != nil {
		return err
	}
	return w.set(fieldScanPolicy, p)
}

func (w *walletIndex) GetItem(k string) ([]byte, error) {
	v, err := w.db.Get(key(prefixItem, k))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wallet item %s: %w", k, err)
	}
	return v, nil
}

func (w *walletIndex) SetItem(k string, value []byte) error {
	if k == "" {
		return store.ErrInvalidArgument
	}
	return w.db.Put(key(prefixItem, k), bytes.Clone(value))
}

func (w *walletIndex) DeleteItem(k string) error {
	return w.db.Delete(key(prefixItem, k))
}

func (w *walletIndex) ResetAddressPointers() error {
	return commit(w.db, func(b storage.Batch) error {
		for _, f := range []string{fieldLastLoaded, fieldLastUsed, fieldCurrent} {
			if err := b.Delete(key(prefixWalletData, f)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *walletIndex) Clear() error {
	for _, p := range []string{prefixWalletData, prefixItem} {
		if err := storage.DeletePrefix(w.db, []byte(p)); err != nil {
			return fmt.Errorf("clear %s: %w", p, err)
		}
	}
	return nil
}
