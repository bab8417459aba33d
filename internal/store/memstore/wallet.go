package memstore

import (
	"bytes"

	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

type walletIndex struct {
	data  types.WalletData
	items map[string][]byte
}

func newWalletIndex() *walletIndex {
	return &walletIndex{
		data:  types.DefaultWalletData(),
		items: make(map[string][]byte),
	}
}

func (w *walletIndex) WalletData() (*types.WalletData, error) {
	d := w.data
	return &d, nil
}

func (w *walletIndex) setPointer(name string, dst *int64, index int64) error {
	if err := store.CheckPointer(name, index); err != nil {
		return err
	}
	*dst = index
	return nil
}

func (w *walletIndex) SetLastLoadedAddressIndex(index int64) error {
	return w.setPointer("last loaded address index", &w.data.LastLoadedAddressIndex, index)
}

func (w *walletIndex) SetLastUsedAddressIndex(index int64) error {
	return w.setPointer("last used address index", &w.data.LastUsedAddressIndex, index)
}

func (w *walletIndex) SetCurrentAddressIndex(index int64) error {
	return w.setPointer("current address index", &w.data.CurrentAddressIndex, index)
}

func (w *walletIndex) SetBestBlockHeight(height uint32) error {
	w.data.BestBlockHeight = height
	return nil
}

func (w *walletIndex) SetGapLimit(gapLimit uint32) error {
	w.data.GapLimit = gapLimit
	return nil
}

func (w *walletIndex) SetScanPolicy(p types.ScanPolicy) error {
	if err := store.CheckScanPolicy(p); err != nil {
		return err
	}
	w.data.ScanPolicy = p
	return nil
}

func (w *walletIndex) GetItem(key string) ([]byte, error) {
	v, ok := w.items[key]
	if !ok {
		return nil, nil
	}
	return bytes.Clone(v), nil
}

func (w *walletIndex) SetItem(key string, value []byte) error {
	if key == "" {
		return store.ErrInvalidArgument
	}
	w.items[key] = bytes.Clone(value)
	return nil
}

func (w *walletIndex) DeleteItem(key string) error {
	delete(w.items, key)
	return nil
}

func (w *walletIndex) ResetAddressPointers() error {
	def := types.DefaultWalletData()
	w.data.LastLoadedAddressIndex = def.LastLoadedAddressIndex
	w.data.LastUsedAddressIndex = def.LastUsedAddressIndex
	w.data.CurrentAddressIndex = def.CurrentAddressIndex
	return nil
}

func (w *walletIndex) Clear() error {
	w.data = types.DefaultWalletData()
	clear(w.items)
	return nil
}
