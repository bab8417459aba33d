package memstore

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-walletstore/internal/keys"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

func txid(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	h[31] = 0x01
	return h
}

func TestAddressValidate_RepairsMissingIndex(t *testing.T) {
	b := New()
	for i, addr := range []string{"a0", "a1", "a2"} {
		if err := b.Addresses().Save(&types.AddressInfo{Base58: addr, Bip32Index: uint32(i)}); err != nil {
			t.Fatalf("save %s: %v", addr, err)
		}
	}

	// Drop one secondary entry behind the index's back.
	b.addresses.byIndex.Delete(keyed[string]{key: keys.IndexKey(1)})
	if got, _ := b.Addresses().AtIndex(1); got != nil {
		t.Fatalf("AtIndex(1) after corruption = %v, want nil", got)
	}

	res, err := b.Addresses().Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Repaired != 1 || res.Count != 3 || res.FirstIndex != 0 || res.LastIndex != 2 {
		t.Fatalf("validate result = %+v", res)
	}
	got, err := b.Addresses().AtIndex(1)
	if err != nil || got == nil || got.Base58 != "a1" {
		t.Fatalf("AtIndex(1) after repair = %v, %v", got, err)
	}
}

func TestAddressValidate_Inconsistent(t *testing.T) {
	b := New()
	if err := b.Addresses().Save(&types.AddressInfo{Base58: "a0", Bip32Index: 0}); err != nil {
		t.Fatal(err)
	}
	b.addresses.byIndex.ReplaceOrInsert(keyed[string]{key: keys.IndexKey(0), val: "other"})

	if _, err := b.Addresses().Validate(); !errors.Is(err, store.ErrInconsistentDatabase) {
		t.Fatalf("validate error = %v, want ErrInconsistentDatabase", err)
	}
}

func TestAddressSave_Duplicate(t *testing.T) {
	b := New()
	if err := b.Addresses().Save(&types.AddressInfo{Base58: "a0", Bip32Index: 0}); err != nil {
		t.Fatal(err)
	}
	if err := b.Addresses().Save(&types.AddressInfo{Base58: "a0", Bip32Index: 5}); !errors.Is(err, store.ErrDuplicateKey) {
		t.Errorf("same address: got %v", err)
	}
	if err := b.Addresses().Save(&types.AddressInfo{Base58: "b0", Bip32Index: 0}); !errors.Is(err, store.ErrDuplicateKey) {
		t.Errorf("same index: got %v", err)
	}
}

func TestHistoryValidate_RepairsMissingTimestamp(t *testing.T) {
	b := New()
	tx := &types.HistoryTx{TxID: txid(1), Timestamp: 100}
	if err := b.History().Save(tx); err != nil {
		t.Fatal(err)
	}
	b.history.byTime.Clear(false)

	res, err := b.History().Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Repaired != 1 || res.Count != 1 {
		t.Fatalf("validate result = %+v", res)
	}
	txs, err := store.Collect(b.History().Iter(""))
	if err != nil || len(txs) != 1 {
		t.Fatalf("iter after repair: %d txs, %v", len(txs), err)
	}
}

func TestHistorySave_MovesTimestamp(t *testing.T) {
	b := New()
	if err := b.History().Save(&types.HistoryTx{TxID: txid(1), Timestamp: 100}); err != nil {
		t.Fatal(err)
	}
	if err := b.History().Save(&types.HistoryTx{TxID: txid(1), Timestamp: 200}); err != nil {
		t.Fatal(err)
	}
	if n := b.history.byTime.Len(); n != 1 {
		t.Fatalf("timestamp entries = %d, want 1", n)
	}
}

func TestUtxoValidate_RepairsAndDetectsMismatch(t *testing.T) {
	b := New()
	u := &types.Utxo{TxID: txid(1), Index: 0, Token: types.NativeTokenUID, Address: "a0", Value: 10}
	if err := b.Utxos().Save(u); err != nil {
		t.Fatal(err)
	}

	b.utxos.byToken.Clear(false)
	b.utxos.byTokenAddr.Clear(false)
	res, err := b.Utxos().Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Repaired != 2 || res.Count != 1 {
		t.Fatalf("validate result = %+v", res)
	}

	bad := u.Clone()
	bad.Address = "elsewhere"
	b.utxos.byToken.ReplaceOrInsert(keyed[*types.Utxo]{key: keys.TokenUtxo(u), val: bad})
	if _, err := b.Utxos().Validate(); !errors.Is(err, store.ErrInconsistentDatabase) {
		t.Fatalf("validate error = %v, want ErrInconsistentDatabase", err)
	}
}

func TestUtxoSave_ResaveDropsStaleSecondary(t *testing.T) {
	b := New()
	u := &types.Utxo{TxID: txid(1), Index: 0, Token: types.NativeTokenUID, Address: "a0", Value: 10}
	if err := b.Utxos().Save(u); err != nil {
		t.Fatal(err)
	}
	u.Value = 20
	u.Address = "a1"
	if err := b.Utxos().Save(u); err != nil {
		t.Fatal(err)
	}
	if b.utxos.byToken.Len() != 1 || b.utxos.byTokenAddr.Len() != 1 {
		t.Fatalf("secondary sizes = %d, %d, want 1, 1", b.utxos.byToken.Len(), b.utxos.byTokenAddr.Len())
	}

	if err := b.Utxos().Delete(u.Outpoint()); err != nil {
		t.Fatal(err)
	}
	if b.utxos.primary.Len()+b.utxos.byToken.Len()+b.utxos.byTokenAddr.Len() != 0 {
		t.Fatal("delete left index entries behind")
	}
}

func TestUtxoGet_ReturnsCopy(t *testing.T) {
	b := New()
	lock := uint32(5)
	u := &types.Utxo{TxID: txid(1), Token: types.NativeTokenUID, Value: 10, Timelock: &lock}
	if err := b.Utxos().Save(u); err != nil {
		t.Fatal(err)
	}
	lock = 99

	got, err := b.Utxos().Get(u.Outpoint())
	if err != nil {
		t.Fatal(err)
	}
	if *got.Timelock != 5 {
		t.Fatalf("stored timelock changed through caller pointer: %d", *got.Timelock)
	}
	*got.Timelock = 7
	again, _ := b.Utxos().Get(u.Outpoint())
	if *again.Timelock != 5 {
		t.Fatalf("stored timelock changed through returned pointer: %d", *again.Timelock)
	}
}

func TestWalletItems(t *testing.T) {
	b := New()
	w := b.Wallet()
	if v, err := w.GetItem("missing"); err != nil || v != nil {
		t.Fatalf("GetItem(missing) = %v, %v", v, err)
	}
	if err := w.SetItem("", []byte("x")); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("SetItem empty key: %v", err)
	}
	if err := w.SetItem("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	v, _ := w.GetItem("k")
	if string(v) != "v" {
		t.Fatalf("GetItem = %q", v)
	}
	if err := w.DeleteItem("k"); err != nil {
		t.Fatal(err)
	}
	if v, _ := w.GetItem("k"); v != nil {
		t.Fatalf("GetItem after delete = %q", v)
	}
}
