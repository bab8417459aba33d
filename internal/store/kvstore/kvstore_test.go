package kvstore

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-walletstore/internal/keys"
	"github.com/Klingon-tech/klingnet-walletstore/internal/storage"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

const testWallet = "0011223344556677"

func txid(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	h[31] = 0x01
	return h
}

func newBackend(t *testing.T, db storage.DB) *Backend {
	t.Helper()
	b, err := New(db, testWallet)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

// raw returns a view of one partition of the wallet, bypassing the indexes.
func raw(db storage.DB, part string) *storage.PrefixDB {
	return storage.NewPrefixDB(storage.NewPrefixDB(db, WalletPrefix(testWallet)), []byte(part))
}

func TestNew_WritesVersion(t *testing.T) {
	db := storage.NewMemory()
	newBackend(t, db)

	for _, part := range []string{partAddress, partHistory, partUtxo, partToken, partWallet} {
		v, err := raw(db, part).Get(versionKey)
		if err != nil {
			t.Fatalf("%s version: %v", part, err)
		}
		if string(v) != SchemaVersion {
			t.Errorf("%s version = %q, want %q", part, v, SchemaVersion)
		}
	}
}

func TestNew_VersionMismatch(t *testing.T) {
	db := storage.NewMemory()
	newBackend(t, db)

	if err := raw(db, partUtxo).Put(versionKey, []byte("0")); err != nil {
		t.Fatal(err)
	}
	if _, err := New(db, testWallet); !errors.Is(err, store.ErrVersionMismatch) {
		t.Fatalf("reopen error = %v, want ErrVersionMismatch", err)
	}
}

func TestNew_EmptyWalletID(t *testing.T) {
	if _, err := New(storage.NewMemory(), ""); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestWalletsAreIsolated(t *testing.T) {
	db := storage.NewMemory()
	a := newBackend(t, db)
	b, err := New(db, "ffeeddccbbaa9988")
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Addresses().Save(&types.AddressInfo{Base58: "a0"}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := b.Addresses().Exists("a0"); ok {
		t.Fatal("address leaked into another wallet")
	}
	if err := b.Addresses().Save(&types.AddressInfo{Base58: "a0"}); err != nil {
		t.Fatalf("same address in another wallet: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Path: dir, WalletID: testWallet}

	b, err := Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	u := &types.Utxo{TxID: txid(1), Index: 3, Token: types.NativeTokenUID, Address: "a0", Value: 42}
	if err := b.Utxos().Save(u); err != nil {
		t.Fatal(err)
	}
	if err := b.Wallet().SetBestBlockHeight(77); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	b, err = Open(opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()

	got, err := b.Utxos().Get(u.Outpoint())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(u) {
		t.Fatalf("utxo after reopen = %+v, want %+v", got, u)
	}
	wd, err := b.Wallet().WalletData()
	if err != nil {
		t.Fatal(err)
	}
	if wd.BestBlockHeight != 77 {
		t.Fatalf("best block height = %d, want 77", wd.BestBlockHeight)
	}
}

func TestUtxoValidate_RepairsMissingSecondary(t *testing.T) {
	db := storage.NewMemory()
	b := newBackend(t, db)
	u := &types.Utxo{TxID: txid(1), Token: types.NativeTokenUID, Address: "a0", Value: 10}
	if err := b.Utxos().Save(u); err != nil {
		t.Fatal(err)
	}

	p := raw(db, partUtxo)
	if err := p.Delete(key(prefixTokenUtxo, keys.TokenUtxo(u))); err != nil {
		t.Fatal(err)
	}

	res, err := b.Utxos().Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Repaired != 1 || res.Count != 1 {
		t.Fatalf("validate result = %+v", res)
	}
	if ok, _ := p.Has(key(prefixTokenUtxo, keys.TokenUtxo(u))); !ok {
		t.Fatal("token index entry not recreated")
	}
}

func TestUtxoValidate_PayloadMismatch(t *testing.T) {
	db := storage.NewMemory()
	b := newBackend(t, db)
	u := &types.Utxo{TxID: txid(1), Token: types.NativeTokenUID, Address: "a0", Value: 10}
	if err := b.Utxos().Save(u); err != nil {
		t.Fatal(err)
	}

	p := raw(db, partUtxo)
	if err := p.Put(key(prefixTokenAddrUtxo, keys.TokenAddressUtxo(u)), []byte(`{"value":1}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Utxos().Validate(); !errors.Is(err, store.ErrInconsistentDatabase) {
		t.Fatalf("validate error = %v, want ErrInconsistentDatabase", err)
	}
}

func TestUtxoDelete_RemovesSecondaries(t *testing.T) {
	db := storage.NewMemory()
	b := newBackend(t, db)
	u := &types.Utxo{TxID: txid(1), Token: types.NativeTokenUID, Address: "a0", Value: 10}
	if err := b.Utxos().Save(u); err != nil {
		t.Fatal(err)
	}
	if err := b.Utxos().Delete(u.Outpoint()); err != nil {
		t.Fatal(err)
	}

	p := raw(db, partUtxo)
	for _, prefix := range []string{prefixUtxo, prefixTokenUtxo, prefixTokenAddrUtxo} {
		n, err := countPrefix(p, prefix)
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("%s has %d entries after delete", prefix, n)
		}
	}
}

func TestHistoryValidate_KeyMismatch(t *testing.T) {
	db := storage.NewMemory()
	b := newBackend(t, db)
	tx := &types.HistoryTx{TxID: txid(1), Timestamp: 5}
	if err := b.History().Save(tx); err != nil {
		t.Fatal(err)
	}

	// Copy the record under another id.
	p := raw(db, partHistory)
	data, err := p.Get(txKey(tx.TxID))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Put(txKey(txid(2)), data); err != nil {
		t.Fatal(err)
	}
	if _, err := b.History().Validate(); !errors.Is(err, store.ErrInconsistentDatabase) {
		t.Fatalf("validate error = %v, want ErrInconsistentDatabase", err)
	}
}

func TestAddressCount_CachedAfterValidate(t *testing.T) {
	db := storage.NewMemory()
	b := newBackend(t, db)
	for i := range uint32(3) {
		if err := b.Addresses().Save(&types.AddressInfo{Base58: string(rune('a' + i)), Bip32Index: i}); err != nil {
			t.Fatal(err)
		}
	}
	if b.addresses.count.valid {
		t.Fatal("count cached before validate")
	}
	if n, err := b.Addresses().Count(); err != nil || n != 3 {
		t.Fatalf("scan count = %d, %v", n, err)
	}

	if _, err := b.Addresses().Validate(); err != nil {
		t.Fatal(err)
	}
	if !b.addresses.count.valid || b.addresses.count.n != 3 {
		t.Fatalf("cached count = %+v", b.addresses.count)
	}
	if err := b.Addresses().Save(&types.AddressInfo{Base58: "d", Bip32Index: 3}); err != nil {
		t.Fatal(err)
	}
	if n, _ := b.Addresses().Count(); n != 4 {
		t.Fatalf("count after save = %d, want 4", n)
	}
}

func TestWalletData_Defaults(t *testing.T) {
	b := newBackend(t, storage.NewMemory())
	wd, err := b.Wallet().WalletData()
	if err != nil {
		t.Fatal(err)
	}
	if *wd != types.DefaultWalletData() {
		t.Fatalf("wallet data = %+v, want defaults", wd)
	}

	if err := b.Wallet().SetCurrentAddressIndex(4); err != nil {
		t.Fatal(err)
	}
	if err := b.Wallet().ResetAddressPointers(); err != nil {
		t.Fatal(err)
	}
	wd, _ = b.Wallet().WalletData()
	if wd.CurrentAddressIndex != -1 {
		t.Fatalf("current after reset = %d", wd.CurrentAddressIndex)
	}
}

func saveAddresses(t *testing.T, b *Backend, n int) {
	t.Helper()
	for i := range uint32(n) {
		if err := b.Addresses().Save(&types.AddressInfo{Base58: string(rune('a' + i)), Bip32Index: i}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAddressValidate_RepairsMissingIndex(t *testing.T) {
	db := storage.NewMemory()
	b := newBackend(t, db)
	saveAddresses(t, b, 3)

	p := raw(db, partAddress)
	if err := p.Delete(key(prefixAddrIndex, keys.IndexKey(1))); err != nil {
		t.Fatal(err)
	}
	if got, _ := b.Addresses().AtIndex(1); got != nil {
		t.Fatalf("index 1 still resolves to %+v", got)
	}

	res, err := b.Addresses().Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Repaired != 1 || res.Count != 3 {
		t.Fatalf("validate result = %+v", res)
	}
	got, err := b.Addresses().AtIndex(1)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Base58 != "b" {
		t.Fatalf("index 1 after repair = %+v, want b", got)
	}

	res, err = b.Addresses().Validate()
	if err != nil || res.Repaired != 0 {
		t.Fatalf("second validate = %+v, %v", res, err)
	}
}

func TestAddressValidate_IndexOwnerMismatch(t *testing.T) {
	db := storage.NewMemory()
	b := newBackend(t, db)
	saveAddresses(t, b, 2)

	// Point index 0 at the address stored under index 1.
	if err := raw(db, partAddress).Put(key(prefixAddrIndex, keys.IndexKey(0)), []byte("b")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Addresses().Validate(); !errors.Is(err, store.ErrInconsistentDatabase) {
		t.Fatalf("validate error = %v, want ErrInconsistentDatabase", err)
	}
}

func TestHistoryValidate_RepairsMissingTimestamp(t *testing.T) {
	db := storage.NewMemory()
	b := newBackend(t, db)
	older := &types.HistoryTx{TxID: txid(1), Timestamp: 10}
	newer := &types.HistoryTx{TxID: txid(2), Timestamp: 20}
	for _, tx := range []*types.HistoryTx{older, newer} {
		if err := b.History().Save(tx); err != nil {
			t.Fatal(err)
		}
	}

	if err := raw(db, partHistory).Delete(txTimeKey(older)); err != nil {
		t.Fatal(err)
	}
	txs, err := store.Collect(b.History().Iter(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 {
		t.Fatalf("iter before repair returned %d txs, want 1", len(txs))
	}

	res, err := b.History().Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Repaired != 1 || res.Count != 2 {
		t.Fatalf("validate result = %+v", res)
	}
	txs, err = store.Collect(b.History().Iter(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 || txs[0].TxID != newer.TxID || txs[1].TxID != older.TxID {
		t.Fatalf("iter after repair = %+v, want newest first", txs)
	}
}

func TestHistoryIter_CorruptTimestampEntry(t *testing.T) {
	db := storage.NewMemory()
	b := newBackend(t, db)
	tx := &types.HistoryTx{TxID: txid(1), Timestamp: 10}
	if err := b.History().Save(tx); err != nil {
		t.Fatal(err)
	}

	if err := raw(db, partHistory).Put(txTimeKey(tx), []byte("short")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Collect(b.History().Iter("")); !errors.Is(err, store.ErrInconsistentDatabase) {
		t.Fatalf("iter error = %v, want ErrInconsistentDatabase", err)
	}
}

func TestCommit_CancelsOnError(t *testing.T) {
	errAbort := errors.New("abort")
	bdb, err := storage.NewBadgerWithOptions("", storage.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bdb.Close() })

	for name, db := range map[string]storage.DB{"memory": storage.NewMemory(), "badger": bdb} {
		t.Run(name, func(t *testing.T) {
			p := storage.NewPrefixDB(db, []byte("t/"))
			err := commit(p, func(b storage.Batch) error {
				if err := b.Put([]byte("k"), []byte("v")); err != nil {
					return err
				}
				return errAbort
			})
			if !errors.Is(err, errAbort) {
				t.Fatalf("commit error = %v, want %v", err, errAbort)
			}
			if ok, _ := p.Has([]byte("k")); ok {
				t.Fatal("write from failed batch was applied")
			}

			if err := commit(p, func(b storage.Batch) error { return b.Put([]byte("k"), []byte("v")) }); err != nil {
				t.Fatal(err)
			}
			if ok, _ := p.Has([]byte("k")); !ok {
				t.Fatal("write from later batch missing")
			}
		})
	}
}
