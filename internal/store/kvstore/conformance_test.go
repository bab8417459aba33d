package kvstore

import (
	"fmt"
	"testing"

	"github.com/Klingon-tech/klingnet-walletstore/internal/storage"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store/storetest"
)

func TestConformance_MemoryDB(t *testing.T) {
	storetest.Run(t, func(t testing.TB, opts ...store.Option) *store.Store {
		b, err := New(storage.NewMemory(), testWallet)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return store.New(b, opts...)
	})
}

func TestConformance_Badger(t *testing.T) {
	if testing.Short() {
		t.Skip("badger conformance run skipped in short mode")
	}
	db, err := storage.NewBadgerWithOptions("", storage.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadgerWithOptions: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Every store is a fresh wallet partition of one shared database.
	var n int
	storetest.Run(t, func(t testing.TB, opts ...store.Option) *store.Store {
		n++
		b, err := New(db, fmt.Sprintf("%016x", n))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return store.New(b, opts...)
	})
}
