// Package storetest is the conformance suite every store backend must pass.
package storetest

import (
	"strings"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Factory returns a fresh, empty store. Implementations register cleanup
// on t.
type Factory func(t testing.TB, opts ...store.Option) *store.Store

// Token1 is a non-native token uid used by the suite.
var Token1 = strings.Repeat("01", types.HashSize)

// Epoch is the start time of the suite's test clocks.
var Epoch = time.Unix(1_700_000_000, 0)

// TxID returns a deterministic tx id whose hex form sorts by n.
func TxID(n int) types.Hash {
	var h types.Hash
	h[0] = byte(n >> 8)
	h[1] = byte(n)
	h[31] = 0x01
	return h
}

// Run runs the whole suite against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, Factory)
	}{
		{"AddressSaveAndLookup", testAddressSaveAndLookup},
		{"AddressDuplicate", testAddressDuplicate},
		{"AddressCountAndValidate", testAddressCountAndValidate},
		{"AddressMeta", testAddressMeta},
		{"CurrentAddress", testCurrentAddress},
		{"CurrentAddressClamp", testCurrentAddressClamp},
		{"HistoryOrder", testHistoryOrder},
		{"HistoryTokenFilter", testHistoryTokenFilter},
		{"HistoryDelete", testHistoryDelete},
		{"TokenRegistry", testTokenRegistry},
		{"TokenMeta", testTokenMeta},
		{"UtxoRoundTrip", testUtxoRoundTrip},
		{"UtxoValidateConsistent", testUtxoValidateConsistent},
		{"UtxoIndexBijection", testUtxoIndexBijection},
		{"SelectTarget", testSelectTarget},
		{"SelectTimelock", testSelectTimelock},
		{"SelectHeightLock", testSelectHeightLock},
		{"SelectBoundsAndOrder", testSelectBoundsAndOrder},
		{"SelectFilterAddress", testSelectFilterAddress},
		{"SelectAuthorities", testSelectAuthorities},
		{"SelectEarlyClose", testSelectEarlyClose},
		{"SelectInvalid", testSelectInvalid},
		{"SelectTermination", testSelectTermination},
		{"LockedUtxos", testLockedUtxos},
		{"WalletScalars", testWalletScalars},
		{"ScanPolicy", testScanPolicy},
		{"ScanPolicyRoundTrip", testScanPolicyRoundTrip},
		{"CurrentAddressEmptyWallet", testCurrentAddressEmptyWallet},
		{"CleanStorage", testCleanStorage},
		{"Validate", testValidate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.fn(t, newStore) })
	}
}

func saveAddresses(t require.TestingT, s *store.Store, n int) {
	for i := range n {
		require.NoError(t, s.SaveAddress(&types.AddressInfo{Base58: addr(i), Bip32Index: uint32(i)}))
	}
}

func addr(i int) string {
	return "H" + strings.Repeat("x", 3) + string(rune('A'+i%26)) + string(rune('a'+i/26))
}

func utxo(n int, token, address string, value uint64) *types.Utxo {
	return &types.Utxo{
		TxID:    TxID(n),
		Token:   token,
		Address: address,
		Value:   value,
		Type:    types.DefaultTxVersion,
	}
}

func values(t require.TestingT, c *store.Cursor[*types.Utxo]) []uint64 {
	us, err := store.Collect(c)
	require.NoError(t, err)
	out := make([]uint64, 0, len(us))
	for _, u := range us {
		out = append(out, u.Value)
	}
	return out
}

func testAddressSaveAndLookup(t *testing.T, newStore Factory) {
	s := newStore(t)
	saveAddresses(t, s, 5)

	for i := range 5 {
		info, err := s.Addresses().AtIndex(uint32(i))
		require.NoError(t, err)
		require.NotNil(t, info)
		require.Equal(t, addr(i), info.Base58)

		got, err := s.Addresses().Get(addr(i))
		require.NoError(t, err)
		require.Equal(t, uint32(i), got.Bip32Index)
	}

	info, err := s.Addresses().AtIndex(10)
	require.NoError(t, err)
	require.Nil(t, info)

	ok, err := s.Addresses().Exists("nope")
	require.NoError(t, err)
	require.False(t, ok)

	all, err := store.Collect(s.Addresses().Iter())
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, info := range all {
		require.Equal(t, uint32(i), info.Bip32Index)
	}

	require.ErrorIs(t, s.SaveAddress(&types.AddressInfo{}), store.ErrInvalidArgument)
}

func testAddressDuplicate(t *testing.T, newStore Factory) {
	s := newStore(t)
	saveAddresses(t, s, 1)
	require.ErrorIs(t, s.Addresses().Save(&types.AddressInfo{Base58: addr(0), Bip32Index: 9}), store.ErrDuplicateKey)
	require.ErrorIs(t, s.Addresses().Save(&types.AddressInfo{Base58: "other", Bip32Index: 0}), store.ErrDuplicateKey)
}

func testAddressCountAndValidate(t *testing.T, newStore Factory) {
	s := newStore(t)
	saveAddresses(t, s, 5)

	n, err := s.Addresses().Count()
	require.NoError(t, err)
	require.Equal(t, uint64(5), n)

	res, err := s.Addresses().Validate()
	require.NoError(t, err)
	require.Equal(t, int64(0), res.FirstIndex)
	require.Equal(t, int64(4), res.LastIndex)
	require.Zero(t, res.Repaired)

	n, err = s.Addresses().Count()
	require.NoError(t, err)
	require.Equal(t, uint64(5), n)

	empty := newStore(t)
	res, err = empty.Addresses().Validate()
	require.NoError(t, err)
	require.Equal(t, int64(-1), res.FirstIndex)
	require.Equal(t, int64(-1), res.LastIndex)
}

func testAddressMeta(t *testing.T, newStore Factory) {
	s := newStore(t)
	saveAddresses(t, s, 1)

	meta, err := s.Addresses().GetMeta(addr(0))
	require.NoError(t, err)
	require.Nil(t, meta)

	want := &types.AddressMetadata{
		NumTransactions: 2,
		Balance: map[string]types.TokenBalance{
			types.NativeTokenUID: {Tokens: types.Balance{Unlocked: 5, Locked: 1}},
		},
	}
	require.NoError(t, s.Addresses().SetMeta(addr(0), want))
	got, err := s.Addresses().GetMeta(addr(0))
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.NoError(t, s.CleanMetadata())
	got, err = s.Addresses().GetMeta(addr(0))
	require.NoError(t, err)
	require.Nil(t, got)
}

func testCurrentAddress(t *testing.T, newStore Factory) {
	s := newStore(t)
	_, err := s.GetCurrentAddress(false)
	require.ErrorIs(t, err, store.ErrAddressNotLoaded)

	saveAddresses(t, s, 3)
	wd, err := s.Wallet().WalletData()
	require.NoError(t, err)
	require.Equal(t, int64(0), wd.CurrentAddressIndex)
	require.Equal(t, int64(2), wd.LastLoadedAddressIndex)

	a, err := s.GetCurrentAddress(false)
	require.NoError(t, err)
	require.Equal(t, addr(0), a)

	for i := range 3 {
		a, err := s.GetCurrentAddress(true)
		require.NoError(t, err)
		require.Equal(t, addr(i), a)
	}
	// The pointer is pinned at the last loaded address.
	a, err = s.GetCurrentAddress(true)
	require.NoError(t, err)
	require.Equal(t, addr(2), a)

	require.ErrorIs(t, s.SetCurrentAddressIndex(3), store.ErrInvalidArgument)
	require.NoError(t, s.SetCurrentAddressIndex(1))
	a, err = s.GetCurrentAddress(false)
	require.NoError(t, err)
	require.Equal(t, addr(1), a)
}

func testCurrentAddressClamp(t *testing.T, newStore Factory) {
	rapid.Check(t, func(rt *rapid.T) {
		s := newStore(t)
		loaded := rapid.IntRange(1, 15).Draw(rt, "loaded")
		saveAddresses(rt, s, loaded)

		steps := rapid.SliceOfN(rapid.Bool(), 0, 40).Draw(rt, "markAsUsed")
		for _, mark := range steps {
			if _, err := s.GetCurrentAddress(mark); err != nil {
				rt.Fatalf("get current address: %v", err)
			}
			wd, err := s.Wallet().WalletData()
			if err != nil {
				rt.Fatal(err)
			}
			if wd.CurrentAddressIndex > wd.LastLoadedAddressIndex {
				rt.Fatalf("current %d passed last loaded %d", wd.CurrentAddressIndex, wd.LastLoadedAddressIndex)
			}
		}

		// More loaded addresses widen the window again.
		if err := s.SaveAddress(&types.AddressInfo{Base58: addr(loaded), Bip32Index: uint32(loaded)}); err != nil {
			rt.Fatal(err)
		}
		wd, err := s.Wallet().WalletData()
		if err != nil {
			rt.Fatal(err)
		}
		if wd.LastLoadedAddressIndex != int64(loaded) {
			rt.Fatalf("last loaded = %d, want %d", wd.LastLoadedAddressIndex, loaded)
		}
	})
}

func testHistoryOrder(t *testing.T, newStore Factory) {
	s := newStore(t)
	for i, ts := range []uint32{10, 30, 20} {
		require.NoError(t, s.History().Save(&types.HistoryTx{TxID: TxID(i + 1), Timestamp: ts}))
	}

	txs, err := store.Collect(s.History().Iter(""))
	require.NoError(t, err)
	var got []uint32
	for _, tx := range txs {
		got = append(got, tx.Timestamp)
	}
	require.Equal(t, []uint32{30, 20, 10}, got)

	n, err := s.History().Count()
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)

	// Re-saving with a new timestamp moves the tx in the order.
	require.NoError(t, s.History().Save(&types.HistoryTx{TxID: TxID(1), Timestamp: 40}))
	txs, err = store.Collect(s.History().Iter(""))
	require.NoError(t, err)
	require.Len(t, txs, 3)
	require.Equal(t, TxID(1), txs[0].TxID)

	require.ErrorIs(t, s.History().Save(&types.HistoryTx{}), store.ErrInvalidArgument)
}

func testHistoryTokenFilter(t *testing.T, newStore Factory) {
	s := newStore(t)
	native := &types.HistoryTx{
		TxID: TxID(1), Timestamp: 1,
		Outputs: []types.TxOutput{{Value: 1, Token: types.NativeTokenUID}},
	}
	custom := &types.HistoryTx{
		TxID: TxID(2), Timestamp: 2,
		Inputs:  []types.TxInput{{TxID: TxID(1), Value: 1, Token: types.NativeTokenUID}},
		Outputs: []types.TxOutput{{Value: 9, Token: Token1}},
	}
	require.NoError(t, s.History().Save(native))
	require.NoError(t, s.History().Save(custom))

	txs, err := store.Collect(s.History().Iter(Token1))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, custom.TxID, txs[0].TxID)

	txs, err = store.Collect(s.History().Iter(types.NativeTokenUID))
	require.NoError(t, err)
	require.Len(t, txs, 2)
}

func testHistoryDelete(t *testing.T, newStore Factory) {
	s := newStore(t)
	tx := &types.HistoryTx{TxID: TxID(1), Timestamp: 7, Outputs: []types.TxOutput{{Value: 3, Token: Token1}}}
	require.NoError(t, s.History().Save(tx))

	got, err := s.History().Get(tx.TxID)
	require.NoError(t, err)
	require.Equal(t, tx.Outputs, got.Outputs)

	require.NoError(t, s.History().Delete(tx.TxID))
	got, err = s.History().Get(tx.TxID)
	require.NoError(t, err)
	require.Nil(t, got)

	n, err := store.Count(s.History().Iter(""))
	require.NoError(t, err)
	require.Zero(t, n)

	// Deleting an unknown tx is not an error.
	require.NoError(t, s.History().Delete(TxID(99)))
}

func testTokenRegistry(t *testing.T, newStore Factory) {
	s := newStore(t)
	tok := &types.TokenData{UID: Token1, Name: "Token One", Symbol: "TK1"}
	require.NoError(t, s.Tokens().Save(tok))
	require.ErrorIs(t, s.Tokens().Save(tok), store.ErrDuplicateKey)
	require.ErrorIs(t, s.Tokens().Save(&types.TokenData{UID: "zz"}), store.ErrInvalidArgument)

	ok, err := s.Tokens().IsRegistered(Token1)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Tokens().Register(tok))
	ok, err = s.Tokens().IsRegistered(Token1)
	require.NoError(t, err)
	require.True(t, ok)

	reg, err := store.Collect(s.Tokens().RegisteredIter())
	require.NoError(t, err)
	require.Len(t, reg, 1)
	require.Equal(t, "TK1", reg[0].Symbol)

	// Deleting the known token keeps the user's registration.
	require.NoError(t, s.Tokens().Delete([]string{Token1}))
	info, err := s.Tokens().Get(Token1)
	require.NoError(t, err)
	require.Nil(t, info)
	ok, err = s.Tokens().IsRegistered(Token1)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Tokens().Unregister(Token1))
	ok, err = s.Tokens().IsRegistered(Token1)
	require.NoError(t, err)
	require.False(t, ok)
}

func testTokenMeta(t *testing.T, newStore Factory) {
	s := newStore(t)
	native := &types.TokenData{UID: types.NativeTokenUID, Name: "Native", Symbol: "NAT"}
	tok := &types.TokenData{UID: Token1, Name: "Token One", Symbol: "TK1"}
	require.NoError(t, s.Tokens().Save(native))
	require.NoError(t, s.Tokens().Save(tok))

	meta := &types.TokenMetadata{
		NumTransactions: 3,
		Balance: types.TokenBalance{
			Tokens:      types.Balance{Unlocked: 100, Locked: 5},
			Authorities: types.AuthorityBalance{Mint: types.Balance{Unlocked: 1}},
		},
	}
	require.NoError(t, s.Tokens().EditMeta(Token1, meta))

	all, err := store.Collect(s.Tokens().Iter())
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, types.NativeTokenUID, all[0].UID)
	require.True(t, all[0].Balance.IsZero())
	require.Equal(t, *meta, all[1].TokenMetadata)

	info, err := s.Tokens().Get(Token1)
	require.NoError(t, err)
	require.Equal(t, uint64(105), info.Balance.Tokens.Total())

	require.NoError(t, s.Tokens().ClearMeta())
	got, err := s.Tokens().GetMeta(Token1)
	require.NoError(t, err)
	require.Nil(t, got)
	info, err = s.Tokens().Get(Token1)
	require.NoError(t, err)
	require.Equal(t, "TK1", info.Symbol)
	require.True(t, info.Balance.IsZero())
}

func testUtxoRoundTrip(t *testing.T, newStore Factory) {
	s := newStore(t)
	lock, height := uint32(123), uint32(45)
	u := &types.Utxo{
		TxID: TxID(1), Index: 2, Token: Token1, Address: "addr",
		Value: 1000, Timelock: &lock, Height: &height, Type: types.BlockVersion,
	}
	require.NoError(t, s.Utxos().Save(u))

	got, err := s.Utxos().Get(u.Outpoint())
	require.NoError(t, err)
	require.True(t, got.Equal(u), "got %+v want %+v", got, u)

	n, err := s.Utxos().Count()
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)

	require.NoError(t, s.Utxos().Delete(u.Outpoint()))
	got, err = s.Utxos().Get(u.Outpoint())
	require.NoError(t, err)
	require.Nil(t, got)

	vs := values(t, s.SelectUtxos(store.SelectOptions{Token: Token1}, 0))
	require.Empty(t, vs)

	require.ErrorIs(t, s.Utxos().Save(&types.Utxo{TxID: TxID(1), Token: "bad"}), store.ErrInvalidArgument)
	require.ErrorIs(t, s.Utxos().Save(&types.Utxo{TxID: TxID(1), Token: Token1, Authorities: 0x10}), store.ErrInvalidArgument)
}

func testUtxoValidateConsistent(t *testing.T, newStore Factory) {
	s := newStore(t)
	for i := range 10 {
		address := ""
		if i%2 == 0 {
			address = "addr"
		}
		require.NoError(t, s.Utxos().Save(utxo(i, types.NativeTokenUID, address, uint64(i+1))))
	}
	res, err := s.Utxos().Validate()
	require.NoError(t, err)
	require.Equal(t, uint64(10), res.Count)
	require.Zero(t, res.Repaired)

	all, err := store.Collect(s.Utxos().Iter())
	require.NoError(t, err)
	require.Len(t, all, 10)

	// Address-less outputs are only reachable without an address filter.
	vs := values(t, s.SelectUtxos(store.SelectOptions{FilterAddress: "addr"}, 0))
	require.Equal(t, []uint64{1, 3, 5, 7, 9}, vs)
}

// testUtxoIndexBijection replays random saves, moves and deletes and checks
// that every selection range yields exactly the stored outputs it covers.
func testUtxoIndexBijection(t *testing.T, newStore Factory) {
	tokens := []string{types.NativeTokenUID, Token1}
	addresses := []string{"alice", "bob", ""}
	auths := []uint8{0, types.AuthorityMint, types.AuthorityAll}

	rapid.Check(t, func(rt *rapid.T) {
		s := newStore(t)
		model := make(map[types.Outpoint]*types.Utxo)

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for range steps {
			n := rapid.IntRange(0, 7).Draw(rt, "outpoint")
			op := types.Outpoint{TxID: TxID(n), Index: uint16(n % 2)}
			if rapid.IntRange(0, 3).Draw(rt, "op") == 0 {
				require.NoError(rt, s.Utxos().Delete(op))
				delete(model, op)
				continue
			}
			u := &types.Utxo{
				TxID:        op.TxID,
				Index:       op.Index,
				Token:       rapid.SampledFrom(tokens).Draw(rt, "token"),
				Address:     rapid.SampledFrom(addresses).Draw(rt, "address"),
				Authorities: rapid.SampledFrom(auths).Draw(rt, "authorities"),
				Value:       rapid.Uint64Range(1, 1000).Draw(rt, "value"),
				Type:        types.DefaultTxVersion,
			}
			require.NoError(rt, s.Utxos().Save(u))
			model[op] = u
		}

		res, err := s.Utxos().Validate()
		require.NoError(rt, err)
		require.Zero(rt, res.Repaired)
		require.Equal(rt, uint64(len(model)), res.Count)

		for _, token := range tokens {
			for _, auth := range auths {
				for _, address := range append([]string{""}, addresses[:2]...) {
					want := make(map[types.Outpoint]*types.Utxo)
					for op, u := range model {
						if u.Token == token && u.Authorities == auth && (address == "" || u.Address == address) {
							want[op] = u
						}
					}

					q := store.SelectOptions{Token: token, Authorities: auth, FilterAddress: address}.Query()
					got, err := store.Collect(s.Utxos().Scan(q))
					require.NoError(rt, err)
					require.Len(rt, got, len(want), "token %s authorities %d address %q", token[:4], auth, address)
					for _, u := range got {
						m, ok := want[u.Outpoint()]
						require.True(rt, ok, "unexpected output %v", u.Outpoint())
						require.True(rt, m.Equal(u), "got %+v want %+v", u, m)
						delete(want, u.Outpoint())
					}
				}
			}
		}
	})
}

func testSelectTarget(t *testing.T, newStore Factory) {
	s := newStore(t)
	require.NoError(t, s.Utxos().Save(utxo(1, Token1, "addr", 30)))
	require.NoError(t, s.Utxos().Save(utxo(2, Token1, "addr", 80)))
	require.NoError(t, s.Utxos().Save(utxo(3, Token1, "addr", 90)))

	vs := values(t, s.SelectUtxos(store.SelectOptions{Token: Token1, TargetAmount: 100}, 0))
	require.Equal(t, []uint64{30, 80}, vs)
}

func testSelectTimelock(t *testing.T, newStore Factory) {
	clk := clock.NewTestClock(Epoch)
	s := newStore(t, store.WithClock(clk))

	future := uint32(Epoch.Unix() + 3600)
	past := uint32(Epoch.Unix() - 1)
	locked := utxo(1, types.NativeTokenUID, "addr", 10)
	locked.Timelock = &future
	open := utxo(2, types.NativeTokenUID, "addr", 20)
	open.Timelock = &past
	require.NoError(t, s.Utxos().Save(locked))
	require.NoError(t, s.Utxos().Save(open))

	avail := store.SelectOptions{OnlyAvailable: true}
	require.Equal(t, []uint64{20}, values(t, s.SelectUtxos(avail, 0)))
	require.Equal(t, []uint64{10, 20}, values(t, s.SelectUtxos(store.SelectOptions{}, 0)))
	require.True(t, s.IsUtxoLocked(locked, 0, 0))

	// A timelock equal to now is spendable.
	clk.SetTime(time.Unix(int64(future), 0))
	require.Equal(t, []uint64{10, 20}, values(t, s.SelectUtxos(avail, 0)))
	require.False(t, s.IsUtxoLocked(locked, 0, 0))
}

func testSelectHeightLock(t *testing.T, newStore Factory) {
	s := newStore(t)
	height := uint32(100)
	reward := utxo(1, types.NativeTokenUID, "addr", 50)
	reward.Type = types.BlockVersion
	reward.Height = &height
	tx := utxo(2, types.NativeTokenUID, "addr", 60)
	tx.Height = &height
	require.NoError(t, s.Utxos().Save(reward))
	require.NoError(t, s.Utxos().Save(tx))

	opts := store.SelectOptions{OnlyAvailable: true, RewardLock: 10}
	require.Equal(t, []uint64{60}, values(t, s.SelectUtxos(opts, 110)))
	require.Equal(t, []uint64{50, 60}, values(t, s.SelectUtxos(opts, 111)))
	require.True(t, s.IsUtxoLocked(reward, 105, 10))
	require.False(t, s.IsUtxoLocked(tx, 105, 10))
}

func testSelectBoundsAndOrder(t *testing.T, newStore Factory) {
	s := newStore(t)
	for i, v := range []uint64{40, 10, 30, 20} {
		require.NoError(t, s.Utxos().Save(utxo(i, types.NativeTokenUID, "addr", v)))
	}
	// Another token never leaks into the range.
	require.NoError(t, s.Utxos().Save(utxo(9, Token1, "addr", 25)))

	tests := []struct {
		name string
		opts store.SelectOptions
		want []uint64
	}{
		{"all", store.SelectOptions{}, []uint64{10, 20, 30, 40}},
		{"desc", store.SelectOptions{Order: store.OrderDesc}, []uint64{40, 30, 20, 10}},
		{"bounds", store.SelectOptions{AmountBiggerThan: 20, AmountSmallerThan: 30}, []uint64{20, 30}},
		{"bounds desc", store.SelectOptions{AmountBiggerThan: 20, AmountSmallerThan: 30, Order: store.OrderDesc}, []uint64{30, 20}},
		{"max amount", store.SelectOptions{MaxAmount: 50}, []uint64{10, 20}},
		{"max amount desc", store.SelectOptions{MaxAmount: 50, Order: store.OrderDesc}, []uint64{40, 10}},
		{"max utxos", store.SelectOptions{MaxUtxos: 3}, []uint64{10, 20, 30}},
		{"target desc", store.SelectOptions{TargetAmount: 60, Order: store.OrderDesc}, []uint64{40, 30}},
		{"filter", store.SelectOptions{Filter: func(u *types.Utxo) bool { return u.Value != 20 }}, []uint64{10, 30, 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, values(t, s.SelectUtxos(tt.opts, 0)))
		})
	}
}

func testSelectFilterAddress(t *testing.T, newStore Factory) {
	s := newStore(t)
	require.NoError(t, s.Utxos().Save(utxo(1, types.NativeTokenUID, "alice", 5)))
	require.NoError(t, s.Utxos().Save(utxo(2, types.NativeTokenUID, "bob", 6)))
	require.NoError(t, s.Utxos().Save(utxo(3, types.NativeTokenUID, "alice", 7)))
	// "alice2" shares a prefix with "alice" but is another address.
	require.NoError(t, s.Utxos().Save(utxo(4, types.NativeTokenUID, "alice2", 1)))

	require.Equal(t, []uint64{5, 7}, values(t, s.SelectUtxos(store.SelectOptions{FilterAddress: "alice"}, 0)))
	require.Equal(t, []uint64{6}, values(t, s.SelectUtxos(store.SelectOptions{FilterAddress: "bob"}, 0)))
	require.Empty(t, values(t, s.SelectUtxos(store.SelectOptions{FilterAddress: "carol"}, 0)))

	// Moving an output to another address updates the address index.
	moved := utxo(3, types.NativeTokenUID, "bob", 7)
	require.NoError(t, s.Utxos().Save(moved))
	require.Equal(t, []uint64{5}, values(t, s.SelectUtxos(store.SelectOptions{FilterAddress: "alice"}, 0)))
	require.Equal(t, []uint64{6, 7}, values(t, s.SelectUtxos(store.SelectOptions{FilterAddress: "bob"}, 0)))
}

func testSelectAuthorities(t *testing.T, newStore Factory) {
	s := newStore(t)
	mint := utxo(1, Token1, "addr", uint64(types.AuthorityMint))
	mint.Authorities = types.AuthorityMint
	melt := utxo(2, Token1, "addr", uint64(types.AuthorityMelt))
	melt.Authorities = types.AuthorityMelt
	require.NoError(t, s.Utxos().Save(mint))
	require.NoError(t, s.Utxos().Save(melt))
	require.NoError(t, s.Utxos().Save(utxo(3, Token1, "addr", 500)))

	us, err := store.Collect(s.SelectUtxos(store.SelectOptions{Token: Token1, Authorities: types.AuthorityMint}, 0))
	require.NoError(t, err)
	require.Len(t, us, 1)
	require.Equal(t, mint.TxID, us[0].TxID)

	require.Equal(t, []uint64{500}, values(t, s.SelectUtxos(store.SelectOptions{Token: Token1}, 0)))
}

func testSelectEarlyClose(t *testing.T, newStore Factory) {
	s := newStore(t)
	for i := range 20 {
		require.NoError(t, s.Utxos().Save(utxo(i, types.NativeTokenUID, "addr", uint64(i+1))))
	}
	c := s.SelectUtxos(store.SelectOptions{}, 0)
	require.True(t, c.Next())
	require.Equal(t, uint64(1), c.Value().Value)
	require.NoError(t, c.Close())
	require.False(t, c.Next())
	require.NoError(t, c.Err())

	// The store is still writable and readable after an abandoned cursor.
	require.NoError(t, s.Utxos().Save(utxo(99, types.NativeTokenUID, "addr", 100)))
	n, err := store.Count(s.SelectUtxos(store.SelectOptions{}, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(21), n)
}

func testSelectInvalid(t *testing.T, newStore Factory) {
	s := newStore(t)
	for _, opts := range []store.SelectOptions{
		{Token: "nope"},
		{Authorities: 0x40},
		{MaxUtxos: -1},
		{Order: "sideways"},
	} {
		c := s.SelectUtxos(opts, 0)
		require.False(t, c.Next())
		require.ErrorIs(t, c.Err(), store.ErrInvalidArgument)
		require.NoError(t, c.Close())
	}
}

// testSelectTermination checks that selection yields exactly the shortest
// value-ordered prefix reaching the target, capped by the output count.
func testSelectTermination(t *testing.T, newStore Factory) {
	rapid.Check(t, func(rt *rapid.T) {
		s := newStore(t)
		vals := rapid.SliceOfN(rapid.Uint64Range(1, 1000), 1, 30).Draw(rt, "values")
		target := rapid.Uint64Range(0, 20000).Draw(rt, "target")
		maxUtxos := rapid.IntRange(0, 10).Draw(rt, "maxUtxos")

		type cand struct {
			n int
			v uint64
		}
		cands := make([]cand, len(vals))
		for i, v := range vals {
			if err := s.Utxos().Save(utxo(i, types.NativeTokenUID, "addr", v)); err != nil {
				rt.Fatal(err)
			}
			cands[i] = cand{i, v}
		}
		// Selection order: value, then tx id.
		for i := 1; i < len(cands); i++ {
			for j := i; j > 0 && (cands[j].v < cands[j-1].v || cands[j].v == cands[j-1].v && cands[j].n < cands[j-1].n); j-- {
				cands[j], cands[j-1] = cands[j-1], cands[j]
			}
		}

		var want []uint64
		var sum uint64
		for _, c := range cands {
			want = append(want, c.v)
			sum += c.v
			if target > 0 && sum >= target {
				break
			}
			if maxUtxos > 0 && len(want) >= maxUtxos {
				break
			}
		}

		opts := store.SelectOptions{TargetAmount: target, MaxUtxos: maxUtxos}
		us, err := store.Collect(s.SelectUtxos(opts, 0))
		if err != nil {
			rt.Fatal(err)
		}
		got := make([]uint64, 0, len(us))
		for _, u := range us {
			got = append(got, u.Value)
		}
		if len(got) != len(want) {
			rt.Fatalf("selected %v, want %v", got, want)
		}
		for i := range got {
			if got[i] != want[i] {
				rt.Fatalf("selected %v, want %v", got, want)
			}
		}
	})
}

func testLockedUtxos(t *testing.T, newStore Factory) {
	s := newStore(t)
	future := uint32(Epoch.Unix() + 60)
	tx := &types.HistoryTx{
		TxID: TxID(1), Timestamp: 1,
		Outputs: []types.TxOutput{
			{Value: 5, Token: types.NativeTokenUID, Decoded: types.DecodedOutput{Address: "addr", Timelock: &future}},
			{Value: 6, Token: types.NativeTokenUID},
		},
	}
	require.NoError(t, s.Utxos().SaveLocked(&types.LockedUtxo{Tx: tx, Index: 0}))
	require.NoError(t, s.Utxos().SaveLocked(&types.LockedUtxo{Tx: tx, Index: 1}))
	require.ErrorIs(t, s.Utxos().SaveLocked(&types.LockedUtxo{Tx: tx, Index: 2}), store.ErrInvalidArgument)
	require.ErrorIs(t, s.Utxos().SaveLocked(&types.LockedUtxo{Index: 0}), store.ErrInvalidArgument)

	l, err := s.Utxos().GetLocked(types.Outpoint{TxID: tx.TxID, Index: 0})
	require.NoError(t, err)
	require.NotNil(t, l)
	require.Equal(t, future, *l.Tx.Outputs[0].Decoded.Timelock)

	all, err := store.Collect(s.Utxos().LockedIter())
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, uint16(0), all[0].Index)
	require.Equal(t, uint16(1), all[1].Index)

	// Locked outputs are disjoint from the spendable set.
	n, err := s.Utxos().Count()
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, s.Utxos().Unlock(types.Outpoint{TxID: tx.TxID, Index: 0}))
	l, err = s.Utxos().GetLocked(types.Outpoint{TxID: tx.TxID, Index: 0})
	require.NoError(t, err)
	require.Nil(t, l)
	n, err = s.LockedUtxoCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
}

func testWalletScalars(t *testing.T, newStore Factory) {
	s := newStore(t)
	wd, err := s.Wallet().WalletData()
	require.NoError(t, err)
	require.Equal(t, types.DefaultWalletData(), *wd)

	require.NoError(t, s.SetBestBlockHeight(1234))
	h, err := s.BestBlockHeight()
	require.NoError(t, err)
	require.Equal(t, uint32(1234), h)

	require.NoError(t, s.SetLastUsedAddressIndex(3))
	require.ErrorIs(t, s.SetLastUsedAddressIndex(-2), store.ErrInvalidArgument)
	wd, err = s.Wallet().WalletData()
	require.NoError(t, err)
	require.Equal(t, int64(3), wd.LastUsedAddressIndex)

	v, err := s.Wallet().GetItem("note")
	require.NoError(t, err)
	require.Nil(t, v)
	require.NoError(t, s.Wallet().SetItem("note", []byte("hello")))
	v, err = s.Wallet().GetItem("note")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)
	require.NoError(t, s.Wallet().DeleteItem("note"))
	v, err = s.Wallet().GetItem("note")
	require.NoError(t, err)
	require.Nil(t, v)
}

func testScanPolicy(t *testing.T, newStore Factory) {
	s := newStore(t)
	g, err := s.GapLimit()
	require.NoError(t, err)
	require.Equal(t, uint32(types.DefaultGapLimit), g)

	require.NoError(t, s.SetGapLimit(50))
	g, err = s.GapLimit()
	require.NoError(t, err)
	require.Equal(t, uint32(50), g)
	_, _, ok, err := s.IndexLimit()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetScanPolicy(types.IndexLimitPolicy(10, 20)))
	start, end, ok, err := s.IndexLimit()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(10), start)
	require.Equal(t, uint32(20), end)
	// The gap limit survives a switch of policy.
	g, err = s.GapLimit()
	require.NoError(t, err)
	require.Equal(t, uint32(50), g)

	require.ErrorIs(t, s.SetScanPolicy(types.IndexLimitPolicy(5, 1)), store.ErrInvalidArgument)
	require.ErrorIs(t, s.SetScanPolicy(types.ScanPolicy{Kind: "xpub"}), store.ErrInvalidArgument)
	p, err := s.ScanPolicy()
	require.NoError(t, err)
	require.Equal(t, types.IndexLimitPolicy(10, 20), p)
}

// Every stored policy reads back exactly, including zero-valued fields.
func testScanPolicyRoundTrip(t *testing.T, newStore Factory) {
	s := newStore(t)
	for _, p := range []types.ScanPolicy{
		types.IndexLimitPolicy(10, 20),
		types.GapLimitPolicy(0),
		types.IndexLimitPolicy(0, 0),
		types.GapLimitPolicy(7),
		types.IndexLimitPolicy(0, 5),
	} {
		require.NoError(t, s.SetScanPolicy(p))
		got, err := s.ScanPolicy()
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
	g, err := s.GapLimit()
	require.NoError(t, err)
	require.Equal(t, uint32(7), g)

	require.NoError(t, s.SetGapLimit(0))
	g, err = s.GapLimit()
	require.NoError(t, err)
	require.Zero(t, g)
}

// No address is loaded on a fresh or reset wallet, so the current pointer
// cannot be moved onto one.
func testCurrentAddressEmptyWallet(t *testing.T, newStore Factory) {
	s := newStore(t)
	require.ErrorIs(t, s.SetCurrentAddressIndex(0), store.ErrInvalidArgument)
	require.NoError(t, s.SetCurrentAddressIndex(-1))

	saveAddresses(t, s, 2)
	require.NoError(t, s.SetCurrentAddressIndex(1))

	require.NoError(t, s.CleanStorage(false, true, false))
	wd, err := s.Wallet().WalletData()
	require.NoError(t, err)
	require.Equal(t, int64(-1), wd.LastLoadedAddressIndex)
	require.Equal(t, int64(-1), wd.CurrentAddressIndex)
	require.ErrorIs(t, s.SetCurrentAddressIndex(0), store.ErrInvalidArgument)

	// Saving again starts the window at the first saved address.
	saveAddresses(t, s, 1)
	wd, err = s.Wallet().WalletData()
	require.NoError(t, err)
	require.Equal(t, int64(0), wd.LastLoadedAddressIndex)
	require.Equal(t, int64(0), wd.CurrentAddressIndex)
}

func testCleanStorage(t *testing.T, newStore Factory) {
	s := newStore(t)
	saveAddresses(t, s, 3)
	require.NoError(t, s.History().Save(&types.HistoryTx{TxID: TxID(1), Timestamp: 1}))
	require.NoError(t, s.Utxos().Save(utxo(1, types.NativeTokenUID, "addr", 5)))
	require.NoError(t, s.Tokens().Save(&types.TokenData{UID: Token1}))
	require.NoError(t, s.Tokens().EditMeta(Token1, &types.TokenMetadata{NumTransactions: 1}))

	require.NoError(t, s.CleanStorage(true, false, false))
	n, err := s.History().Count()
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = s.Utxos().Count()
	require.NoError(t, err)
	require.Zero(t, n)
	meta, err := s.Tokens().GetMeta(Token1)
	require.NoError(t, err)
	require.Nil(t, meta)
	n, err = s.Addresses().Count()
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)

	require.NoError(t, s.CleanStorage(false, true, true))
	n, err = s.Addresses().Count()
	require.NoError(t, err)
	require.Zero(t, n)
	_, err = s.GetCurrentAddress(false)
	require.ErrorIs(t, err, store.ErrAddressNotLoaded)
	info, err := s.Tokens().Get(Token1)
	require.NoError(t, err)
	require.Nil(t, info)

	// The wallet can be repopulated from scratch.
	saveAddresses(t, s, 2)
	a, err := s.GetCurrentAddress(false)
	require.NoError(t, err)
	require.Equal(t, addr(0), a)
}

func testValidate(t *testing.T, newStore Factory) {
	s := newStore(t)
	saveAddresses(t, s, 4)
	for i := range 3 {
		require.NoError(t, s.History().Save(&types.HistoryTx{TxID: TxID(i), Timestamp: uint32(i)}))
		require.NoError(t, s.Utxos().Save(utxo(i, types.NativeTokenUID, addr(i), uint64(i+1))))
	}

	rep, err := s.Validate()
	require.NoError(t, err)
	require.Equal(t, uint64(4), rep.Addresses.Count)
	require.Equal(t, int64(3), rep.Addresses.LastIndex)
	require.Equal(t, uint64(3), rep.History.Count)
	require.Equal(t, uint64(3), rep.Utxos.Count)
	require.Zero(t, rep.Repaired())

	// A second pass over consistent data changes nothing.
	rep, err = s.Validate()
	require.NoError(t, err)
	require.Zero(t, rep.Repaired())
}
