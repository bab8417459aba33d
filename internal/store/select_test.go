package store

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-walletstore/internal/keys"
	"github.com/Klingon-tech/klingnet-walletstore/internal/ledger"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

var now = time.Unix(1_700_000_000, 0)

func u32(v uint32) *uint32 { return &v }

func candidates(vals ...uint64) *Cursor[*types.Utxo] {
	return NewCursor(func(yield func(*types.Utxo, error) bool) {
		for i, v := range vals {
			u := &types.Utxo{TxID: types.Hash{byte(i + 1)}, Token: types.NativeTokenUID, Value: v, Type: types.DefaultTxVersion}
			if !yield(u, nil) {
				return
			}
		}
	})
}

func selected(t *testing.T, c *Cursor[*types.Utxo]) []uint64 {
	t.Helper()
	us, err := Collect(c)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	var out []uint64
	for _, u := range us {
		out = append(out, u.Value)
	}
	return out
}

func equalValues(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSelectFrom(t *testing.T) {
	tests := []struct {
		name string
		vals []uint64
		opts SelectOptions
		want []uint64
	}{
		{"no bounds", []uint64{1, 2, 3}, SelectOptions{}, []uint64{1, 2, 3}},
		{"target", []uint64{30, 80, 90}, SelectOptions{TargetAmount: 100}, []uint64{30, 80}},
		{"target exact", []uint64{50, 50, 50}, SelectOptions{TargetAmount: 100}, []uint64{50, 50}},
		{"max utxos", []uint64{1, 2, 3}, SelectOptions{MaxUtxos: 2}, []uint64{1, 2}},
		{"max utxos binds first", []uint64{1, 2, 3}, SelectOptions{MaxUtxos: 1, TargetAmount: 6}, []uint64{1}},
		{"max amount skips", []uint64{10, 50, 20}, SelectOptions{MaxAmount: 35}, []uint64{10, 20}},
		{"max amount exact", []uint64{10, 25}, SelectOptions{MaxAmount: 35}, []uint64{10, 25}},
		{"filter", []uint64{1, 2, 3, 4}, SelectOptions{Filter: func(u *types.Utxo) bool { return u.Value%2 == 0 }}, []uint64{2, 4}},
		{"empty", nil, SelectOptions{TargetAmount: 1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selected(t, selectFrom(candidates(tt.vals...), tt.opts, ledger.Rules{}, 0, now))
			if !equalValues(got, tt.want) {
				t.Errorf("selected %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectFrom_SaturatingSum(t *testing.T) {
	got := selected(t, selectFrom(candidates(math.MaxUint64, 5), SelectOptions{}, ledger.Rules{}, 0, now))
	if !equalValues(got, []uint64{math.MaxUint64, 5}) {
		t.Fatalf("selected %v", got)
	}
}

func TestSelectFrom_ClosesCandidates(t *testing.T) {
	released := false
	cands := NewCursor(func(yield func(*types.Utxo, error) bool) {
		defer func() { released = true }()
		for i := 0; ; i++ {
			if !yield(&types.Utxo{Value: 10, Type: types.DefaultTxVersion}, nil) {
				return
			}
		}
	})
	got := selected(t, selectFrom(cands, SelectOptions{TargetAmount: 25}, ledger.Rules{}, 0, now))
	if len(got) != 3 {
		t.Fatalf("selected %d outputs, want 3", len(got))
	}
	if !released {
		t.Fatal("candidate cursor not released after stop")
	}
}

func TestSelectFrom_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	cands := NewCursor(func(yield func(*types.Utxo, error) bool) {
		if !yield(&types.Utxo{Value: 1}, nil) {
			return
		}
		yield(nil, boom)
	})
	c := selectFrom(cands, SelectOptions{}, ledger.Rules{}, 0, now)
	_, err := Collect(c)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestSelectFrom_OnlyAvailable(t *testing.T) {
	cands := NewCursor(func(yield func(*types.Utxo, error) bool) {
		outs := []*types.Utxo{
			{Value: 1, Type: types.DefaultTxVersion, Timelock: u32(uint32(now.Unix() + 1))},
			{Value: 2, Type: types.BlockVersion, Height: u32(100)},
			{Value: 3, Type: types.DefaultTxVersion, Height: u32(100)},
			{Value: 4, Type: types.DefaultTxVersion, Timelock: u32(uint32(now.Unix()))},
		}
		for _, u := range outs {
			if !yield(u, nil) {
				return
			}
		}
	})
	opts := SelectOptions{OnlyAvailable: true, RewardLock: 10}
	got := selected(t, selectFrom(cands, opts, ledger.Rules{}, 105, now))
	if !equalValues(got, []uint64{3, 4}) {
		t.Fatalf("selected %v, want [3 4]", got)
	}
}

// neverLocked is a lock policy that locks nothing.
type neverLocked struct{}

func (neverLocked) CanBeHeightLocked(uint8) bool               { return true }
func (neverLocked) IsHeightLocked(uint32, uint32, uint32) bool { return false }

func TestIsLocked_Policy(t *testing.T) {
	u := &types.Utxo{Type: types.BlockVersion, Height: u32(100)}
	if !IsLocked(ledger.Rules{}, u, 105, 10, now) {
		t.Error("ledger rules: want locked")
	}
	if IsLocked(neverLocked{}, u, 105, 10, now) {
		t.Error("custom policy ignored")
	}
	if IsLocked(ledger.Rules{}, &types.Utxo{}, 105, 10, now) {
		t.Error("output without height or timelock is locked")
	}
}

func TestSelectOptions_Query(t *testing.T) {
	q := SelectOptions{}.Query()
	want := keys.SelectionRange(0, types.NativeTokenUID, "", 0, math.MaxUint64)
	if q.Range != want || q.ByAddress || q.Reverse {
		t.Fatalf("default query = %+v", q)
	}

	q = SelectOptions{FilterAddress: "a", AmountBiggerThan: 5, AmountSmallerThan: 9, Order: OrderDesc}.Query()
	if !q.ByAddress || !q.Reverse {
		t.Fatalf("query = %+v", q)
	}
	if !q.Range.Contains(keys.Join("0", types.NativeTokenUID, "a", keys.AmountKey(9), "x")) {
		t.Error("upper bound is not inclusive")
	}
	if q.Range.Contains(keys.Join("0", types.NativeTokenUID, "a", keys.AmountKey(10), "x")) {
		t.Error("range includes values above the upper bound")
	}
	if q.Range.Contains(keys.Join("0", types.NativeTokenUID, "a", keys.AmountKey(4), "x")) {
		t.Error("range includes values below the lower bound")
	}
}

func TestSelectOptions_Validate(t *testing.T) {
	bad := []SelectOptions{
		{Token: "xyz"},
		{Authorities: 0x04},
		{MaxUtxos: -3},
		{Order: "random"},
	}
	for _, o := range bad {
		if err := o.validate(); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("validate(%+v) = %v, want ErrInvalidArgument", o, err)
		}
	}
	if err := (SelectOptions{Order: OrderDesc, Authorities: types.AuthorityAll}).validate(); err != nil {
		t.Errorf("valid options rejected: %v", err)
	}
}
