package store

import (
	"fmt"
	"math"
	"time"

	"github.com/Klingon-tech/klingnet-walletstore/internal/keys"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

// Order is the value order of a selection.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// SelectOptions configures SelectUtxos. Zero values mean "not set".
type SelectOptions struct {
	// Token defaults to the native token.
	Token string
	// Authorities selects authority outputs with exactly this bitmask;
	// 0 selects value outputs.
	Authorities uint8
	// FilterAddress restricts selection to one address.
	FilterAddress string
	// AmountBiggerThan and AmountSmallerThan bound output values, inclusive.
	AmountBiggerThan  uint64
	AmountSmallerThan uint64
	// TargetAmount stops selection once the selected sum reaches it.
	TargetAmount uint64
	// MaxAmount skips outputs that would push the selected sum past it.
	MaxAmount uint64
	// MaxUtxos stops selection after this many outputs.
	MaxUtxos int
	// OnlyAvailable skips time-locked and reward-locked outputs.
	OnlyAvailable bool
	// RewardLock is the reward lock window in blocks.
	RewardLock uint32
	Order      Order
	// Filter is an extra predicate; outputs for which it returns false are
	// skipped.
	Filter func(*types.Utxo) bool
}

func (o SelectOptions) validate() error {
	if o.Token == "" {
		o.Token = types.NativeTokenUID
	}
	if err := types.ValidateTokenUID(o.Token); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if o.Authorities&^types.AuthorityAll != 0 {
		return fmt.Errorf("%w: unknown authority bits %#x", ErrInvalidArgument, o.Authorities)
	}
	if o.MaxUtxos < 0 {
		return fmt.Errorf("%w: max utxos %d", ErrInvalidArgument, o.MaxUtxos)
	}
	switch o.Order {
	case "", OrderAsc, OrderDesc:
	default:
		return fmt.Errorf("%w: order %q", ErrInvalidArgument, o.Order)
	}
	return nil
}

// Query returns the selection index scan that covers the options.
func (o SelectOptions) Query() RangeQuery {
	token := o.Token
	if token == "" {
		token = types.NativeTokenUID
	}
	maxAmount := uint64(math.MaxUint64)
	if o.AmountSmallerThan > 0 {
		maxAmount = o.AmountSmallerThan
	}
	return RangeQuery{
		Range:     keys.SelectionRange(o.Authorities, token, o.FilterAddress, o.AmountBiggerThan, maxAmount),
		ByAddress: o.FilterAddress != "",
		Reverse:   o.Order == OrderDesc,
	}
}

// LockPolicy is the chain rule collaborator deciding reward locks.
type LockPolicy interface {
	CanBeHeightLocked(outputType uint8) bool
	IsHeightLocked(height, networkHeight, rewardLock uint32) bool
}

// IsLocked reports whether u cannot be spent at networkHeight and now.
func IsLocked(policy LockPolicy, u *types.Utxo, networkHeight, rewardLock uint32, now time.Time) bool {
	if u.Height != nil && policy.CanBeHeightLocked(u.Type) &&
		policy.IsHeightLocked(*u.Height, networkHeight, rewardLock) {
		return true
	}
	return u.Timelock != nil && int64(*u.Timelock) > now.Unix()
}

// selectFrom applies the selection rules to ordered candidates. It skips
// locked, filtered and over-budget outputs and stops as soon as the target
// sum or the output count is reached.
func selectFrom(cands *Cursor[*types.Utxo], opts SelectOptions, policy LockPolicy, networkHeight uint32, now time.Time) *Cursor[*types.Utxo] {
	return NewCursor(func(yield func(*types.Utxo, error) bool) {
		defer cands.Close()

		var sum uint64
		var count int
		for cands.Next() {
			u := cands.Value()
			if opts.OnlyAvailable && IsLocked(policy, u, networkHeight, opts.RewardLock, now) {
				continue
			}
			if opts.Filter != nil && !opts.Filter(u) {
				continue
			}
			// sum never exceeds MaxAmount here, so the subtraction is safe.
			if opts.MaxAmount > 0 && u.Value > opts.MaxAmount-sum {
				continue
			}
			if !yield(u, nil) {
				return
			}
			count++
			sum = addSaturating(sum, u.Value)
			if opts.TargetAmount > 0 && sum >= opts.TargetAmount {
				return
			}
			if opts.MaxUtxos > 0 && count >= opts.MaxUtxos {
				return
			}
		}
		if err := cands.Err(); err != nil {
			yield(nil, err)
		}
	})
}

func addSaturating(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
