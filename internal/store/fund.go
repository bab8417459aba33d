package store

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

// Funding errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoUtxos           = errors.New("no spendable utxos")
)

// FundOptions scopes Fund to one token and optionally one address.
type FundOptions struct {
	Token         string
	FilterAddress string
	RewardLock    uint32
}

// CoinSelection holds the result of Fund.
type CoinSelection struct {
	Inputs []*types.Utxo // Selected outputs to spend.
	Total  uint64        // Sum of selected values.
	Change uint64        // Total - target.
}

// Fund picks spendable outputs covering target. It tries two strategies:
//  1. Single output: the smallest available output that covers the target.
//  2. Largest-first accumulation: the largest outputs until the target is met.
//
// It returns whichever leaves less change. Both strategies stream from the
// selection index; nothing beyond the chosen outputs is loaded.
func (s *Store) Fund(opts FundOptions, target uint64, networkHeight uint32) (*CoinSelection, error) {
	if target == 0 {
		return nil, fmt.Errorf("%w: target must be positive", ErrInvalidArgument)
	}
	base := SelectOptions{
		Token:         opts.Token,
		FilterAddress: opts.FilterAddress,
		OnlyAvailable: true,
		RewardLock:    opts.RewardLock,
	}

	// Strategy 1: the first output >= target in ascending order.
	singleOpts := base
	singleOpts.AmountBiggerThan = target
	singleOpts.MaxUtxos = 1
	single, err := Collect(s.SelectUtxos(singleOpts, networkHeight))
	if err != nil {
		return nil, err
	}

	// Strategy 2: descending order, stopping at the target.
	accumOpts := base
	accumOpts.AmountBiggerThan = 1
	accumOpts.TargetAmount = target
	accumOpts.Order = OrderDesc
	accum, err := Collect(s.SelectUtxos(accumOpts, networkHeight))
	if err != nil {
		return nil, err
	}
	if len(accum) == 0 {
		return nil, ErrNoUtxos
	}

	var best *CoinSelection
	if len(single) == 1 {
		best = newSelection(single, target)
	}
	if total := totalValue(accum); total >= target {
		// Prefer whichever produces less change; ties go to the single output.
		if best == nil || newSelection(accum, target).Change < best.Change {
			best = newSelection(accum, target)
		}
	} else if best == nil {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, target)
	}
	return best, nil
}

func newSelection(utxos []*types.Utxo, target uint64) *CoinSelection {
	total := totalValue(utxos)
	return &CoinSelection{Inputs: utxos, Total: total, Change: total - target}
}

func totalValue(utxos []*types.Utxo) uint64 {
	var total uint64
	for _, u := range utxos {
		total = addSaturating(total, u.Value)
	}
	return total
}
