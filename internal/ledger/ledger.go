// Package ledger holds the chain rules the wallet store consumes but does
// not own: which outputs can be height-locked and when a height lock ends.
package ledger

import "github.com/Klingon-tech/klingnet-walletstore/pkg/types"

// DefaultRewardLock is the number of blocks a block reward stays locked.
const DefaultRewardLock uint32 = 300

// CanBeHeightLocked reports whether outputs of the given type (the version of
// the transaction that created them) are subject to the reward lock. Only
// block outputs are.
func CanBeHeightLocked(outputType uint8) bool {
	switch outputType {
	case types.BlockVersion, types.MergedMinedBlockVersion, types.PoaBlockVersion:
		return true
	default:
		return false
	}
}

// IsHeightLocked reports whether an output created at height is still inside
// the reward lock window at networkHeight. Unknown heights (zero) and a zero
// lock window never lock.
func IsHeightLocked(height, networkHeight, rewardLock uint32) bool {
	if height == 0 || networkHeight == 0 || rewardLock == 0 {
		return false
	}
	unlockHeight := uint64(height) + uint64(rewardLock) + 1
	return unlockHeight > uint64(networkHeight)
}

// Rules adapts the package functions to the store's lock policy interface.
type Rules struct{}

// CanBeHeightLocked implements the store lock policy.
func (Rules) CanBeHeightLocked(outputType uint8) bool {
	return CanBeHeightLocked(outputType)
}

// IsHeightLocked implements the store lock policy.
func (Rules) IsHeightLocked(height, networkHeight, rewardLock uint32) bool {
	return IsHeightLocked(height, networkHeight, rewardLock)
}
