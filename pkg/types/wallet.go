package types

import "fmt"

// DefaultGapLimit is the gap limit used when none has been stored.
const DefaultGapLimit = 20

// ScanPolicyKind tags the variant of a ScanPolicy.
type ScanPolicyKind string

const (
	ScanPolicyGapLimit   ScanPolicyKind = "gap-limit"
	ScanPolicyIndexLimit ScanPolicyKind = "index-limit"
)

// ScanPolicy decides how far ahead addresses are derived. Only the fields of
// the active Kind are meaningful.
type ScanPolicy struct {
	Kind       ScanPolicyKind `json:"policy"`
	GapLimit   uint32         `json:"gapLimit,omitempty"`
	StartIndex uint32         `json:"startIndex,omitempty"`
	EndIndex   uint32         `json:"endIndex,omitempty"`
}

// GapLimitPolicy returns a gap-limit scanning policy.
func GapLimitPolicy(gapLimit uint32) ScanPolicy {
	return ScanPolicy{Kind: ScanPolicyGapLimit, GapLimit: gapLimit}
}

// IndexLimitPolicy returns an index-limit scanning policy.
func IndexLimitPolicy(start, end uint32) ScanPolicy {
	return ScanPolicy{Kind: ScanPolicyIndexLimit, StartIndex: start, EndIndex: end}
}

// Validate checks the policy is a known variant with sane bounds.
func (p ScanPolicy) Validate() error {
	switch p.Kind {
	case ScanPolicyGapLimit:
		return nil
	case ScanPolicyIndexLimit:
		if p.StartIndex > p.EndIndex {
			return fmt.Errorf("index-limit start %d > end %d", p.StartIndex, p.EndIndex)
		}
		return nil
	default:
		return fmt.Errorf("unknown scanning policy %q", p.Kind)
	}
}

// WalletData is the scalar wallet state. Address pointers are -1 when unset.
type WalletData struct {
	LastLoadedAddressIndex int64      `json:"lastLoadedAddressIndex"`
	LastUsedAddressIndex   int64      `json:"lastUsedAddressIndex"`
	CurrentAddressIndex    int64      `json:"currentAddressIndex"`
	BestBlockHeight        uint32     `json:"bestBlockHeight"`
	GapLimit               uint32     `json:"gapLimit"`
	ScanPolicy             ScanPolicy `json:"scanPolicy"`
}

// DefaultWalletData returns the state of a freshly created wallet.
func DefaultWalletData() WalletData {
	return WalletData{
		LastLoadedAddressIndex: -1,
		LastUsedAddressIndex:   -1,
		CurrentAddressIndex:    -1,
		GapLimit:               DefaultGapLimit,
		ScanPolicy:             GapLimitPolicy(DefaultGapLimit),
	}
}
