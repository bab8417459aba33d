package types

import (
	"encoding/hex"
	"fmt"
)

// NativeTokenUID is the uid of the chain's native token.
const NativeTokenUID = "00"

// Authority bits carried by authority outputs.
const (
	AuthorityMint uint8 = 1 << 0
	AuthorityMelt uint8 = 1 << 1

	// AuthorityAll is every defined authority bit.
	AuthorityAll = AuthorityMint | AuthorityMelt
)

// tokenAuthorityMask is set in an output's token data when the output
// carries authorities instead of value.
const tokenAuthorityMask uint8 = 0x80

// ValidateTokenUID checks that uid is the native token or a 64-char hex id.
func ValidateTokenUID(uid string) error {
	if uid == NativeTokenUID {
		return nil
	}
	if len(uid) != 2*HashSize {
		return fmt.Errorf("token uid %q: want %d hex chars", uid, 2*HashSize)
	}
	if _, err := hex.DecodeString(uid); err != nil {
		return fmt.Errorf("token uid %q: %w", uid, err)
	}
	return nil
}

// TokenData is the base registry entry for a token.
type TokenData struct {
	UID    string `json:"uid"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// TokenMetadata is the aggregated per-token state. It is advisory and may be
// wiped and rebuilt at any time.
type TokenMetadata struct {
	NumTransactions uint64       `json:"numTransactions"`
	Balance         TokenBalance `json:"balance"`
}

// TokenInfo is a token entry merged with its metadata.
type TokenInfo struct {
	TokenData
	TokenMetadata
}
