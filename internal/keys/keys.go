// Package keys builds the order-preserving string keys used by every
// secondary index of the wallet store.
//
// All numeric fields compared in range scans are encoded as fixed-width,
// zero-padded, big-endian lowercase hex, so byte-wise key order equals
// numeric order. Composite keys join fields with Sep, most-selective fixed
// field first.
package keys

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

// Sep separates fields in composite keys.
const Sep = ":"

// sepNext is the byte right after Sep; it bounds "every key with this prefix".
const sepNext = ";"

const (
	indexKeyLen  = 8
	amountKeyLen = 16
)

// IndexKey encodes a 32-bit index or timestamp as 8 hex chars.
func IndexKey(n uint32) string {
	return fmt.Sprintf("%08x", n)
}

// AmountKey encodes a 64-bit amount as 16 hex chars.
func AmountKey(n uint64) string {
	return fmt.Sprintf("%016x", n)
}

// ParseIndexKey decodes a key produced by IndexKey.
func ParseIndexKey(s string) (uint32, error) {
	if len(s) != indexKeyLen {
		return 0, fmt.Errorf("index key %q: want %d chars", s, indexKeyLen)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("index key %q: %w", s, err)
	}
	return uint32(n), nil
}

// ParseAmountKey decodes a key produced by AmountKey.
func ParseAmountKey(s string) (uint64, error) {
	if len(s) != amountKeyLen {
		return 0, fmt.Errorf("amount key %q: want %d chars", s, amountKeyLen)
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("amount key %q: %w", s, err)
	}
	return n, nil
}

// Join concatenates fields with Sep.
func Join(fields ...string) string {
	return strings.Join(fields, Sep)
}

// Utxo is the primary UTXO key: "{txId}:{index}".
func Utxo(op types.Outpoint) string {
	return op.String()
}

// TokenUtxo is the token selection index key:
// "{authorities}:{token}:{amount}:{txId}:{index}".
func TokenUtxo(u *types.Utxo) string {
	return Join(strconv.Itoa(int(u.Authorities)), u.Token, AmountKey(u.Value), u.TxID.String(), strconv.Itoa(int(u.Index)))
}

// TokenAddressUtxo is the address-scoped selection index key:
// "{authorities}:{token}:{address}:{amount}:{txId}:{index}".
func TokenAddressUtxo(u *types.Utxo) string {
	return Join(strconv.Itoa(int(u.Authorities)), u.Token, u.Address, AmountKey(u.Value), u.TxID.String(), strconv.Itoa(int(u.Index)))
}

// TimestampTx is the history timestamp index key: "{timestamp}:{txId}".
func TimestampTx(timestamp uint32, txID types.Hash) string {
	return Join(IndexKey(timestamp), txID.String())
}

// Range is a half-open key interval [Start, End).
type Range struct {
	Start string
	End   string
}

// Contains reports whether key falls inside the range.
func (r Range) Contains(key string) bool {
	return key >= r.Start && key < r.End
}

// Prefix returns the range of every key starting with fields joined by Sep
// and followed by a further Sep.
func Prefix(fields ...string) Range {
	p := Join(fields...)
	return Range{Start: p + Sep, End: p + sepNext}
}

// SelectionRange bounds the selection index scan for a fixed authority,
// token and (optional) address, restricted to values in [minAmount, maxAmount].
// An empty address selects the token index layout; a non-empty one selects
// the address-scoped layout.
func SelectionRange(authorities uint8, token, address string, minAmount, maxAmount uint64) Range {
	fields := []string{strconv.Itoa(int(authorities)), token}
	if address != "" {
		fields = append(fields, address)
	}
	p := Join(fields...) + Sep

	r := Range{Start: p + AmountKey(minAmount)}
	if maxAmount == math.MaxUint64 {
		// Every amount fits; close the range right after the prefix.
		r.End = p[:len(p)-len(Sep)] + sepNext
	} else {
		// Amount keys are followed by Sep, so the first key for maxAmount+1
		// sorts after every key for maxAmount.
		r.End = p + AmountKey(maxAmount+1)
	}
	return r
}
