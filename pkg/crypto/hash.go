// Package crypto provides hashing helpers for the wallet store.
package crypto

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// WalletIDSize is the number of hash bytes kept in a wallet id.
const WalletIDSize = 8

// WalletIDFromXPub derives the keyspace partition id of a wallet from its
// extended public key: the first 8 bytes of BLAKE3(xpub), hex-encoded.
func WalletIDFromXPub(xpub string) string {
	h := Hash([]byte(xpub))
	return hex.EncodeToString(h[:WalletIDSize])
}
