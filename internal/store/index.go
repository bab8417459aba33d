// Package store is the persistence and query layer of the wallet: five
// narrow indexes (addresses, history, tokens, UTXOs, wallet metadata)
// implemented by interchangeable backends and composed by Store.
//
// Backends perform no internal locking. Callers serialize mutations.
package store

import (
	"github.com/Klingon-tech/klingnet-walletstore/internal/keys"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

// AddressValidation is the outcome of an address index validation pass.
// FirstIndex and LastIndex are -1 when the index is empty.
type AddressValidation struct {
	FirstIndex int64
	LastIndex  int64
	Count      uint64
	Repaired   int
}

// ValidationResult is the outcome of a history or UTXO validation pass.
type ValidationResult struct {
	Count    uint64
	Repaired int
}

// AddressIndex maps derivation indexes to addresses and holds per-address
// metadata.
type AddressIndex interface {
	// Save stores a new address. Saving a known address is ErrDuplicateKey.
	Save(info *types.AddressInfo) error
	Get(base58 string) (*types.AddressInfo, error)
	AtIndex(index uint32) (*types.AddressInfo, error)
	Exists(base58 string) (bool, error)
	// Iter walks addresses by ascending bip32 index.
	Iter() *Cursor[*types.AddressInfo]
	// Count is cached after Validate, otherwise a full scan.
	Count() (uint64, error)
	// Validate recreates missing bip32 index entries and fails with
	// ErrInconsistentDatabase when an entry points at another address.
	Validate() (AddressValidation, error)
	SetMeta(base58 string, meta *types.AddressMetadata) error
	GetMeta(base58 string) (*types.AddressMetadata, error)
	ClearMeta() error
	Clear() error
}

// HistoryIndex stores wallet transactions keyed by id with a timestamp index.
type HistoryIndex interface {
	Save(tx *types.HistoryTx) error
	Get(txID types.Hash) (*types.HistoryTx, error)
	Delete(txID types.Hash) error
	// Iter walks transactions newest first. A non-empty token keeps only
	// transactions moving that token.
	Iter(token string) *Cursor[*types.HistoryTx]
	Count() (uint64, error)
	// Validate recreates missing timestamp entries and fails with
	// ErrInconsistentDatabase when a record is stored under another id.
	Validate() (ValidationResult, error)
	Clear() error
}

// TokenIndex is the token registry: known tokens, the user's registered
// tokens and per-token metadata.
type TokenIndex interface {
	// Save stores a new known token. Saving a known uid is ErrDuplicateKey.
	Save(token *types.TokenData) error
	Get(uid string) (*types.TokenInfo, error)
	Iter() *Cursor[*types.TokenInfo]
	Register(token *types.TokenData) error
	Unregister(uid string) error
	IsRegistered(uid string) (bool, error)
	RegisteredIter() *Cursor[*types.TokenInfo]
	EditMeta(uid string, meta *types.TokenMetadata) error
	GetMeta(uid string) (*types.TokenMetadata, error)
	ClearMeta() error
	// Delete removes known tokens and their metadata. Registrations stay.
	Delete(uids []string) error
	Clear() error
}

// RangeQuery is a bounded scan over one of the UTXO selection indexes.
type RangeQuery struct {
	Range keys.Range
	// ByAddress scans the address-scoped index instead of the token index.
	ByAddress bool
	Reverse   bool
}

// UtxoIndex stores unspent outputs, their two selection indexes and the
// disjoint set of locked outputs.
type UtxoIndex interface {
	Save(u *types.Utxo) error
	Get(op types.Outpoint) (*types.Utxo, error)
	Delete(op types.Outpoint) error
	Iter() *Cursor[*types.Utxo]
	Count() (uint64, error)
	// Scan walks a selection index range in key order.
	Scan(q RangeQuery) *Cursor[*types.Utxo]
	// Validate recreates missing selection entries and fails with
	// ErrInconsistentDatabase when an entry differs from the primary record.
	Validate() (ValidationResult, error)

	SaveLocked(l *types.LockedUtxo) error
	GetLocked(op types.Outpoint) (*types.LockedUtxo, error)
	// Unlock removes an output from the locked set.
	Unlock(op types.Outpoint) error
	LockedIter() *Cursor[*types.LockedUtxo]
	Clear() error
}

// WalletIndex persists the scalar wallet state and free-form items.
type WalletIndex interface {
	WalletData() (*types.WalletData, error)
	SetLastLoadedAddressIndex(index int64) error
	SetLastUsedAddressIndex(index int64) error
	SetCurrentAddressIndex(index int64) error
	SetBestBlockHeight(height uint32) error
	SetGapLimit(gapLimit uint32) error
	SetScanPolicy(p types.ScanPolicy) error
	GetItem(key string) ([]byte, error)
	SetItem(key string, value []byte) error
	DeleteItem(key string) error
	// ResetAddressPointers restores the address pointers to their defaults.
	ResetAddressPointers() error
	Clear() error
}

// Backend is one storage implementation of all five indexes.
type Backend interface {
	Addresses() AddressIndex
	History() HistoryIndex
	Tokens() TokenIndex
	Utxos() UtxoIndex
	Wallet() WalletIndex
	Close() error
}
