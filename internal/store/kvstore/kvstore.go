// Package kvstore is the durable wallet store backend. Every index lives in
// its own PrefixDB partition of a storage.DB, values are JSON and all
// secondary keys use the order-preserving encodings of package keys.
//
// Keyspace, below "w/<walletID>/":
//
//	address/version
//	address/addr/<base58>            -> AddressInfo
//	address/index/<indexKey>         -> base58
//	address/meta/<base58>            -> AddressMetadata
//	history/version
//	history/tx/<txId>                -> HistoryTx
//	history/ts/<ts>:<txId>           -> txId
//	utxo/version
//	utxo/utxo/<txId>:<index>         -> Utxo
//	utxo/token/<selection key>       -> Utxo
//	utxo/token_address/<selection key> -> Utxo
//	utxo/locked/<txId>:<index>       -> LockedUtxo
//	token/version
//	token/tokens/<uid>               -> TokenData
//	token/registered/<uid>           -> TokenData
//	token/meta/<uid>                 -> TokenMetadata
//	wallet/version
//	wallet/data/<field>              -> JSON scalar
//	wallet/item/<key>                -> raw bytes
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-walletstore/internal/log"
	"github.com/Klingon-tech/klingnet-walletstore/internal/storage"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/rs/zerolog"
)

// SchemaVersion is written to every partition on first open and must match
// on every later open.
const SchemaVersion = "1"

var versionKey = []byte("version")

// Partition names below the wallet prefix.
const (
	partAddress = "address/"
	partHistory = "history/"
	partUtxo    = "utxo/"
	partToken   = "token/"
	partWallet  = "wallet/"
)

// Backend implements store.Backend over a storage.DB.
type Backend struct {
	db    storage.DB
	owned bool

	addresses *addressIndex
	history   *historyIndex
	tokens    *tokenIndex
	utxos     *utxoIndex
	wallet    *walletIndex
}

var _ store.Backend = (*Backend)(nil)

// WalletPrefix returns the key prefix isolating one wallet inside a shared
// database.
func WalletPrefix(walletID string) []byte {
	return []byte("w/" + walletID + "/")
}

// New opens the wallet partitions of walletID inside db, initialising their
// schema version on first use. db stays owned by the caller.
func New(db storage.DB, walletID string) (*Backend, error) {
	if walletID == "" {
		return nil, fmt.Errorf("%w: empty wallet id", store.ErrInvalidArgument)
	}
	logger := log.WithWallet(walletID).With().Str("backend", "kv").Logger()
	root := storage.NewPrefixDB(db, WalletPrefix(walletID))

	parts := make(map[string]*storage.PrefixDB)
	for _, name := range []string{partAddress, partHistory, partUtxo, partToken, partWallet} {
		p := storage.NewPrefixDB(root, []byte(name))
		if err := checkVersion(p, name, logger); err != nil {
			return nil, err
		}
		parts[name] = p
	}

	return &Backend{
		db:        db,
		addresses: newAddressIndex(parts[partAddress], logger),
		history:   newHistoryIndex(parts[partHistory], logger),
		tokens:    newTokenIndex(parts[partToken]),
		utxos:     newUtxoIndex(parts[partUtxo], logger),
		wallet:    newWalletIndex(parts[partWallet]),
	}, nil
}

// Options configures Open.
type Options struct {
	// Path is the badger directory. Ignored with InMemory.
	Path       string
	InMemory   bool
	SyncWrites bool
	WalletID   string
}

// Open opens a badger database and the wallet inside it. Close releases
// the database.
func Open(o Options) (*Backend, error) {
	db, err := storage.NewBadgerWithOptions(o.Path, storage.BadgerOptions{
		InMemory:   o.InMemory,
		SyncWrites: o.SyncWrites,
	})
	if err != nil {
		return nil, err
	}
	b, err := New(db, o.WalletID)
	if err != nil {
		db.Close()
		return nil, err
	}
	b.owned = true
	return b, nil
}

// OpenStore opens a badger-backed Store.
func OpenStore(o Options, opts ...store.Option) (*store.Store, error) {
	b, err := Open(o)
	if err != nil {
		return nil, err
	}
	return store.New(b, opts...), nil
}

func (b *Backend) Addresses() store.AddressIndex { return b.addresses }
func (b *Backend) History() store.HistoryIndex   { return b.history }
func (b *Backend) Tokens() store.TokenIndex      { return b.tokens }
func (b *Backend) Utxos() store.UtxoIndex        { return b.utxos }
func (b *Backend) Wallet() store.WalletIndex     { return b.wallet }

// Close closes the database if the backend opened it.
func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}

func checkVersion(p *storage.PrefixDB, name string, logger zerolog.Logger) error {
	got, err := p.Get(versionKey)
	if errors.Is(err, storage.ErrNotFound) {
		if err := p.Put(versionKey, []byte(SchemaVersion)); err != nil {
			return fmt.Errorf("init %s partition: %w", name, err)
		}
		logger.Debug().Str("partition", name).Str("version", SchemaVersion).Msg("Initialised partition")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s version: %w", name, err)
	}
	if string(got) != SchemaVersion {
		logger.Error().Str("partition", name).Str("have", string(got)).Str("want", SchemaVersion).
			Msg("Schema version mismatch")
		return fmt.Errorf("%w: %s partition has version %q, want %q",
			store.ErrVersionMismatch, name, got, SchemaVersion)
	}
	return nil
}

// getJSON decodes the value at key into v. ok is false when the key is
// absent.
func getJSON(db storage.DB, key []byte, v any) (bool, error) {
	data, err := db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func key(prefix string, parts ...string) []byte {
	n := len(prefix)
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	out = append(out, prefix...)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// scan walks [start, end) of db lazily. decode returns ok=false to skip an
// entry. The iterator is opened on the first Next and closed with the cursor.
func scan[T any](db storage.DB, start, end []byte, reverse bool, decode func(k, v []byte) (T, bool, error)) *store.Cursor[T] {
	return store.NewCursor(func(yield func(T, error) bool) {
		var zero T
		it := db.NewIterator(start, end, reverse)
		defer it.Close()
		for it.Next() {
			v, ok, err := decode(it.Key(), it.Value())
			if err != nil {
				yield(zero, err)
				return
			}
			if !ok {
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(zero, err)
		}
	})
}

// scanPrefix walks every key under prefix in order.
func scanPrefix[T any](db storage.DB, prefix string, reverse bool, decode func(k, v []byte) (T, bool, error)) *store.Cursor[T] {
	p := []byte(prefix)
	return scan(db, p, storage.PrefixEnd(p), reverse, decode)
}

// decodeJSON is a scan decoder for JSON values of type T.
func decodeJSON[T any](k, v []byte) (*T, bool, error) {
	var out T
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", k, err)
	}
	return &out, true, nil
}

// counter caches an index size. It is only trusted after a validation pass
// or Clear; until then Count falls back to a full scan.
type counter struct {
	valid bool
	n     uint64
}

func (c *counter) set(n uint64) { c.valid, c.n = true, n }
func (c *counter) inc() {
	if c.valid {
		c.n++
	}
}
func (c *counter) dec() {
	if c.valid && c.n > 0 {
		c.n--
	}
}

// countPrefix returns the number of keys under prefix.
func countPrefix(db storage.DB, prefix string) (uint64, error) {
	var n uint64
	err := db.ForEach([]byte(prefix), func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

// commit applies the writes of fn in one batch. The batch is cancelled
// when fn fails.
func commit(p *storage.PrefixDB, fn func(b storage.Batch) error) error {
	b := p.NewBatch()
	if err := fn(b); err != nil {
		b.Cancel()
		return err
	}
	return b.Commit()
}
