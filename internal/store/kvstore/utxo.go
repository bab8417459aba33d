package kvstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-walletstore/internal/keys"
	"github.com/Klingon-tech/klingnet-walletstore/internal/storage"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
	"github.com/rs/zerolog"
)

// Selection index entries carry a full copy of the UTXO so a selection scan
// never goes back to the primary records.
const (
	prefixUtxo          = "utxo/"
	prefixTokenUtxo     = "token/"
	prefixTokenAddrUtxo = "token_address/"
	prefixLocked        = "locked/"
)

type utxoIndex struct {
	db    *storage.PrefixDB
	log   zerolog.Logger
	count counter
}

func newUtxoIndex(db *storage.PrefixDB, l zerolog.Logger) *utxoIndex {
	return &utxoIndex{db: db, log: l}
}

func utxoKey(op types.Outpoint) []byte {
	return key(prefixUtxo, keys.Utxo(op))
}

// secondaryKeys returns the selection index keys of u.
func secondaryKeys(u *types.Utxo) [][]byte {
	out := [][]byte{key(prefixTokenUtxo, keys.TokenUtxo(u))}
	if u.Address != "" {
		out = append(out, key(prefixTokenAddrUtxo, keys.TokenAddressUtxo(u)))
	}
	return out
}

func (x *utxoIndex) Save(u *types.Utxo) error {
	if err := store.CheckUtxo(u); err != nil {
		return err
	}
	old, err := x.Get(u.Outpoint())
	if err != nil {
		return err
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}

	err = commit(x.db, func(b storage.Batch) error {
		if old != nil {
			for _, k := range secondaryKeys(old) {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		if err := b.Put(utxoKey(u.Outpoint()), data); err != nil {
			return err
		}
		for _, k := range secondaryKeys(u) {
			if err := b.Put(k, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	if old == nil {
		x.count.inc()
	}
	return nil
}

func (x *utxoIndex) Get(op types.Outpoint) (*types.Utxo, error) {
	var u types.Utxo
	ok, err := getJSON(x.db, utxoKey(op), &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

func (x *utxoIndex) Delete(op types.Outpoint) error {
	// Read first to find the secondary entries.
	u, err := x.Get(op)
	if err != nil || u == nil {
		return err
	}
	err = commit(x.db, func(b storage.Batch) error {
		for _, k := range secondaryKeys(u) {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return b.Delete(utxoKey(op))
	})
	if err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	x.count.dec()
	return nil
}

func (x *utxoIndex) Iter() *store.Cursor[*types.Utxo] {
	return scanPrefix(x.db, prefixUtxo, false, decodeJSON[types.Utxo])
}

func (x *utxoIndex) Count() (uint64, error) {
	if x.count.valid {
		return x.count.n, nil
	}
	return countPrefix(x.db, prefixUtxo)
}

func (x *utxoIndex) Scan(q store.RangeQuery) *store.Cursor[*types.Utxo] {
	prefix := prefixTokenUtxo
	if q.ByAddress {
		prefix = prefixTokenAddrUtxo
	}
	start := key(prefix, q.Range.Start)
	end := key(prefix, q.Range.End)
	return scan(x.db, start, end, q.Reverse, decodeJSON[types.Utxo])
}

func (x *utxoIndex) Validate() (store.ValidationResult, error) {
	var res store.ValidationResult
	type repair struct{ k, v []byte }
	var missing []repair

	err := x.db.ForEach([]byte(prefixUtxo), func(k, v []byte) error {
		var u types.Utxo
		if err := json.Unmarshal(v, &u); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		for _, sk := range secondaryKeys(&u) {
			got, err := x.db.Get(sk)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				missing = append(missing, repair{k: sk, v: v})
			case err != nil:
				return fmt.Errorf("utxo index get: %w", err)
			case !bytes.Equal(got, v):
				return fmt.Errorf("%w: index entry %s differs from utxo %s",
					store.ErrInconsistentDatabase, sk, u.Outpoint())
			}
		}
		res.Count++
		return nil
	})
	if err != nil {
		return res, err
	}

	for _, r := range missing {
		if err := x.db.Put(r.k, r.v); err != nil {
			return res, fmt.Errorf("repair utxo index: %w", err)
		}
		x.log.Warn().Str("index", "utxo").Str("key", string(r.k)).Msg("Recreated missing index entry")
		res.Repaired++
	}
	x.count.set(res.Count)
	return res, nil
}

func lockedKey(op types.Outpoint) []byte {
	return key(prefixLocked, keys.Utxo(op))
}

func (x *utxoIndex) SaveLocked(l *types.LockedUtxo) error {
	if err := store.CheckLockedUtxo(l); err != nil {
		return err
	}
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("locked utxo marshal: %w", err)
	}
	return x.db.Put(lockedKey(l.Outpoint()), data)
}

func (x *utxoIndex) GetLocked(op types.Outpoint) (*types.LockedUtxo, error) {
	var l types.LockedUtxo
	ok, err := getJSON(x.db, lockedKey(op), &l)
	if err != nil || !ok {
		return nil, err
	}
	return &l, nil
}

func (x *utxoIndex) Unlock(op types.Outpoint) error {
	return x.db.Delete(lockedKey(op))
}

func (x *utxoIndex) LockedIter() *store.Cursor[*types.LockedUtxo] {
	return scanPrefix(x.db, prefixLocked, false, decodeJSON[types.LockedUtxo])
}

func (x *utxoIndex) Clear() error {
	for _, p := range []string{prefixUtxo, prefixTokenUtxo, prefixTokenAddrUtxo, prefixLocked} {
		if err := storage.DeletePrefix(x.db, []byte(p)); err != nil {
			return fmt.Errorf("clear %s: %w", p, err)
		}
	}
	x.count.set(0)
	return nil
}
