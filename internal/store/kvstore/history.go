package kvstore

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-walletstore/internal/keys"
	"github.com/Klingon-tech/klingnet-walletstore/internal/storage"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
	"github.com/rs/zerolog"
)

const (
	prefixTx     = "tx/"
	prefixTxTime = "ts/"
)

type historyIndex struct {
	db    *storage.PrefixDB
	log   zerolog.Logger
	count counter
}

func newHistoryIndex(db *storage.PrefixDB, l zerolog.Logger) *historyIndex {
	return &historyIndex{db: db, log: l}
}

func txKey(txID types.Hash) []byte {
	return key(prefixTx, txID.String())
}

func txTimeKey(tx *types.HistoryTx) []byte {
	return key(prefixTxTime, keys.TimestampTx(tx.Timestamp, tx.TxID))
}

func (h *historyIndex) Save(tx *types.HistoryTx) error {
	if err := store.CheckTx(tx); err != nil {
		return err
	}
	old, err := h.Get(tx.TxID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("tx marshal: %w", err)
	}

	err = commit(h.db, func(b storage.Batch) error {
		if old != nil && old.Timestamp != tx.Timestamp {
			if err := b.Delete(txTimeKey(old)); err != nil {
				return err
			}
		}
		if err := b.Put(txKey(tx.TxID), data); err != nil {
			return err
		}
		return b.Put(txTimeKey(tx), tx.TxID.Bytes())
	})
	if err != nil {
		return fmt.Errorf("tx put: %w", err)
	}
	if old == nil {
		h.count.inc()
	}
	return nil
}

func (h *historyIndex) Get(txID types.Hash) (*types.HistoryTx, error) {
	var tx types.HistoryTx
	ok, err := getJSON(h.db, txKey(txID), &tx)
	if err != nil || !ok {
		return nil, err
	}
	return &tx, nil
}

func (h *historyIndex) Delete(txID types.Hash) error {
	tx, err := h.Get(txID)
	if err != nil || tx == nil {
		return err
	}
	err = commit(h.db, func(b storage.Batch) error {
		if err := b.Delete(txTimeKey(tx)); err != nil {
			return err
		}
		return b.Delete(txKey(txID))
	})
	if err != nil {
		return fmt.Errorf("tx delete: %w", err)
	}
	h.count.dec()
	return nil
}

func (h *historyIndex) Iter(token string) *store.Cursor[*types.HistoryTx] {
	return scanPrefix(h.db, prefixTxTime, true, func(_, v []byte) (*types.HistoryTx, bool, error) {
		var id types.Hash
		if len(v) != len(id) {
			return nil, false, fmt.Errorf("%w: timestamp entry holds %d-byte tx id", store.ErrInconsistentDatabase, len(v))
		}
		copy(id[:], v)
		tx, err := h.Get(id)
		if err != nil || tx == nil {
			return nil, false, err
		}
		if token != "" && !tx.HasToken(token) {
			return nil, false, nil
		}
		return tx, true, nil
	})
}

func (h *historyIndex) Count() (uint64, error) {
	if h.count.valid {
		return h.count.n, nil
	}
	return countPrefix(h.db, prefixTx)
}

func (h *historyIndex) Validate() (store.ValidationResult, error) {
	var res store.ValidationResult
	var missing []*types.HistoryTx

	err := h.db.ForEach([]byte(prefixTx), func(k, v []byte) error {
		var tx types.HistoryTx
		if err := json.Unmarshal(v, &tx); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		if id := string(k[len(prefixTx):]); id != tx.TxID.String() {
			return fmt.Errorf("%w: history entry %s holds tx %s", store.ErrInconsistentDatabase, id, tx.TxID)
		}
		ok, err := h.db.Has(txTimeKey(&tx))
		if err != nil {
			return fmt.Errorf("tx timestamp has: %w", err)
		}
		if !ok {
			missing = append(missing, &tx)
		}
		res.Count++
		return nil
	})
	if err != nil {
		return res, err
	}

	for _, tx := range missing {
		tk := txTimeKey(tx)
		if err := h.db.Put(tk, tx.TxID.Bytes()); err != nil {
			return res, fmt.Errorf("repair tx timestamp: %w", err)
		}
		h.log.Warn().Str("index", "history").Str("key", string(tk)).Msg("Recreated missing index entry")
		res.Repaired++
	}
	h.count.set(res.Count)
	return res, nil
}

func (h *historyIndex) Clear() error {
	for _, p := range []string{prefixTx, prefixTxTime} {
		if err := storage.DeletePrefix(h.db, []byte(p)); err != nil {
			return fmt.Errorf("clear %s: %w", p, err)
		}
	}
	h.count.set(0)
	return nil
}
