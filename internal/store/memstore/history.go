package memstore

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-walletstore/internal/keys"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
	"github.com/google/btree"
	"github.com/rs/zerolog"
)

type historyIndex struct {
	log    zerolog.Logger
	txs    map[types.Hash]*types.HistoryTx
	byTime *btree.BTreeG[keyed[types.Hash]] // "{ts}:{txId}" -> txId
}

func newHistoryIndex(l zerolog.Logger) *historyIndex {
	return &historyIndex{
		log:    l,
		txs:    make(map[types.Hash]*types.HistoryTx),
		byTime: newTree[types.Hash](),
	}
}

func copyTx(tx *types.HistoryTx) *types.HistoryTx {
	c := *tx
	c.Inputs = append([]types.TxInput(nil), tx.Inputs...)
	c.Outputs = append([]types.TxOutput(nil), tx.Outputs...)
	c.Parents = append([]types.Hash(nil), tx.Parents...)
	c.Tokens = append([]string(nil), tx.Tokens...)
	return &c
}

func (h *historyIndex) Save(tx *types.HistoryTx) error {
	if err := store.CheckTx(tx); err != nil {
		return err
	}
	if old, ok := h.txs[tx.TxID]; ok && old.Timestamp != tx.Timestamp {
		h.byTime.Delete(keyed[types.Hash]{key: keys.TimestampTx(old.Timestamp, old.TxID)})
	}
	h.txs[tx.TxID] = copyTx(tx)
	h.byTime.ReplaceOrInsert(keyed[types.Hash]{key: keys.TimestampTx(tx.Timestamp, tx.TxID), val: tx.TxID})
	return nil
}

func (h *historyIndex) Get(txID types.Hash) (*types.HistoryTx, error) {
	tx, ok := h.txs[txID]
	if !ok {
		return nil, nil
	}
	return copyTx(tx), nil
}

func (h *historyIndex) Delete(txID types.Hash) error {
	tx, ok := h.txs[txID]
	if !ok {
		return nil
	}
	h.byTime.Delete(keyed[types.Hash]{key: keys.TimestampTx(tx.Timestamp, tx.TxID)})
	delete(h.txs, txID)
	return nil
}

func (h *historyIndex) Iter(token string) *store.Cursor[*types.HistoryTx] {
	return descend(h.byTime, func(e keyed[types.Hash]) (*types.HistoryTx, bool) {
		tx, ok := h.txs[e.val]
		if !ok {
			return nil, false
		}
		if token != "" && !tx.HasToken(token) {
			return nil, false
		}
		return copyTx(tx), true
	})
}

func (h *historyIndex) Count() (uint64, error) {
	return uint64(len(h.txs)), nil
}

func (h *historyIndex) Validate() (store.ValidationResult, error) {
	var res store.ValidationResult
	for id, tx := range h.txs {
		if id != tx.TxID {
			return res, fmt.Errorf("%w: history entry %s holds tx %s", store.ErrInconsistentDatabase, id, tx.TxID)
		}
		tk := keys.TimestampTx(tx.Timestamp, tx.TxID)
		if !h.byTime.Has(keyed[types.Hash]{key: tk}) {
			h.byTime.ReplaceOrInsert(keyed[types.Hash]{key: tk, val: tx.TxID})
			logRepair(h.log, "history", tk)
			res.Repaired++
		}
		res.Count++
	}
	return res, nil
}

func (h *historyIndex) Clear() error {
	clear(h.txs)
	h.byTime.Clear(false)
	return nil
}
