package kvstore

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-walletstore/internal/storage"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

const (
	prefixToken      = "tokens/"
	prefixRegistered = "registered/"
	prefixTokenMeta  = "meta/"
)

type tokenIndex struct {
	db *storage.PrefixDB
}

func newTokenIndex(db *storage.PrefixDB) *tokenIndex {
	return &tokenIndex{db: db}
}

// info merges token data with its metadata. Missing metadata yields zero
// aggregates.
func (t *tokenIndex) info(data *types.TokenData) (*types.TokenInfo, error) {
	meta, err := t.GetMeta(data.UID)
	if err != nil {
		return nil, err
	}
	out := &types.TokenInfo{TokenData: *data}
	if meta != nil {
		out.TokenMetadata = *meta
	}
	return out, nil
}

func (t *tokenIndex) put(prefix string, token *types.TokenData) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("token marshal: %w", err)
	}
	return t.db.Put(key(prefix, token.UID), data)
}

func (t *tokenIndex) Save(token *types.TokenData) error {
	if err := store.CheckToken(token); err != nil {
		return err
	}
	if ok, err := t.db.Has(key(prefixToken, token.UID)); err != nil {
		return fmt.Errorf("token has: %w", err)
	} else if ok {
		return fmt.Errorf("%w: token %s", store.ErrDuplicateKey, token.UID)
	}
	return t.put(prefixToken, token)
}

func (t *tokenIndex) Get(uid string) (*types.TokenInfo, error) {
	var data types.TokenData
	ok, err := getJSON(t.db, key(prefixToken, uid), &data)
	if err != nil || !ok {
		return nil, err
	}
	return t.info(&data)
}

func (t *tokenIndex) iter(prefix string) *store.Cursor[*types.TokenInfo] {
	return scanPrefix(t.db, prefix, false, func(k, v []byte) (*types.TokenInfo, bool, error) {
		data, _, err := decodeJSON[types.TokenData](k, v)
		if err != nil {
			return nil, false, err
		}
		info, err := t.info(data)
		return info, err == nil, err
	})
}

func (t *tokenIndex) Iter() *store.Cursor[*types.TokenInfo] {
	return t.iter(prefixToken)
}

func (t *tokenIndex) Register(token *types.TokenData) error {
	if err := store.CheckToken(token); err != nil {
		return err
	}
	return t.put(prefixRegistered, token)
}

func (t *tokenIndex) Unregister(uid string) error {
	return t.db.Delete(key(prefixRegistered, uid))
}

func (t *tokenIndex) IsRegistered(uid string) (bool, error) {
	return t.db.Has(key(prefixRegistered, uid))
}

func (t *tokenIndex) RegisteredIter() *store.Cursor[*types.TokenInfo] {
	return t.iter(prefixRegistered)
}

func (t *tokenIndex) EditMeta(uid string, meta *types.TokenMetadata) error {
	if err := store.CheckTokenUID(uid); err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("%w: nil token metadata", store.ErrInvalidArgument)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("token meta marshal: %w", err)
	}
	return t.db.Put(key(prefixTokenMeta, uid), data)
}

func (t *tokenIndex) GetMeta(uid string) (*types.TokenMetadata, error) {
	var meta types.TokenMetadata
	ok, err := getJSON(t.db, key(prefixTokenMeta, uid), &meta)
	if err != nil || !ok {
		return nil, err
	}
	return &meta, nil
}

func (t *tokenIndex) ClearMeta() error {
	if err := storage.DeletePrefix(t.db, []byte(prefixTokenMeta)); err != nil {
		return fmt.Errorf("clear token metadata: %w", err)
	}
	return nil
}

func (t *tokenIndex) Delete(uids []string) error {
	return commit(t.db, func(b storage.Batch) error {
		for _, uid := range uids {
			if err := b.Delete(key(prefixToken, uid)); err != nil {
				return err
			}
			if err := b.Delete(key(prefixTokenMeta, uid)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *tokenIndex) Clear() error {
	for _, p := range []string{prefixToken, prefixRegistered, prefixTokenMeta} {
		if err := storage.DeletePrefix(t.db, []byte(p)); err != nil {
			return fmt.Errorf("clear %s: %w", p, err)
		}
	}
	return nil
}
