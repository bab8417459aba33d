package memstore

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

type tokenIndex struct {
	tokens     map[string]types.TokenData
	registered map[string]types.TokenData
	meta       map[string]types.TokenMetadata
}

func newTokenIndex() *tokenIndex {
	return &tokenIndex{
		tokens:     make(map[string]types.TokenData),
		registered: make(map[string]types.TokenData),
		meta:       make(map[string]types.TokenMetadata),
	}
}

func (t *tokenIndex) info(data types.TokenData) *types.TokenInfo {
	return &types.TokenInfo{TokenData: data, TokenMetadata: t.meta[data.UID]}
}

func (t *tokenIndex) Save(token *types.TokenData) error {
	if err := store.CheckToken(token); err != nil {
		return err
	}
	if _, ok := t.tokens[token.UID]; ok {
		return fmt.Errorf("%w: token %s", store.ErrDuplicateKey, token.UID)
	}
	t.tokens[token.UID] = *token
	return nil
}

func (t *tokenIndex) Get(uid string) (*types.TokenInfo, error) {
	data, ok := t.tokens[uid]
	if !ok {
		return nil, nil
	}
	return t.info(data), nil
}

// iter walks a sorted snapshot of the uids of m.
func (t *tokenIndex) iter(m map[string]types.TokenData) *store.Cursor[*types.TokenInfo] {
	uids := slices.Sorted(maps.Keys(m))
	return store.NewCursor(func(yield func(*types.TokenInfo, error) bool) {
		for _, uid := range uids {
			data, ok := m[uid]
			if !ok {
				continue
			}
			if !yield(t.info(data), nil) {
				return
			}
		}
	})
}

func (t *tokenIndex) Iter() *store.Cursor[*types.TokenInfo] {
	return t.iter(t.tokens)
}

func (t *tokenIndex) Register(token *types.TokenData) error {
	if err := store.CheckToken(token); err != nil {
		return err
	}
	t.registered[token.UID] = *token
	return nil
}

func (t *tokenIndex) Unregister(uid string) error {
	delete(t.registered, uid)
	return nil
}

func (t *tokenIndex) IsRegistered(uid string) (bool, error) {
	_, ok := t.registered[uid]
	return ok, nil
}

func (t *tokenIndex) RegisteredIter() *store.Cursor[*types.TokenInfo] {
	return t.iter(t.registered)
}

func (t *tokenIndex) EditMeta(uid string, meta *types.TokenMetadata) error {
	if err := store.CheckTokenUID(uid); err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("%w: nil token metadata", store.ErrInvalidArgument)
	}
	t.meta[uid] = *meta
	return nil
}

func (t *tokenIndex) GetMeta(uid string) (*types.TokenMetadata, error) {
	m, ok := t.meta[uid]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (t *tokenIndex) ClearMeta() error {
	clear(t.meta)
	return nil
}

func (t *tokenIndex) Delete(uids []string) error {
	for _, uid := range uids {
		delete(t.tokens, uid)
		delete(t.meta, uid)
	}
	return nil
}

func (t *tokenIndex) Clear() error {
	clear(t.tokens)
	clear(t.registered)
	clear(t.meta)
	return nil
}
