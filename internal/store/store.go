package store

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-walletstore/internal/ledger"
	"github.com/Klingon-tech/klingnet-walletstore/internal/log"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Store composes the five indexes of a backend and implements the
// operations that span more than one of them.
type Store struct {
	backend Backend
	policy  LockPolicy
	clock   clock.Clock
	log     zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLockPolicy sets the reward lock rules. Defaults to ledger.Rules.
func WithLockPolicy(p LockPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithClock sets the clock used to evaluate timelocks.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger for maintenance passes.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates a Store over the given backend.
func New(b Backend, opts ...Option) *Store {
	s := &Store{
		backend: b,
		policy:  ledger.Rules{},
		clock:   clock.NewDefaultClock(),
		log:     log.Store,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addresses returns the address index.
func (s *Store) Addresses() AddressIndex { return s.backend.Addresses() }

// History returns the history index.
func (s *Store) History() HistoryIndex { return s.backend.History() }

// Tokens returns the token index.
func (s *Store) Tokens() TokenIndex { return s.backend.Tokens() }

// Utxos returns the UTXO index.
func (s *Store) Utxos() UtxoIndex { return s.backend.Utxos() }

// Wallet returns the wallet metadata index.
func (s *Store) Wallet() WalletIndex { return s.backend.Wallet() }

// Close closes the backend.
func (s *Store) Close() error { return s.backend.Close() }

// SaveAddress stores a new address and extends the loaded window: the
// current pointer starts at the first saved address and the last loaded
// index follows the highest saved one.
func (s *Store) SaveAddress(info *types.AddressInfo) error {
	if err := s.backend.Addresses().Save(info); err != nil {
		return err
	}
	wd, err := s.backend.Wallet().WalletData()
	if err != nil {
		return err
	}
	idx := int64(info.Bip32Index)
	if wd.CurrentAddressIndex == -1 {
		if err := s.backend.Wallet().SetCurrentAddressIndex(idx); err != nil {
			return err
		}
	}
	if idx > wd.LastLoadedAddressIndex {
		if err := s.backend.Wallet().SetLastLoadedAddressIndex(idx); err != nil {
			return err
		}
	}
	return nil
}

// GetCurrentAddress returns the address at the current pointer. With
// markAsUsed the pointer advances by one but never past the last loaded
// address.
func (s *Store) GetCurrentAddress(markAsUsed bool) (string, error) {
	wd, err := s.backend.Wallet().WalletData()
	if err != nil {
		return "", err
	}
	if wd.CurrentAddressIndex < 0 {
		return "", ErrAddressNotLoaded
	}
	info, err := s.backend.Addresses().AtIndex(uint32(wd.CurrentAddressIndex))
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", fmt.Errorf("%w: index %d", ErrAddressNotLoaded, wd.CurrentAddressIndex)
	}
	if markAsUsed {
		next := min(wd.LastLoadedAddressIndex, wd.CurrentAddressIndex+1)
		if err := s.backend.Wallet().SetCurrentAddressIndex(next); err != nil {
			return "", err
		}
	}
	return info.Base58, nil
}

// SelectUtxos streams UTXOs matching opts in value order. See SelectOptions
// for the skip and stop rules. Callers may close the cursor at any point.
func (s *Store) SelectUtxos(opts SelectOptions, networkHeight uint32) *Cursor[*types.Utxo] {
	if err := opts.validate(); err != nil {
		return ErrCursor[*types.Utxo](err)
	}
	cands := s.backend.Utxos().Scan(opts.Query())
	return selectFrom(cands, opts, s.policy, networkHeight, s.clock.Now())
}

// IsUtxoLocked reports whether u is time- or reward-locked right now.
func (s *Store) IsUtxoLocked(u *types.Utxo, networkHeight, rewardLock uint32) bool {
	return IsLocked(s.policy, u, networkHeight, rewardLock, s.clock.Now())
}

// LockedUtxoCount returns the number of outputs in the locked set.
func (s *Store) LockedUtxoCount() (uint64, error) {
	return Count(s.backend.Utxos().LockedIter())
}

// ValidationReport aggregates the validation passes of all indexes.
type ValidationReport struct {
	Addresses AddressValidation
	History   ValidationResult
	Utxos     ValidationResult
}

// Repaired returns the total number of self-healed entries.
func (r *ValidationReport) Repaired() int {
	return r.Addresses.Repaired + r.History.Repaired + r.Utxos.Repaired
}

// Validate runs every index validation pass. The passes touch disjoint
// indexes and run in parallel; no mutation may run concurrently with them.
func (s *Store) Validate() (*ValidationReport, error) {
	defer log.Benchmark("store.validate")()

	var rep ValidationReport
	var g errgroup.Group
	g.Go(func() error {
		r, err := s.backend.Addresses().Validate()
		if err != nil {
			return fmt.Errorf("validate addresses: %w", err)
		}
		rep.Addresses = r
		return nil
	})
	g.Go(func() error {
		r, err := s.backend.History().Validate()
		if err != nil {
			return fmt.Errorf("validate history: %w", err)
		}
		rep.History = r
		return nil
	})
	g.Go(func() error {
		r, err := s.backend.Utxos().Validate()
		if err != nil {
			return fmt.Errorf("validate utxos: %w", err)
		}
		rep.Utxos = r
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Msg("Store validation failed")
		return nil, err
	}

	s.log.Info().
		Uint64("addresses", rep.Addresses.Count).
		Int64("first_index", rep.Addresses.FirstIndex).
		Int64("last_index", rep.Addresses.LastIndex).
		Uint64("txs", rep.History.Count).
		Uint64("utxos", rep.Utxos.Count).
		Int("repaired", rep.Repaired()).
		Msg("Store validated")
	return &rep, nil
}

// CleanStorage wipes whole indexes. Cleaning history also drops the UTXOs,
// locked outputs and metadata derived from it. Cleaning addresses resets
// the address pointers.
func (s *Store) CleanStorage(history, addresses, tokens bool) error {
	if history {
		if err := s.backend.History().Clear(); err != nil {
			return fmt.Errorf("clean history: %w", err)
		}
		if err := s.backend.Utxos().Clear(); err != nil {
			return fmt.Errorf("clean utxos: %w", err)
		}
		if err := s.CleanMetadata(); err != nil {
			return err
		}
	}
	if addresses {
		if err := s.backend.Addresses().Clear(); err != nil {
			return fmt.Errorf("clean addresses: %w", err)
		}
		if err := s.backend.Wallet().ResetAddressPointers(); err != nil {
			return fmt.Errorf("reset address pointers: %w", err)
		}
	}
	if tokens {
		if err := s.backend.Tokens().Clear(); err != nil {
			return fmt.Errorf("clean tokens: %w", err)
		}
	}
	return nil
}

// CleanMetadata wipes token and address metadata so it can be rebuilt.
func (s *Store) CleanMetadata() error {
	if err := s.backend.Tokens().ClearMeta(); err != nil {
		return fmt.Errorf("clear token metadata: %w", err)
	}
	if err := s.backend.Addresses().ClearMeta(); err != nil {
		return fmt.Errorf("clear address metadata: %w", err)
	}
	return nil
}
