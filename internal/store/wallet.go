package store

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

// GapLimit returns the stored gap limit.
func (s *Store) GapLimit() (uint32, error) {
	wd, err := s.backend.Wallet().WalletData()
	if err != nil {
		return 0, err
	}
	return wd.GapLimit, nil
}

// SetGapLimit stores the gap limit and makes gap-limit the scanning policy.
func (s *Store) SetGapLimit(gapLimit uint32) error {
	return s.SetScanPolicy(types.GapLimitPolicy(gapLimit))
}

// ScanPolicy returns the stored scanning policy.
func (s *Store) ScanPolicy() (types.ScanPolicy, error) {
	wd, err := s.backend.Wallet().WalletData()
	if err != nil {
		return types.ScanPolicy{}, err
	}
	return wd.ScanPolicy, nil
}

// SetScanPolicy stores the scanning policy. A gap-limit policy also updates
// the stored gap limit.
func (s *Store) SetScanPolicy(p types.ScanPolicy) error {
	if err := CheckScanPolicy(p); err != nil {
		return err
	}
	if p.Kind == types.ScanPolicyGapLimit {
		if err := s.backend.Wallet().SetGapLimit(p.GapLimit); err != nil {
			return err
		}
	}
	return s.backend.Wallet().SetScanPolicy(p)
}

// IndexLimit returns the index-limit bounds, or ok=false when another
// policy is active.
func (s *Store) IndexLimit() (start, end uint32, ok bool, err error) {
	p, err := s.ScanPolicy()
	if err != nil {
		return 0, 0, false, err
	}
	if p.Kind != types.ScanPolicyIndexLimit {
		return 0, 0, false, nil
	}
	return p.StartIndex, p.EndIndex, true, nil
}

// SetCurrentAddressIndex moves the current pointer. It may not pass the
// last loaded address.
func (s *Store) SetCurrentAddressIndex(index int64) error {
	if err := CheckPointer("current address index", index); err != nil {
		return err
	}
	wd, err := s.backend.Wallet().WalletData()
	if err != nil {
		return err
	}
	if index > wd.LastLoadedAddressIndex {
		return fmt.Errorf("%w: current address index %d beyond last loaded %d",
			ErrInvalidArgument, index, wd.LastLoadedAddressIndex)
	}
	return s.backend.Wallet().SetCurrentAddressIndex(index)
}

// SetLastUsedAddressIndex records the highest address seen in history.
func (s *Store) SetLastUsedAddressIndex(index int64) error {
	if err := CheckPointer("last used address index", index); err != nil {
		return err
	}
	return s.backend.Wallet().SetLastUsedAddressIndex(index)
}

// BestBlockHeight returns the best known chain height.
func (s *Store) BestBlockHeight() (uint32, error) {
	wd, err := s.backend.Wallet().WalletData()
	if err != nil {
		return 0, err
	}
	return wd.BestBlockHeight, nil
}

// SetBestBlockHeight stores the best known chain height.
func (s *Store) SetBestBlockHeight(height uint32) error {
	return s.backend.Wallet().SetBestBlockHeight(height)
}
