package store

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

// Argument checks shared by every backend. They run before any I/O.

// CheckAddress validates an address before it is saved.
func CheckAddress(info *types.AddressInfo) error {
	if info == nil || info.Base58 == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidArgument)
	}
	return nil
}

// CheckTx validates a transaction before it is saved.
func CheckTx(tx *types.HistoryTx) error {
	if tx == nil {
		return fmt.Errorf("%w: nil transaction", ErrInvalidArgument)
	}
	if tx.TxID.IsZero() {
		return fmt.Errorf("%w: empty tx id", ErrInvalidArgument)
	}
	return nil
}

// CheckToken validates a token before it is saved or registered.
func CheckToken(token *types.TokenData) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidArgument)
	}
	if err := types.ValidateTokenUID(token.UID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// CheckTokenUID validates a bare token uid.
func CheckTokenUID(uid string) error {
	if err := types.ValidateTokenUID(uid); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// CheckUtxo validates a UTXO before it is saved.
func CheckUtxo(u *types.Utxo) error {
	if u == nil {
		return fmt.Errorf("%w: nil utxo", ErrInvalidArgument)
	}
	if u.TxID.IsZero() {
		return fmt.Errorf("%w: empty utxo tx id", ErrInvalidArgument)
	}
	if err := types.ValidateTokenUID(u.Token); err != nil {
		return fmt.Errorf("%w: utxo %s: %v", ErrInvalidArgument, u.Outpoint(), err)
	}
	if u.Authorities&^types.AuthorityAll != 0 {
		return fmt.Errorf("%w: utxo %s: unknown authority bits %#x", ErrInvalidArgument, u.Outpoint(), u.Authorities)
	}
	return nil
}

// CheckLockedUtxo validates a locked output before it is saved.
func CheckLockedUtxo(l *types.LockedUtxo) error {
	if l == nil || l.Tx == nil {
		return fmt.Errorf("%w: locked utxo without transaction", ErrInvalidArgument)
	}
	if err := CheckTx(l.Tx); err != nil {
		return err
	}
	if int(l.Index) >= len(l.Tx.Outputs) {
		return fmt.Errorf("%w: locked utxo index %d out of range (%d outputs)", ErrInvalidArgument, l.Index, len(l.Tx.Outputs))
	}
	return nil
}

// CheckPointer validates an address pointer value. -1 (unset) is allowed.
func CheckPointer(name string, index int64) error {
	if index < -1 || index > int64(^uint32(0)) {
		return fmt.Errorf("%w: %s %d out of range", ErrInvalidArgument, name, index)
	}
	return nil
}

// CheckScanPolicy validates a scanning policy.
func CheckScanPolicy(p types.ScanPolicy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}
