package config

import (
	"encoding/hex"
	"fmt"

	"github.com/Klingon-tech/klingnet-walletstore/pkg/crypto"
)

// Validate checks the config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}

	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendBadger:
		if cfg.DataDir == "" {
			return fmt.Errorf("store.backend=%s requires a data directory", BackendBadger)
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q", BackendBadger, BackendMemory)
	}

	if cfg.Wallet.ID != "" {
		if err := validateWalletID(cfg.Wallet.ID); err != nil {
			return err
		}
	} else if cfg.Wallet.XPub == "" {
		return fmt.Errorf("wallet.id or wallet.xpub is required")
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}

func validateWalletID(id string) error {
	b, err := hex.DecodeString(id)
	if err != nil || len(b) != crypto.WalletIDSize {
		return fmt.Errorf("wallet.id must be %d-byte hex", crypto.WalletIDSize)
	}
	return nil
}
