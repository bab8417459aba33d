// Package config handles wallet store configuration.
//
// Settings come from three sources, lowest precedence first: built-in
// defaults, the walletstore.conf file in the data directory, and
// command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/Klingon-tech/klingnet-walletstore/pkg/crypto"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// BackendType selects the store backend.
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendBadger BackendType = "badger"
)

// Config holds the wallet store configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Store backend
	Store StoreConfig

	// Wallet whose partition is opened
	Wallet WalletConfig

	// Logging
	Log LogConfig
}

// StoreConfig holds backend settings.
type StoreConfig struct {
	Backend    BackendType `conf:"store.backend"`
	SyncWrites bool        `conf:"store.syncwrites"` // fsync every write (badger only)
}

// WalletConfig identifies the wallet and its chain parameters.
type WalletConfig struct {
	// ID is the keyspace partition id. Derived from XPub when empty.
	ID         string `conf:"wallet.id"`
	XPub       string `conf:"wallet.xpub"`
	RewardLock uint32 `conf:"wallet.rewardlock"` // Blocks a block reward stays locked.
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// WalletID returns the configured wallet id, or the one derived from the
// xpub when none is set.
func (c *Config) WalletID() string {
	if c.Wallet.ID != "" {
		return c.Wallet.ID
	}
	if c.Wallet.XPub != "" {
		return crypto.WalletIDFromXPub(c.Wallet.XPub)
	}
	return ""
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.walletstore
//	macOS:   ~/Library/Application Support/WalletStore
//	Windows: %APPDATA%\WalletStore
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletstore"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "WalletStore")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "WalletStore")
		}
		return filepath.Join(home, "AppData", "Roaming", "WalletStore")
	default:
		return filepath.Join(home, ".walletstore")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// StoreDir returns the badger directory shared by all wallets of a network.
func (c *Config) StoreDir() string {
	return filepath.Join(c.ChainDataDir(), "walletdb")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "walletstore.conf")
}
