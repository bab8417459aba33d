package config

import "github.com/Klingon-tech/klingnet-walletstore/internal/ledger"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Store: StoreConfig{
			Backend:    BackendBadger,
			SyncWrites: false,
		},
		Wallet: WalletConfig{
			RewardLock: ledger.DefaultRewardLock,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Wallet.RewardLock = TestnetRewardLock
	return cfg
}

// TestnetRewardLock is the reward lock window of testnet.
const TestnetRewardLock uint32 = 10

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
