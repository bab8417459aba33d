package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Klingon-tech/klingnet-walletstore/internal/log"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// Store
	Backend    string
	SyncWrites bool

	// Wallet
	WalletID   string
	XPub       string
	RewardLock uint

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args: the command and its arguments.
	Args []string

	// Explicitly-set flags (for zero-value overrides).
	SetSyncWrites bool
	SetRewardLock bool
	SetLogJSON    bool
}

// ParseFlags parses the global command-line flags in args. Parsing stops at
// the first non-flag argument, which starts the command.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("walletstore", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	testnet := fs.Bool("testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Store
	fs.StringVar(&f.Backend, "backend", "", "Store backend (badger or memory)")
	fs.BoolVar(&f.SyncWrites, "sync-writes", false, "Fsync every write")

	// Wallet
	fs.StringVar(&f.WalletID, "wallet-id", "", "Wallet partition id (16 hex chars)")
	fs.StringVar(&f.XPub, "xpub", "", "Wallet extended public key")
	fs.UintVar(&f.RewardLock, "reward-lock", 0, "Reward lock window in blocks")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			f.Help = true
			return f, nil
		}
		return nil, err
	}

	if *testnet {
		f.Network = string(Testnet)
	}
	f.SetSyncWrites = isFlagSet(fs, "sync-writes")
	f.SetRewardLock = isFlagSet(fs, "reward-lock")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()
	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Store
	if f.Backend != "" {
		cfg.Store.Backend = BackendType(strings.ToLower(f.Backend))
	}
	if f.SetSyncWrites {
		cfg.Store.SyncWrites = f.SyncWrites
	}

	// Wallet
	if f.WalletID != "" {
		cfg.Wallet.ID = strings.ToLower(f.WalletID)
	}
	if f.XPub != "" {
		cfg.Wallet.XPub = f.XPub
	}
	if f.SetRewardLock {
		cfg.Wallet.RewardLock = uint32(f.RewardLock)
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the global help text.
func PrintUsage(w io.Writer) {
	usage := `walletstore - wallet storage maintenance tool

Usage:
  walletstore [options] <command> [command options]
  walletstore --help

Commands:
  validate        Check and repair every index, print a report
  stats           Print index sizes and wallet pointers
  utxos           List spendable outputs (--token, --address, --desc,
                  --available, --target, --max)
  fund            Pick inputs covering an amount (--amount, --token, --address)
  locked          List locked outputs
  history         List transactions newest first (--token, --limit)
  tokens          List known tokens (--registered)
  addresses       List derived addresses (--limit)
  clean           Wipe indexes (--history, --addresses, --tokens, --meta)

Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.walletstore)
  --config, -c    Config file path (default: <datadir>/walletstore.conf)

Store Options:
  --backend       badger (default) or memory
  --sync-writes   Fsync every write

Wallet Options:
  --wallet-id     Wallet partition id (16 hex chars)
  --xpub          Wallet extended public key (derives the id)
  --reward-lock   Reward lock window in blocks (mainnet: 300, testnet: 10)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stdout)
  --log-json      Output logs as JSON

Examples:
  walletstore --xpub=<xpub> validate
  walletstore --testnet --wallet-id=0011223344556677 utxos --token=00 --available
`
	fmt.Fprint(w, usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Config file (a default one is written on first start)
// 3. Command-line flags
//
// Help and version flags are returned to the caller unhandled.
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if flags.Help || flags.Version {
		return nil, flags, nil
	}

	// Determine network first (needed for defaults)
	network := Mainnet
	if strings.ToLower(flags.Network) == string(Testnet) {
		network = Testnet
	}

	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	configPath := flags.Config
	if configPath == "" {
		if err := EnsureDataDirs(cfg); err != nil {
			return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
		}
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. It is idempotent.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.ChainDataDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	// Create default config if it doesn't exist.
	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
		log.Config.Info().Str("path", configPath).Msg("Wrote default config")
	}

	return nil
}
