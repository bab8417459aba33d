package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingnet-walletstore/internal/ledger"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/crypto"
)

func writeConf(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walletstore.conf")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConf(t, `
# comment
network = testnet
store.backend = "memory"
wallet.id = 'AABBCCDDEEFF0011'
wallet.rewardlock = 42
`)
	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if values["store.backend"] != "memory" {
		t.Errorf("quotes not stripped: %q", values["store.backend"])
	}

	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if cfg.Network != Testnet || cfg.Store.Backend != BackendMemory {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Wallet.ID != "aabbccddeeff0011" {
		t.Errorf("wallet id = %q, want lowercased", cfg.Wallet.ID)
	}
	if cfg.Wallet.RewardLock != 42 {
		t.Errorf("reward lock = %d", cfg.Wallet.RewardLock)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %v", values)
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := writeConf(t, "network testnet\n")
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("err = %v, want line 1 error", err)
	}
}

func TestApplyFileConfig_BadNumber(t *testing.T) {
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, map[string]string{"wallet.rewardlock": "-1"}); err == nil {
		t.Fatal("negative reward lock accepted")
	}
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{"--testnet", "--wallet-id=0011223344556677", "--reward-lock=0", "utxos", "--token=00"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if f.Network != string(Testnet) {
		t.Errorf("network = %q", f.Network)
	}
	if !f.SetRewardLock || f.RewardLock != 0 {
		t.Errorf("reward lock = %d set=%v", f.RewardLock, f.SetRewardLock)
	}
	if len(f.Args) != 2 || f.Args[0] != "utxos" || f.Args[1] != "--token=00" {
		t.Errorf("args = %v", f.Args)
	}

	cfg := DefaultMainnet()
	ApplyFlags(cfg, f)
	if cfg.Wallet.RewardLock != 0 {
		t.Errorf("explicit zero reward lock not applied: %d", cfg.Wallet.RewardLock)
	}
}

func TestParseFlags_Unknown(t *testing.T) {
	if _, err := ParseFlags([]string{"--bogus"}); err == nil {
		t.Fatal("unknown flag accepted")
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConf(t, "store.backend = memory\nwallet.xpub = xpub-file\nlog.level = warn\n")
	cfg, _, err := Load([]string{"--config", path, "--log-level=debug", "stats"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("backend = %q, want file value", cfg.Store.Backend)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want flag value", cfg.Log.Level)
	}
	if cfg.WalletID() != crypto.WalletIDFromXPub("xpub-file") {
		t.Errorf("wallet id = %q", cfg.WalletID())
	}
	if cfg.Wallet.RewardLock != ledger.DefaultRewardLock {
		t.Errorf("reward lock = %d, want default", cfg.Wallet.RewardLock)
	}
}

func TestLoad_EnsuresDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	cfg, _, err := Load([]string{"--datadir", dir, "--xpub", "x"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(cfg.ConfigFile()); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if _, err := os.Stat(cfg.ChainDataDir()); err != nil {
		t.Fatalf("chain dir not created: %v", err)
	}

	// The written default parses back to the defaults.
	values, err := LoadFile(cfg.ConfigFile())
	if err != nil {
		t.Fatal(err)
	}
	again := DefaultMainnet()
	if err := ApplyFileConfig(again, values); err != nil {
		t.Fatal(err)
	}
	if again.Store != DefaultMainnet().Store || again.Wallet != DefaultMainnet().Wallet {
		t.Errorf("default file drifted from defaults: %+v", again)
	}
}

func TestLoad_Help(t *testing.T) {
	cfg, f, err := Load([]string{"-h"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg != nil || !f.Help {
		t.Fatalf("cfg = %v, help = %v", cfg, f.Help)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultMainnet()
		cfg.Wallet.XPub = "xpub"
		return cfg
	}
	if err := Validate(valid()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := map[string]func(*Config){
		"network":   func(c *Config) { c.Network = "regtest" },
		"backend":   func(c *Config) { c.Store.Backend = "sqlite" },
		"datadir":   func(c *Config) { c.DataDir = "" },
		"no wallet": func(c *Config) { c.Wallet.XPub = "" },
		"bad id":    func(c *Config) { c.Wallet.ID = "xyz" },
		"short id":  func(c *Config) { c.Wallet.ID = "0011" },
		"log level": func(c *Config) { c.Log.Level = "loud" },
	}
	for name, mutate := range tests {
		cfg := valid()
		mutate(cfg)
		if err := Validate(cfg); err == nil {
			t.Errorf("%s: invalid config accepted", name)
		}
	}

	mem := valid()
	mem.Store.Backend = BackendMemory
	mem.DataDir = ""
	if err := Validate(mem); err != nil {
		t.Errorf("memory backend without datadir rejected: %v", err)
	}
	if err := Validate(nil); err == nil {
		t.Error("nil config accepted")
	}
}

func TestDefaultTestnet(t *testing.T) {
	cfg := Default(Testnet)
	if cfg.Network != Testnet || cfg.Wallet.RewardLock != TestnetRewardLock {
		t.Fatalf("testnet defaults = %+v", cfg)
	}
	if !strings.HasSuffix(cfg.StoreDir(), filepath.Join("testnet", "walletdb")) {
		t.Errorf("store dir = %q", cfg.StoreDir())
	}
}
