// walletstore inspects and maintains a wallet's local store.
//
// Usage:
//
//	walletstore [options] <command> [command options]
//	walletstore --help
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/Klingon-tech/klingnet-walletstore/config"
	"github.com/Klingon-tech/klingnet-walletstore/internal/log"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store/kvstore"
	"github.com/Klingon-tech/klingnet-walletstore/internal/store/memstore"
	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

const version = "0.1.0"

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flags.Help {
		config.PrintUsage(os.Stdout)
		return
	}
	if flags.Version {
		fmt.Printf("walletstore version %s\n", version)
		return
	}
	if len(flags.Args) == 0 {
		config.PrintUsage(os.Stderr)
		os.Exit(1)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	s, err := openStore(cfg)
	if err != nil {
		fatal("open store: %v", err)
	}
	defer s.Close()

	cmd := flags.Args[0]
	cmdArgs := flags.Args[1:]
	log.CLI.Debug().Str("command", cmd).Str("wallet_id", cfg.WalletID()).Msg("Running command")

	switch cmd {
	case "validate":
		err = cmdValidate(s)
	case "stats":
		err = cmdStats(s)
	case "utxos":
		err = cmdUtxos(s, cmdArgs, cfg.Wallet.RewardLock)
	case "fund":
		err = cmdFund(s, cmdArgs, cfg.Wallet.RewardLock)
	case "locked":
		err = cmdLocked(s)
	case "history":
		err = cmdHistory(s, cmdArgs)
	case "tokens":
		err = cmdTokens(s, cmdArgs)
	case "addresses":
		err = cmdAddresses(s, cmdArgs)
	case "clean":
		err = cmdClean(s, cmdArgs)
	case "help":
		config.PrintUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		config.PrintUsage(os.Stderr)
		s.Close()
		os.Exit(1)
	}
	if err != nil {
		s.Close()
		fatal("%s: %v", cmd, err)
	}
}

func openStore(cfg *config.Config) (*store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		log.CLI.Warn().Msg("Using the memory backend, nothing will be persisted")
		return memstore.NewStore(), nil
	default:
		return kvstore.OpenStore(kvstore.Options{
			Path:       cfg.StoreDir(),
			SyncWrites: cfg.Store.SyncWrites,
			WalletID:   cfg.WalletID(),
		})
	}
}

// ── validate ────────────────────────────────────────────────────────────

func cmdValidate(s *store.Store) error {
	rep, err := s.Validate()
	if err != nil {
		return err
	}
	fmt.Printf("Addresses:    %d", rep.Addresses.Count)
	if rep.Addresses.Count > 0 {
		fmt.Printf(" (index %d..%d)", rep.Addresses.FirstIndex, rep.Addresses.LastIndex)
	}
	fmt.Println()
	fmt.Printf("Transactions: %d\n", rep.History.Count)
	fmt.Printf("UTXOs:        %d\n", rep.Utxos.Count)
	fmt.Printf("Repaired:     %d\n", rep.Repaired())
	return nil
}

// ── stats ───────────────────────────────────────────────────────────────

func cmdStats(s *store.Store) error {
	addrs, err := s.Addresses().Count()
	if err != nil {
		return err
	}
	txs, err := s.History().Count()
	if err != nil {
		return err
	}
	utxos, err := s.Utxos().Count()
	if err != nil {
		return err
	}
	locked, err := s.LockedUtxoCount()
	if err != nil {
		return err
	}
	tokens, err := store.Count(s.Tokens().Iter())
	if err != nil {
		return err
	}
	wd, err := s.Wallet().WalletData()
	if err != nil {
		return err
	}

	fmt.Printf("Addresses:      %d\n", addrs)
	fmt.Printf("Transactions:   %d\n", txs)
	fmt.Printf("UTXOs:          %d\n", utxos)
	fmt.Printf("Locked UTXOs:   %d\n", locked)
	fmt.Printf("Tokens:         %d\n", tokens)
	fmt.Printf("Best block:     %d\n", wd.BestBlockHeight)
	fmt.Printf("Gap limit:      %d\n", wd.GapLimit)
	fmt.Printf("Scan policy:    %s\n", wd.ScanPolicy.Kind)
	fmt.Printf("Current index:  %d\n", wd.CurrentAddressIndex)
	fmt.Printf("Last loaded:    %d\n", wd.LastLoadedAddressIndex)
	fmt.Printf("Last used:      %d\n", wd.LastUsedAddressIndex)
	return nil
}

// ── utxos ───────────────────────────────────────────────────────────────

func cmdUtxos(s *store.Store, args []string, rewardLock uint32) error {
	fs := flag.NewFlagSet("utxos", flag.ExitOnError)
	token := fs.String("token", types.NativeTokenUID, "Token uid")
	address := fs.String("address", "", "Only outputs of this address")
	desc := fs.Bool("desc", false, "Largest values first")
	available := fs.Bool("available", false, "Skip locked outputs")
	target := fs.Uint64("target", 0, "Stop once the selected sum reaches this amount")
	maxUtxos := fs.Int("max", 0, "Stop after this many outputs")
	height := fs.Uint("height", 0, "Network height for reward locks (default: best block)")
	fs.Parse(args)

	netHeight, err := networkHeight(s, *height)
	if err != nil {
		return err
	}
	opts := store.SelectOptions{
		Token:         *token,
		FilterAddress: *address,
		TargetAmount:  *target,
		MaxUtxos:      *maxUtxos,
		OnlyAvailable: *available,
		RewardLock:    rewardLock,
	}
	if *desc {
		opts.Order = store.OrderDesc
	}

	cur := s.SelectUtxos(opts, netHeight)
	defer cur.Close()
	var n int
	var sum uint64
	for cur.Next() {
		u := cur.Value()
		state := ""
		if s.IsUtxoLocked(u, netHeight, rewardLock) {
			state = " locked"
		}
		fmt.Printf("%s  %20d  %s%s\n", u.Outpoint(), u.Value, u.Address, state)
		n++
		sum += u.Value
	}
	if err := cur.Err(); err != nil {
		return err
	}
	fmt.Printf("\n%d outputs, total %d\n", n, sum)
	return nil
}

// ── fund ────────────────────────────────────────────────────────────────

func cmdFund(s *store.Store, args []string, rewardLock uint32) error {
	fs := flag.NewFlagSet("fund", flag.ExitOnError)
	amount := fs.Uint64("amount", 0, "Amount to cover")
	token := fs.String("token", types.NativeTokenUID, "Token uid")
	address := fs.String("address", "", "Only outputs of this address")
	height := fs.Uint("height", 0, "Network height for reward locks (default: best block)")
	fs.Parse(args)

	if *amount == 0 {
		return errors.New("usage: walletstore fund --amount <n> [--token <uid>] [--address <addr>]")
	}
	netHeight, err := networkHeight(s, *height)
	if err != nil {
		return err
	}
	sel, err := s.Fund(store.FundOptions{
		Token:         *token,
		FilterAddress: *address,
		RewardLock:    rewardLock,
	}, *amount, netHeight)
	if errors.Is(err, store.ErrInsufficientFunds) || errors.Is(err, store.ErrNoUtxos) {
		fmt.Println(err)
		return nil
	}
	if err != nil {
		return err
	}
	for _, u := range sel.Inputs {
		fmt.Printf("%s  %20d  %s\n", u.Outpoint(), u.Value, u.Address)
	}
	fmt.Printf("\nTotal:  %d\nChange: %d\n", sel.Total, sel.Change)
	return nil
}

// ── locked ──────────────────────────────────────────────────────────────

func cmdLocked(s *store.Store) error {
	cur := s.Utxos().LockedIter()
	defer cur.Close()
	for cur.Next() {
		l := cur.Value()
		fmt.Printf("%s  timestamp=%d\n", l.Outpoint(), l.Tx.Timestamp)
	}
	return cur.Err()
}

// ── history ─────────────────────────────────────────────────────────────

func cmdHistory(s *store.Store, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	token := fs.String("token", "", "Only transactions moving this token")
	limit := fs.Int("limit", 20, "Maximum number of transactions (0 = all)")
	fs.Parse(args)

	cur := s.History().Iter(*token)
	defer cur.Close()
	var n int
	for cur.Next() {
		tx := cur.Value()
		voided := ""
		if tx.IsVoided {
			voided = " voided"
		}
		fmt.Printf("%d  %s  in=%d out=%d%s\n", tx.Timestamp, tx.TxID, len(tx.Inputs), len(tx.Outputs), voided)
		n++
		if *limit > 0 && n >= *limit {
			break
		}
	}
	return cur.Err()
}

// ── tokens ──────────────────────────────────────────────────────────────

func cmdTokens(s *store.Store, args []string) error {
	fs := flag.NewFlagSet("tokens", flag.ExitOnError)
	registered := fs.Bool("registered", false, "Only tokens the user registered")
	fs.Parse(args)

	cur := s.Tokens().Iter()
	if *registered {
		cur = s.Tokens().RegisteredIter()
	}
	defer cur.Close()
	for cur.Next() {
		t := cur.Value()
		b := t.Balance.Tokens
		fmt.Printf("%-8s %-24s %s  txs=%d unlocked=%d locked=%d\n",
			t.Symbol, t.Name, t.UID, t.NumTransactions, b.Unlocked, b.Locked)
	}
	return cur.Err()
}

// ── addresses ───────────────────────────────────────────────────────────

func cmdAddresses(s *store.Store, args []string) error {
	fs := flag.NewFlagSet("addresses", flag.ExitOnError)
	limit := fs.Int("limit", 0, "Maximum number of addresses (0 = all)")
	fs.Parse(args)

	cur := s.Addresses().Iter()
	defer cur.Close()
	var n int
	for cur.Next() {
		a := cur.Value()
		fmt.Printf("%6d  %s\n", a.Bip32Index, a.Base58)
		n++
		if *limit > 0 && n >= *limit {
			break
		}
	}
	return cur.Err()
}

// ── clean ───────────────────────────────────────────────────────────────

func cmdClean(s *store.Store, args []string) error {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	history := fs.Bool("history", false, "Wipe history, UTXOs and metadata")
	addresses := fs.Bool("addresses", false, "Wipe addresses and reset pointers")
	tokens := fs.Bool("tokens", false, "Wipe the token registry")
	meta := fs.Bool("meta", false, "Wipe token and address metadata only")
	fs.Parse(args)

	if !*history && !*addresses && !*tokens && !*meta {
		return errors.New("usage: walletstore clean [--history] [--addresses] [--tokens] [--meta]")
	}
	if *meta && !*history {
		if err := s.CleanMetadata(); err != nil {
			return err
		}
	}
	if err := s.CleanStorage(*history, *addresses, *tokens); err != nil {
		return err
	}

	log.CLI.Info().
		Bool("history", *history).
		Bool("addresses", *addresses).
		Bool("tokens", *tokens).
		Bool("meta", *meta || *history).
		Msg("Storage cleaned")
	return nil
}

// ── Helpers ─────────────────────────────────────────────────────────────

// networkHeight returns h, or the stored best block height when h is 0.
func networkHeight(s *store.Store, h uint) (uint32, error) {
	if h > 0 {
		return uint32(h), nil
	}
	return s.BestBlockHeight()
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
