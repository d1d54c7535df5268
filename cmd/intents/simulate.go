package main

import (
	"fmt"
	"os"
	"time"

	"github.com/naoina/toml"
	"github.com/tos-network/intents/crypto"
	"github.com/tos-network/intents/engine"
	"github.com/tos-network/intents/log"
	"github.com/tos-network/intents/nonce"
	"github.com/urfave/cli/v2"
)

var configFlag = &cli.StringFlag{
	Name:     "config",
	Usage:    "TOML file describing the ledger state to simulate against",
	Required: true,
}

// simulateConfig is the TOML shape of a simulation environment.
type simulateConfig struct {
	VerifyingContract string `toml:"verifying_contract"`
	FeePips           uint32 `toml:"fee_pips"`
	FeeCollector      string `toml:"fee_collector"`
	SaltSeed          string `toml:"salt_seed"`
	Balances          []struct {
		Account string `toml:"account"`
		Token   string `toml:"token"`
		Amount  string `toml:"amount"`
	} `toml:"balances"`
	Keys []struct {
		Account string `toml:"account"`
		Key     string `toml:"key"`
	} `toml:"keys"`
}

var commandSimulate = &cli.Command{
	Name:      "simulate",
	Usage:     "dry-run a batch of signed payloads against a configured ledger",
	ArgsUsage: "<batch.json>",
	Description: `
Execute the batch against the ledger state described by --config, report
every event and balance change, then discard all mutations. The outcome is
identical to a real execution followed by a full rollback.

Signer keys come from [[keys]] entries in the config. Without any, the
signer-to-key binding check is skipped so unauthenticated batches can
still be dry-run.`,
	Flags: []cli.Flag{
		configFlag,
		jsonFlag,
	},
	Action: func(ctx *cli.Context) error {
		cfg := readSimulateConfig(ctx.String(configFlag.Name))
		batch := readBatch(ctx.Args().First())

		fee, err := engine.FromPips(cfg.FeePips)
		if err != nil {
			Fatalf("Invalid fee: %v", err)
		}
		ledger := engine.NewMemLedger()
		for _, b := range cfg.Balances {
			amount := new(engine.Amount)
			if err := amount.UnmarshalJSON([]byte(`"` + b.Amount + `"`)); err != nil {
				Fatalf("Invalid balance for %s/%s: %v", b.Account, b.Token, err)
			}
			ledger.SetBalance(b.Account, b.Token, amount.Clone())
		}
		ecfg := engine.Config{
			VerifyingContract: cfg.VerifyingContract,
			Fees:              engine.FeesConfig{Fee: fee, FeeCollector: cfg.FeeCollector},
			Ledger:            ledger,
			Salts:             nonce.NewRegistry([]byte(cfg.SaltSeed)),
			Logger:            log.New("module", "simulate"),
			Now:               time.Now,
		}
		if len(cfg.Keys) == 0 {
			ecfg.HasPublicKey = func(string, crypto.PublicKey) bool { return true }
		}
		e := engine.New(ecfg)
		for _, k := range cfg.Keys {
			key, err := crypto.ParsePublicKey(k.Key)
			if err != nil {
				Fatalf("Invalid key for %s: %v", k.Account, err)
			}
			e.AddPublicKey(k.Account, key)
		}

		collector, simErr := e.Simulate(batch)
		if ctx.Bool(jsonFlag.Name) {
			mustPrintJSON(simulateOutput(collector, simErr))
			return nil
		}
		for _, ev := range collector.Events {
			fmt.Printf("event %-18s %+v\n", ev.Kind, ev.Data)
		}
		fmt.Printf("intents executed: %d\n", len(collector.Executed))
		if simErr != nil {
			Fatalf("Simulation failed: %v", simErr)
		}
		fmt.Println("simulation ok")
		return nil
	},
}

type outputSimulate struct {
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Executed int           `json:"executed"`
	Events   []outputEvent `json:"events"`
}

type outputEvent struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

func simulateOutput(collector *engine.CollectingInspector, err error) outputSimulate {
	out := outputSimulate{
		OK:       err == nil,
		Executed: len(collector.Executed),
		Events:   make([]outputEvent, 0, len(collector.Events)),
	}
	if err != nil {
		out.Error = err.Error()
	}
	for _, ev := range collector.Events {
		out.Events = append(out.Events, outputEvent{Kind: string(ev.Kind), Data: ev.Data})
	}
	return out
}

func readSimulateConfig(path string) simulateConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		Fatalf("Failed to read config '%s': %v", path, err)
	}
	var cfg simulateConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		Fatalf("Failed to parse config '%s': %v", path, err)
	}
	if cfg.VerifyingContract == "" {
		Fatalf("Config '%s' is missing verifying_contract", path)
	}
	return cfg
}
