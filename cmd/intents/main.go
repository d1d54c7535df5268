// intents is a command line tool for working with signed intent payloads:
// verifying envelopes, inspecting and minting nonces, and simulating batch
// execution against a configured ledger state.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tos-network/intents/log"
	"github.com/urfave/cli/v2"
)

var app = &cli.App{
	Name:  "intents",
	Usage: "verify, inspect and simulate signed intent payloads",
	Flags: []cli.Flag{
		verbosityFlag,
	},
	Before: func(ctx *cli.Context) error {
		log.SetLevel(log.Lvl(ctx.Int(verbosityFlag.Name)))
		return nil
	},
	Commands: []*cli.Command{
		commandVerify,
		commandNonce,
		commandSimulate,
	},
}

// Commonly used command line flags.
var (
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "output JSON instead of human-readable format",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "logging verbosity (0=error, 4=trace)",
		Value: int(log.LvlInfo),
	}
)

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Fatalf formats a message to stderr and exits.
func Fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

func mustPrintJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		Fatalf("Failed to marshal JSON output: %v", err)
	}
	fmt.Println(string(out))
}
