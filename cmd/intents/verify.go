package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tos-network/intents/engine"
	"github.com/tos-network/intents/payload"
	"github.com/urfave/cli/v2"
)

type outputVerify struct {
	Standard          string `json:"standard"`
	PublicKey         string `json:"public_key"`
	SignerID          string `json:"signer_id"`
	VerifyingContract string `json:"verifying_contract"`
	Deadline          string `json:"deadline"`
	Nonce             string `json:"nonce"`
	Intents           int    `json:"intents"`
}

var commandVerify = &cli.Command{
	Name:      "verify",
	Usage:     "verify a signed payload and print its canonical form",
	ArgsUsage: "<payload.json>",
	Description: `
Read a signed envelope from the given JSON file, check its signature and
unwrap it into the canonical payload, printing the routing header.

The file may hold a single envelope object or an array of them.`,
	Flags: []cli.Flag{
		jsonFlag,
	},
	Action: func(ctx *cli.Context) error {
		batch := readBatch(ctx.Args().First())
		now := time.Now()
		for i := range batch {
			mp := &batch[i]
			pub, ok := mp.Verify()
			if !ok {
				Fatalf("Payload %d: signature verification failed", i)
			}
			pl, err := payload.ExtractPayload[engine.Intents](mp, now)
			if err != nil {
				Fatalf("Payload %d: %v", i, err)
			}
			out := outputVerify{
				Standard:          string(mp.Standard()),
				PublicKey:         pub.String(),
				SignerID:          pl.SignerID,
				VerifyingContract: pl.VerifyingContract,
				Deadline:          pl.Deadline.UTC().Format(time.RFC3339),
				Nonce:             pl.Nonce.String(),
				Intents:           len(pl.Message.Intents),
			}
			if ctx.Bool(jsonFlag.Name) {
				mustPrintJSON(out)
				continue
			}
			fmt.Println("Standard:           ", out.Standard)
			fmt.Println("Public key:         ", out.PublicKey)
			fmt.Println("Signer:             ", out.SignerID)
			fmt.Println("Verifying contract: ", out.VerifyingContract)
			fmt.Println("Deadline:           ", out.Deadline)
			fmt.Println("Nonce:              ", out.Nonce)
			fmt.Println("Intents:            ", out.Intents)
		}
		return nil
	},
}

// readBatch loads one envelope or an array of envelopes from path.
func readBatch(path string) []payload.MultiPayload {
	if path == "" {
		Fatalf("Missing payload file argument")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		Fatalf("Failed to read payload file '%s': %v", path, err)
	}
	var batch []payload.MultiPayload
	if err := json.Unmarshal(data, &batch); err == nil {
		return batch
	}
	var single payload.MultiPayload
	if err := json.Unmarshal(data, &single); err != nil {
		Fatalf("Failed to parse payload file '%s': %v", path, err)
	}
	return []payload.MultiPayload{single}
}
