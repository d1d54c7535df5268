package payload

import (
	"encoding/base64"
	"encoding/json"

	"github.com/tos-network/intents/crypto"
)

// ADR36Payload is a Cosmos arbitrary-data envelope. The payload string is
// wrapped in an amino sign doc with a single sign/MsgSignData message before
// hashing.
type ADR36Payload struct {
	Payload   string           `json:"payload"`
	Signer    string           `json:"signer"` // bech32 account address, echoed into the sign doc
	Signature crypto.Signature `json:"signature"`
}

// adr36SignDoc mirrors the ADR-36 amino sign doc. Field order is
// alphabetical so encoding/json reproduces the canonical sorted-key form
// byte for byte.
type adr36SignDoc struct {
	AccountNumber string     `json:"account_number"`
	ChainID       string     `json:"chain_id"`
	Fee           adr36Fee   `json:"fee"`
	Memo          string     `json:"memo"`
	Msgs          []adr36Msg `json:"msgs"`
	Sequence      string     `json:"sequence"`
}

type adr36Fee struct {
	Amount []struct{} `json:"amount"`
	Gas    string     `json:"gas"`
}

type adr36Msg struct {
	Type  string       `json:"type"`
	Value adr36MsgData `json:"value"`
}

type adr36MsgData struct {
	Data   string `json:"data"`
	Signer string `json:"signer"`
}

// signDocBytes serializes the ADR-36 sign doc for the payload: account
// number and sequence pinned to "0", empty chain id, zero fee.
func (p *ADR36Payload) signDocBytes() []byte {
	doc := adr36SignDoc{
		AccountNumber: "0",
		ChainID:       "",
		Fee:           adr36Fee{Amount: []struct{}{}, Gas: "0"},
		Memo:          "",
		Msgs: []adr36Msg{{
			Type: "sign/MsgSignData",
			Value: adr36MsgData{
				Data:   base64.StdEncoding.EncodeToString([]byte(p.Payload)),
				Signer: p.Signer,
			},
		}},
		Sequence: "0",
	}
	out, err := json.Marshal(doc)
	if err != nil {
		// Marshaling a fixed struct of strings cannot fail.
		panic(err)
	}
	return out
}

// Hash returns the sha256 digest of the serialized sign doc.
func (p *ADR36Payload) Hash() crypto.Hash {
	return crypto.Sha256(p.signDocBytes())
}

// Verify recovers the secp256k1 signer over the sign doc digest.
func (p *ADR36Payload) Verify() (crypto.PublicKey, bool) {
	return recoverSecp256k1(p.Signature, p.Hash())
}
