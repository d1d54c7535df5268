package payload

import (
	"fmt"

	"github.com/tos-network/intents/crypto"
)

// TIP191Payload is a TRON signed-message envelope. Same construction as
// ERC-191 with the TRON prefix string.
type TIP191Payload struct {
	Payload   string           `json:"payload"`
	Signature crypto.Signature `json:"signature"`
}

// Hash returns keccak256("\x19TRON Signed Message:\n<len>" || msg).
func (p *TIP191Payload) Hash() crypto.Hash {
	msg := []byte(p.Payload)
	prefix := fmt.Sprintf("\x19TRON Signed Message:\n%d", len(msg))
	return crypto.Keccak256([]byte(prefix), msg)
}

// Verify recovers the secp256k1 signer from the signature.
func (p *TIP191Payload) Verify() (crypto.PublicKey, bool) {
	return recoverSecp256k1(p.Signature, p.Hash())
}
