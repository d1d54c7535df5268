package payload

import (
	"fmt"

	"github.com/tos-network/intents/crypto"
)

// ERC191Payload is an Ethereum personal-sign envelope: the payload string is
// the canonical payload JSON, signed over the prefixed keccak digest.
type ERC191Payload struct {
	Payload   string           `json:"payload"`
	Signature crypto.Signature `json:"signature"`
}

// erc191Digest computes keccak256("\x19Ethereum Signed Message:\n<len>" || msg).
func erc191Digest(msg []byte) crypto.Hash {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return crypto.Keccak256([]byte(prefix), msg)
}

// Hash returns the ERC-191 personal-sign digest of the payload.
func (p *ERC191Payload) Hash() crypto.Hash {
	return erc191Digest([]byte(p.Payload))
}

// Verify recovers the secp256k1 signer from the signature. Ethereum-style
// recovery ids 27 and 28 are normalized to 0 and 1 first.
func (p *ERC191Payload) Verify() (crypto.PublicKey, bool) {
	return recoverSecp256k1(p.Signature, p.Hash())
}

// recoverSecp256k1 runs key recovery over digest, accepting recovery ids in
// both the raw {0,1} and the Ethereum {27,28} conventions.
func recoverSecp256k1(signature crypto.Signature, digest crypto.Hash) (crypto.PublicKey, bool) {
	if signature.Curve != crypto.CurveSecp256k1 {
		return crypto.PublicKey{}, false
	}
	var sig [crypto.Secp256k1SignatureLength]byte
	copy(sig[:], signature.Sig)
	if sig[64] == 27 || sig[64] == 28 {
		sig[64] -= 27
	}
	raw, ok := crypto.Secp256k1Recover(sig, digest)
	if !ok {
		return crypto.PublicKey{}, false
	}
	pub, err := crypto.NewPublicKey(crypto.CurveSecp256k1, raw[:])
	if err != nil {
		return crypto.PublicKey{}, false
	}
	return pub, true
}
