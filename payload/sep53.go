package payload

import (
	"github.com/tos-network/intents/crypto"
)

// sep53Prefix precedes the message per SEP-53 (Stellar signed messages).
const sep53Prefix = "Stellar Signed Message:\n"

// SEP53Payload is a Stellar signed-message envelope.
type SEP53Payload struct {
	Payload   string           `json:"payload"`
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
}

// Hash returns sha256("Stellar Signed Message:\n" || msg).
func (p *SEP53Payload) Hash() crypto.Hash {
	return crypto.Sha256([]byte(sep53Prefix), []byte(p.Payload))
}

// Verify checks the Ed25519 signature over the SEP-53 digest.
func (p *SEP53Payload) Verify() (crypto.PublicKey, bool) {
	return verifyEd25519(p.PublicKey, p.Signature, p.Hash().Bytes())
}

// verifyEd25519 checks an Ed25519 signature over message with an explicit
// curve-tagged key.
func verifyEd25519(key crypto.PublicKey, signature crypto.Signature, message []byte) (crypto.PublicKey, bool) {
	if key.Curve != crypto.CurveEd25519 || signature.Curve != crypto.CurveEd25519 {
		return crypto.PublicKey{}, false
	}
	var pub [crypto.Ed25519PublicKeyLength]byte
	var sig [crypto.Ed25519SignatureLength]byte
	copy(pub[:], key.Key)
	copy(sig[:], signature.Sig)
	if _, ok := crypto.Ed25519Verify(sig, message, pub); !ok {
		return crypto.PublicKey{}, false
	}
	return key, true
}
