package payload

import (
	"github.com/tos-network/intents/crypto"
)

// SR25519Payload is a Substrate raw-bytes envelope. Wallets wrap the
// message in <Bytes>...</Bytes> markers before signing so an arbitrary blob
// cannot be mistaken for an extrinsic.
type SR25519Payload struct {
	Payload   string           `json:"payload"`
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
}

func (p *SR25519Payload) wrapped() []byte {
	return []byte("<Bytes>" + p.Payload + "</Bytes>")
}

// Hash returns the sha256 digest of the wrapped message. The signature does
// not cover this digest directly; it is the envelope's identity for
// deduplication and inspection.
func (p *SR25519Payload) Hash() crypto.Hash {
	return crypto.Sha256(p.wrapped())
}

// Verify checks the Schnorrkel signature over the wrapped message.
func (p *SR25519Payload) Verify() (crypto.PublicKey, bool) {
	if p.PublicKey.Curve != crypto.CurveSr25519 || p.Signature.Curve != crypto.CurveSr25519 {
		return crypto.PublicKey{}, false
	}
	var pub [crypto.Sr25519PublicKeyLength]byte
	var sig [crypto.Sr25519SignatureLength]byte
	copy(pub[:], p.PublicKey.Key)
	copy(sig[:], p.Signature.Sig)
	if _, ok := crypto.Sr25519Verify(sig, p.wrapped(), pub); !ok {
		return crypto.PublicKey{}, false
	}
	return p.PublicKey, true
}
