package payload

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/tos-network/intents/crypto"
	"github.com/tos-network/intents/nonce"
)

// nep413Prefix is the NEP-413 message discriminant: 2^31 + 413, serialized
// little-endian ahead of the borsh payload so an off-chain message can never
// collide with an on-chain transaction hash.
const nep413Prefix = uint32(1<<31) + 413

// NEP413Message is the signed NEP-413 structure. The message string carries
// the canonical payload JSON minus nonce and verifying contract, which the
// envelope itself provides.
type NEP413Message struct {
	Message     string      `json:"message"`
	Nonce       nonce.Nonce `json:"nonce"`
	Recipient   string      `json:"recipient"`
	CallbackURL *string     `json:"callback_url,omitempty"`
}

// NEP413Payload is a NEP-413 signed envelope.
type NEP413Payload struct {
	Payload   NEP413Message    `json:"payload"`
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
}

// borshString writes a u32 little-endian length prefix followed by the raw
// bytes, the borsh encoding of a string.
func borshString(w *bytes.Buffer, s string) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	w.Write(n[:])
	w.WriteString(s)
}

// Hash computes the NEP-413 prehash:
// sha256(le32(prefix) || borsh{message, nonce, recipient, callback_url?}).
func (p *NEP413Payload) Hash() crypto.Hash {
	var buf bytes.Buffer
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], nep413Prefix)
	buf.Write(prefix[:])
	borshString(&buf, p.Payload.Message)
	buf.Write(p.Payload.Nonce[:])
	borshString(&buf, p.Payload.Recipient)
	if p.Payload.CallbackURL != nil {
		buf.WriteByte(1)
		borshString(&buf, *p.Payload.CallbackURL)
	} else {
		buf.WriteByte(0)
	}
	return crypto.Sha256(buf.Bytes())
}

// Verify checks the Ed25519 signature over the NEP-413 prehash.
func (p *NEP413Payload) Verify() (crypto.PublicKey, bool) {
	if p.PublicKey.Curve != crypto.CurveEd25519 ||
		p.Signature.Curve != crypto.CurveEd25519 {
		return crypto.PublicKey{}, false
	}
	var pub [crypto.Ed25519PublicKeyLength]byte
	var sig [crypto.Ed25519SignatureLength]byte
	copy(pub[:], p.PublicKey.Key)
	copy(sig[:], p.Signature.Sig)
	hash := p.Hash()
	if _, ok := crypto.Ed25519Verify(sig, hash[:], pub); !ok {
		return crypto.PublicKey{}, false
	}
	return p.PublicKey, true
}

// extractNEP413 parses the inner message. Unlike the other standards the
// message omits nonce and verifying contract: the envelope's nonce and
// recipient fill those header slots.
func extractNEP413[T any](v *NEP413Payload) (DefusePayload[T], error) {
	var p DefusePayload[T]
	msg := []byte(v.Payload.Message)
	if !utf8.ValidString(v.Payload.Message) {
		return p, ErrInvalidUTF8
	}
	var hdr struct {
		SignerID string          `json:"signer_id"`
		Deadline *nonce.Deadline `json:"deadline"`
	}
	if err := json.Unmarshal(msg, &hdr); err != nil {
		return p, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if hdr.SignerID == "" || hdr.Deadline == nil {
		return p, fmt.Errorf("%w: missing header field", ErrSchemaMismatch)
	}
	if err := json.Unmarshal(msg, &p.Message); err != nil {
		return p, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	p.SignerID = hdr.SignerID
	p.Deadline = *hdr.Deadline
	p.Nonce = v.Payload.Nonce
	p.VerifyingContract = v.Payload.Recipient
	return p, nil
}
