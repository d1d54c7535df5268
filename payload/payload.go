// Package payload implements the signing-standard adapters: one envelope
// type per supported wallet standard (NEP-413, ERC-191, TIP-191, ADR-36,
// SEP-53, SR25519 raw, TON Connect, TEP-104, BIP-322), each unwrapping to
// the same canonical authenticated payload shape regardless of wire format.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/tos-network/intents/crypto"
	"github.com/tos-network/intents/nonce"
)

var (
	ErrMalformedEnvelope    = errors.New("payload: malformed envelope")
	ErrInvalidUTF8          = errors.New("payload: message is not valid UTF-8")
	ErrSchemaMismatch       = errors.New("payload: message does not match payload schema")
	ErrTimestampNotYetValid = errors.New("payload: timestamp not yet valid")
	ErrUnsupportedStandard  = errors.New("payload: unsupported signing standard")
)

// Payload is a message with a deterministic digest.
type Payload interface {
	Hash() crypto.Hash
}

// Signed is a payload carrying its own signature. Verify returns the
// signer's public key on success and reports failure as a bare false,
// without distinguishing why.
type Signed interface {
	Payload
	Verify() (crypto.PublicKey, bool)
}

// DefusePayload is the canonical authenticated message every adapter
// produces: a routing header plus a message body of type T. On the wire the
// header fields and T's fields share a single JSON object.
type DefusePayload[T any] struct {
	SignerID          string
	VerifyingContract string
	Deadline          nonce.Deadline
	Nonce             nonce.Nonce
	Message           T
}

type payloadHeader struct {
	SignerID          string          `json:"signer_id"`
	VerifyingContract string          `json:"verifying_contract"`
	Deadline          *nonce.Deadline `json:"deadline"`
	Nonce             *nonce.Nonce    `json:"nonce"`
}

// headerFieldNames are stripped from T's flattened representation when
// marshaling, so a round-trip cannot duplicate them.
var headerFieldNames = map[string]bool{
	"signer_id": true, "verifying_contract": true, "deadline": true, "nonce": true,
}

// UnmarshalJSON decodes the flattened wire object: header fields are read
// first, then the whole object is decoded again into the message body.
func (p *DefusePayload[T]) UnmarshalJSON(data []byte) error {
	var hdr payloadHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if hdr.SignerID == "" || hdr.VerifyingContract == "" || hdr.Deadline == nil || hdr.Nonce == nil {
		return fmt.Errorf("%w: missing header field", ErrSchemaMismatch)
	}
	if err := json.Unmarshal(data, &p.Message); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	p.SignerID = hdr.SignerID
	p.VerifyingContract = hdr.VerifyingContract
	p.Deadline = *hdr.Deadline
	p.Nonce = *hdr.Nonce
	return nil
}

// MarshalJSON flattens the header and the message body into one object.
func (p DefusePayload[T]) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(p.Message)
	if err != nil {
		return nil, err
	}
	flat := make(map[string]json.RawMessage)
	if len(body) > 0 && body[0] == '{' {
		if err := json.Unmarshal(body, &flat); err != nil {
			return nil, err
		}
		for name := range headerFieldNames {
			delete(flat, name)
		}
	}
	hdr, err := json.Marshal(payloadHeader{
		SignerID:          p.SignerID,
		VerifyingContract: p.VerifyingContract,
		Deadline:          &p.Deadline,
		Nonce:             &p.Nonce,
	})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(hdr, &flat); err != nil {
		return nil, err
	}
	return json.Marshal(flat)
}

// parseInnerPayload decodes a raw message string produced by an adapter as
// the canonical payload JSON.
func parseInnerPayload[T any](message []byte) (DefusePayload[T], error) {
	var p DefusePayload[T]
	if !utf8.Valid(message) {
		return p, ErrInvalidUTF8
	}
	if err := json.Unmarshal(message, &p); err != nil {
		if errors.Is(err, ErrSchemaMismatch) {
			return p, err
		}
		return p, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return p, nil
}
