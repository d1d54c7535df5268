package payload

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tos-network/intents/crypto"
)

// tonConnectPrefix starts every TON Connect sign-data prehash, after the
// 0xffff tag that marks the blob as unsignable as a TON cell.
const tonConnectPrefix = "ton-connect/sign-data/"

// TONConnectData is the signed payload body: text or binary.
type TONConnectData struct {
	Type  string `json:"type"` // "text" or "binary"
	Text  string `json:"text,omitempty"`
	Bytes []byte `json:"bytes,omitempty"` // base64 on the wire
}

// TONConnectPayload is a TON Connect sign-data envelope.
type TONConnectPayload struct {
	Address   string           `json:"address"` // "<workchain>:<hex account id>"
	Domain    string           `json:"domain"`
	Timestamp int64            `json:"timestamp"` // unix seconds at signing
	Payload   TONConnectData   `json:"payload"`
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
}

// parseTONAddress splits the raw "<wc>:<hex>" form into workchain and the
// 32-byte account id.
func parseTONAddress(s string) (int32, [32]byte, error) {
	var account [32]byte
	wcPart, idPart, ok := strings.Cut(s, ":")
	if !ok {
		return 0, account, fmt.Errorf("%w: address %q", ErrMalformedEnvelope, s)
	}
	wc, err := strconv.ParseInt(wcPart, 10, 32)
	if err != nil {
		return 0, account, fmt.Errorf("%w: workchain %q", ErrMalformedEnvelope, wcPart)
	}
	raw, err := hex.DecodeString(idPart)
	if err != nil || len(raw) != 32 {
		return 0, account, fmt.Errorf("%w: account id %q", ErrMalformedEnvelope, idPart)
	}
	copy(account[:], raw)
	return int32(wc), account, nil
}

// prehash builds the sign-data message:
// 0xffff || "ton-connect/sign-data/" || wc_be || account || len(domain)_be ||
// domain || timestamp_be || ("txt"|"bin") || len(payload)_be || payload.
func (p *TONConnectPayload) prehash() ([]byte, error) {
	wc, account, err := parseTONAddress(p.Address)
	if err != nil {
		return nil, err
	}
	var body []byte
	var kind string
	switch p.Payload.Type {
	case "text":
		kind, body = "txt", []byte(p.Payload.Text)
	case "binary":
		kind, body = "bin", p.Payload.Bytes
	default:
		return nil, fmt.Errorf("%w: payload type %q", ErrMalformedEnvelope, p.Payload.Type)
	}
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff})
	buf.WriteString(tonConnectPrefix)
	binary.Write(&buf, binary.BigEndian, wc)
	buf.Write(account[:])
	binary.Write(&buf, binary.BigEndian, uint32(len(p.Domain)))
	buf.WriteString(p.Domain)
	binary.Write(&buf, binary.BigEndian, uint64(p.Timestamp))
	buf.WriteString(kind)
	binary.Write(&buf, binary.BigEndian, uint32(len(body)))
	buf.Write(body)
	return buf.Bytes(), nil
}

// Hash returns the sha256 digest of the sign-data prehash. A malformed
// envelope hashes to zero; Verify rejects it.
func (p *TONConnectPayload) Hash() crypto.Hash {
	pre, err := p.prehash()
	if err != nil {
		return crypto.Hash{}
	}
	return crypto.Sha256(pre)
}

// Verify checks the Ed25519 signature over the sign-data digest.
func (p *TONConnectPayload) Verify() (crypto.PublicKey, bool) {
	pre, err := p.prehash()
	if err != nil {
		return crypto.PublicKey{}, false
	}
	digest := crypto.Sha256(pre)
	return verifyEd25519(p.PublicKey, p.Signature, digest.Bytes())
}

// message returns the inner message bytes, rejecting envelopes stamped in
// the future.
func (p *TONConnectPayload) message(now time.Time) ([]byte, error) {
	if p.Timestamp > now.Unix() {
		return nil, fmt.Errorf("%w: signed at %d, now %d", ErrTimestampNotYetValid, p.Timestamp, now.Unix())
	}
	switch p.Payload.Type {
	case "text":
		return []byte(p.Payload.Text), nil
	case "binary":
		return p.Payload.Bytes, nil
	default:
		return nil, fmt.Errorf("%w: payload type %q", ErrMalformedEnvelope, p.Payload.Type)
	}
}
