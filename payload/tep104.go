package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/tos-network/intents/crypto"
)

// tep104Prefix starts the TEP-104 data-signature prehash after the 0xffff
// cell-unsignability tag.
const tep104Prefix = "ton-connect"

// tonCellCapacity is the data capacity of an ordinary TON cell: 1023 bits,
// of which snake encoding uses the 127 whole bytes.
const tonCellCapacity = 127

// TEP104Payload is a TON data-signature envelope. The payload string is
// stored in a snake-format cell chain; the signature covers the root cell
// hash together with the schema identifier and signing timestamp.
type TEP104Payload struct {
	SchemaCRC uint32           `json:"schema_crc"`
	Timestamp int64            `json:"timestamp"` // unix seconds at signing
	Payload   string           `json:"payload"`
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
}

// tonCellHash computes the representation hash of a snake-format cell chain
// holding data: chunks of 127 bytes, each cell referencing the next. The
// representation of a cell is d1 || d2 || data || per-ref depth_be(2) ||
// per-ref hash, with d1 = refs and d2 = 2 * len(data) for byte-aligned data.
func tonCellHash(data []byte) crypto.Hash {
	var chunks [][]byte
	for len(data) > tonCellCapacity {
		chunks = append(chunks, data[:tonCellCapacity])
		data = data[tonCellCapacity:]
	}
	chunks = append(chunks, data)

	var childHash crypto.Hash
	var childDepth uint16
	hasChild := false
	for i := len(chunks) - 1; i >= 0; i-- {
		var repr bytes.Buffer
		if hasChild {
			repr.WriteByte(1) // d1: one reference
		} else {
			repr.WriteByte(0)
		}
		repr.WriteByte(byte(2 * len(chunks[i]))) // d2: byte-aligned data
		repr.Write(chunks[i])
		if hasChild {
			binary.Write(&repr, binary.BigEndian, childDepth)
			repr.Write(childHash[:])
			childDepth++
		}
		childHash = crypto.Sha256(repr.Bytes())
		hasChild = true
	}
	return childHash
}

// Hash returns sha256(0xffff || "ton-connect" || schema_crc_be ||
// timestamp_be || cell_hash(payload)).
func (p *TEP104Payload) Hash() crypto.Hash {
	cell := tonCellHash([]byte(p.Payload))
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff})
	buf.WriteString(tep104Prefix)
	binary.Write(&buf, binary.BigEndian, p.SchemaCRC)
	binary.Write(&buf, binary.BigEndian, uint64(p.Timestamp))
	buf.Write(cell[:])
	return crypto.Sha256(buf.Bytes())
}

// Verify checks the Ed25519 signature over the TEP-104 digest.
func (p *TEP104Payload) Verify() (crypto.PublicKey, bool) {
	digest := p.Hash()
	return verifyEd25519(p.PublicKey, p.Signature, digest.Bytes())
}

// message returns the payload bytes, rejecting envelopes stamped in the
// future.
func (p *TEP104Payload) message(now time.Time) ([]byte, error) {
	if p.Timestamp > now.Unix() {
		return nil, fmt.Errorf("%w: signed at %d, now %d", ErrTimestampNotYetValid, p.Timestamp, now.Unix())
	}
	return []byte(p.Payload), nil
}
