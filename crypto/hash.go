// Package crypto implements the curve-agnostic signature verification layer
// used by the intents settlement core.
//
// Verification never reports why a signature was rejected: every failure mode
// (malformed input, wrong key, wrong curve) collapses into a bare negative
// result so that callers cannot be used as a verification oracle.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// HashLength is the expected length of a Hash.
const HashLength = 32

// Hash is the output of a 256-bit cryptographic hash function.
type Hash [HashLength]byte

// BytesToHash sets b to a Hash, left-padded if b is short.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the hash as a 0x-prefixed hex string.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// Sha256 computes the SHA-256 digest of the concatenation of data.
func Sha256(data ...[]byte) Hash {
	d := sha256.New()
	for _, b := range data {
		d.Write(b)
	}
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

// DoubleSha256 computes SHA-256(SHA-256(data)), the digest used by Bitcoin
// transaction identifiers and signature hashes.
func DoubleSha256(data ...[]byte) Hash {
	first := Sha256(data...)
	return Sha256(first[:])
}

// Keccak256 computes the legacy Keccak-256 digest of the concatenation of
// data. This is the hash used by Ethereum-style signed messages, not the
// finalized SHA-3.
func Keccak256(data ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

// TaggedHash computes the BIP-340 style tagged digest
// SHA-256(SHA-256(tag) || SHA-256(tag) || data...).
func TaggedHash(tag string, data ...[]byte) Hash {
	tagHash := Sha256([]byte(tag))
	d := sha256.New()
	d.Write(tagHash[:])
	d.Write(tagHash[:])
	for _, b := range data {
		d.Write(b)
	}
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}
