package nonce

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Length is the size of a nonce in bytes.
const Length = 32

// SaltLength is the size of a rotation salt in bytes.
const SaltLength = 4

// RandomLength is the number of trailing random bytes in a V1 nonce.
const RandomLength = 15

// magic prefixes every versioned nonce. A 32-byte value not starting with
// the magic is a legacy nonce with no internal structure.
var magic = [4]byte{0x56, 0x28, 0xf6, 0xc6}

// versionV1 is the tag byte for salted expirable nonces.
const versionV1 = 0x01

var (
	ErrNonceUsed    = errors.New("nonce: already used")
	ErrShortNonce   = errors.New("nonce: short input")
	ErrBadVersion   = errors.New("nonce: unknown version")
	ErrInvalidSalt  = errors.New("nonce: salt outside valid window")
	ErrExpired      = errors.New("nonce: expired")
	ErrDeadlineSkew = errors.New("nonce: deadline exceeds nonce deadline")
)

// Salt binds a V1 nonce to a rotation epoch.
type Salt [SaltLength]byte

func (s Salt) String() string { return fmt.Sprintf("%08x", s[:]) }

// Nonce is an opaque 256-bit replay token. Its wire form is self-describing:
// the leading bytes disambiguate legacy from versioned nonces without
// external context.
type Nonce [Length]byte

// Prefix is the high-order 248 bits of a nonce, the unit of bitmap storage
// and of garbage collection.
type Prefix [Length - 1]byte

// Prefix returns the nonce's high-order 248 bits.
func (n Nonce) Prefix() Prefix {
	var p Prefix
	copy(p[:], n[:Length-1])
	return p
}

// Bit returns the nonce's position within its prefix group.
func (n Nonce) Bit() uint { return uint(n[Length-1]) }

// IsVersioned reports whether the nonce carries the versioned magic.
func (n Nonce) IsVersioned() bool {
	return n[0] == magic[0] && n[1] == magic[1] && n[2] == magic[2] && n[3] == magic[3]
}

func (n Nonce) String() string { return base64.StdEncoding.EncodeToString(n[:]) }

// MarshalText encodes the nonce as standard base64, its JSON wire form.
func (n Nonce) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText decodes a standard base64 32-byte nonce.
func (n *Nonce) UnmarshalText(text []byte) error {
	raw, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("nonce: invalid base64: %v", err)
	}
	if len(raw) != Length {
		return fmt.Errorf("nonce: want %d bytes, got %d", Length, len(raw))
	}
	copy(n[:], raw)
	return nil
}

// ExpirableNonce is the inner portion of a V1 nonce: an embedded deadline
// allowing eager garbage collection plus random bytes for uniqueness.
type ExpirableNonce struct {
	Deadline Deadline
	Random   [RandomLength]byte
}

// SaltedNonce is the decoded form of a V1 nonce.
type SaltedNonce struct {
	Salt Salt
	ExpirableNonce
}

// NewV1Nonce encodes a salted expirable nonce into its 32-byte wire form:
// magic(4) || 0x01 || salt(4) || deadline(8, big-endian unix nanoseconds) ||
// random(15).
func NewV1Nonce(salt Salt, deadline Deadline, random [RandomLength]byte) Nonce {
	var n Nonce
	copy(n[0:4], magic[:])
	n[4] = versionV1
	copy(n[5:9], salt[:])
	binary.BigEndian.PutUint64(n[9:17], uint64(deadline.UnixNano()))
	copy(n[17:32], random[:])
	return n
}

// DecodeV1 parses a versioned nonce. It returns ErrShortNonce semantics via
// ok=false only for non-versioned nonces; a versioned nonce with an unknown
// version byte is an error.
func (n Nonce) DecodeV1() (SaltedNonce, bool, error) {
	if !n.IsVersioned() {
		return SaltedNonce{}, false, nil
	}
	if n[4] != versionV1 {
		return SaltedNonce{}, false, fmt.Errorf("%w: 0x%02x", ErrBadVersion, n[4])
	}
	var sn SaltedNonce
	copy(sn.Salt[:], n[5:9])
	sn.Deadline = DeadlineAt(time.Unix(0, int64(binary.BigEndian.Uint64(n[9:17]))))
	copy(sn.Random[:], n[17:32])
	return sn, true, nil
}
