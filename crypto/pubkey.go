package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
)

var (
	ErrUnknownCurve     = errors.New("crypto: unknown curve type")
	ErrInvalidKeyLength = errors.New("crypto: invalid public key length")
	ErrInvalidSigLength = errors.New("crypto: invalid signature length")
)

// CurveType identifies the signature scheme a key or signature belongs to.
type CurveType uint8

const (
	CurveEd25519 CurveType = iota
	CurveSecp256k1
	CurveP256
	CurveSr25519
)

func (c CurveType) String() string {
	switch c {
	case CurveEd25519:
		return "ed25519"
	case CurveSecp256k1:
		return "secp256k1"
	case CurveP256:
		return "p256"
	case CurveSr25519:
		return "sr25519"
	default:
		return "unknown"
	}
}

// CurveTypeFromString parses the canonical lowercase curve name.
func CurveTypeFromString(s string) (CurveType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ed25519":
		return CurveEd25519, nil
	case "secp256k1":
		return CurveSecp256k1, nil
	case "p256", "secp256r1":
		return CurveP256, nil
	case "sr25519":
		return CurveSr25519, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurve, s)
	}
}

func publicKeyLength(c CurveType) int {
	switch c {
	case CurveEd25519:
		return Ed25519PublicKeyLength
	case CurveSecp256k1:
		return Secp256k1PublicKeyLength
	case CurveP256:
		return P256PublicKeyLength
	case CurveSr25519:
		return Sr25519PublicKeyLength
	default:
		return 0
	}
}

func signatureLength(c CurveType) int {
	switch c {
	case CurveEd25519:
		return Ed25519SignatureLength
	case CurveSecp256k1:
		return Secp256k1SignatureLength
	case CurveP256:
		return P256SignatureLength
	case CurveSr25519:
		return Sr25519SignatureLength
	default:
		return 0
	}
}

// PublicKey is a curve-tagged public key. Its text form is
// "<curve>:<base58(key)>".
type PublicKey struct {
	Curve CurveType
	Key   []byte
}

// NewPublicKey validates the key length for the given curve.
func NewPublicKey(curve CurveType, key []byte) (PublicKey, error) {
	if len(key) != publicKeyLength(curve) {
		return PublicKey{}, fmt.Errorf("%w: %s key of %d bytes", ErrInvalidKeyLength, curve, len(key))
	}
	return PublicKey{Curve: curve, Key: append([]byte(nil), key...)}, nil
}

// ParsePublicKey parses the "<curve>:<base58>" text form.
func ParsePublicKey(s string) (PublicKey, error) {
	curveName, data, ok := strings.Cut(s, ":")
	if !ok {
		return PublicKey{}, fmt.Errorf("%w: missing curve prefix in %q", ErrUnknownCurve, s)
	}
	curve, err := CurveTypeFromString(curveName)
	if err != nil {
		return PublicKey{}, err
	}
	raw := base58.Decode(data)
	if len(raw) == 0 {
		return PublicKey{}, fmt.Errorf("%w: invalid base58 in %q", ErrInvalidKeyLength, s)
	}
	return NewPublicKey(curve, raw)
}

func (p PublicKey) String() string {
	return p.Curve.String() + ":" + base58.Encode(p.Key)
}

// Equal reports whether both keys have the same curve and bytes.
func (p PublicKey) Equal(other PublicKey) bool {
	return p.Curve == other.Curve && bytes.Equal(p.Key, other.Key)
}

// MarshalText implements encoding.TextMarshaler, making the JSON form the
// curve-prefixed base58 string.
func (p PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Signature is a curve-tagged signature sharing the text form of PublicKey.
type Signature struct {
	Curve CurveType
	Sig   []byte
}

// NewSignature validates the signature length for the given curve.
func NewSignature(curve CurveType, sig []byte) (Signature, error) {
	if len(sig) != signatureLength(curve) {
		return Signature{}, fmt.Errorf("%w: %s signature of %d bytes", ErrInvalidSigLength, curve, len(sig))
	}
	return Signature{Curve: curve, Sig: append([]byte(nil), sig...)}, nil
}

// ParseSignature parses the "<curve>:<base58>" text form.
func ParseSignature(s string) (Signature, error) {
	curveName, data, ok := strings.Cut(s, ":")
	if !ok {
		return Signature{}, fmt.Errorf("%w: missing curve prefix in %q", ErrUnknownCurve, s)
	}
	curve, err := CurveTypeFromString(curveName)
	if err != nil {
		return Signature{}, err
	}
	raw := base58.Decode(data)
	if len(raw) == 0 {
		return Signature{}, fmt.Errorf("%w: invalid base58 in %q", ErrInvalidSigLength, s)
	}
	return NewSignature(curve, raw)
}

func (s Signature) String() string {
	return s.Curve.String() + ":" + base58.Encode(s.Sig)
}

// MarshalText implements encoding.TextMarshaler.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signature) UnmarshalText(text []byte) error {
	parsed, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
