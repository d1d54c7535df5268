package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"math/big"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Signature and key sizes, in bytes.
const (
	Ed25519PublicKeyLength   = ed25519.PublicKeySize
	Ed25519SignatureLength   = ed25519.SignatureSize
	Secp256k1PublicKeyLength = 64 // uncompressed, no SEC1 tag byte
	Secp256k1SignatureLength = 65 // r || s || v
	P256PublicKeyLength      = 33 // compressed SEC1
	P256SignatureLength      = 64 // r || s
	Sr25519PublicKeyLength   = 32 // compressed ristretto point
	Sr25519SignatureLength   = 64
)

// sr25519SigningContext is the schnorrkel signing context used by Substrate
// wallets (Polkadot.js, Talisman, Subwallet).
var sr25519SigningContext = []byte("substrate")

// weakEd25519Keys lists the canonical encodings of the small-order points of
// edwards25519. Signatures under these keys can be forged for arbitrary
// messages, so verification rejects them outright.
var weakEd25519Keys = [][Ed25519PublicKeyLength]byte{
	{0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x80},
	{0xec, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f},
	{0xc7, 0x17, 0x6a, 0x70, 0x3d, 0x4d, 0xd8, 0x4f, 0xba, 0x3c, 0x0b, 0x76, 0x0d, 0x10, 0x67, 0x0f,
		0x2a, 0x20, 0x53, 0xfa, 0x2c, 0x39, 0xcc, 0xc6, 0x4e, 0xc7, 0xfd, 0x77, 0x92, 0xac, 0x03, 0x7a},
	{0xc7, 0x17, 0x6a, 0x70, 0x3d, 0x4d, 0xd8, 0x4f, 0xba, 0x3c, 0x0b, 0x76, 0x0d, 0x10, 0x67, 0x0f,
		0x2a, 0x20, 0x53, 0xfa, 0x2c, 0x39, 0xcc, 0xc6, 0x4e, 0xc7, 0xfd, 0x77, 0x92, 0xac, 0x03, 0xfa},
	{0x26, 0xe8, 0x95, 0x8f, 0xc2, 0xb2, 0x27, 0xb0, 0x45, 0xc3, 0xf4, 0x89, 0xf2, 0xef, 0x98, 0xf0,
		0xd5, 0xdf, 0xac, 0x05, 0xd3, 0xc6, 0x33, 0x39, 0xb1, 0x38, 0x02, 0x88, 0x6d, 0x53, 0xfc, 0x05},
	{0x26, 0xe8, 0x95, 0x8f, 0xc2, 0xb2, 0x27, 0xb0, 0x45, 0xc3, 0xf4, 0x89, 0xf2, 0xef, 0x98, 0xf0,
		0xd5, 0xdf, 0xac, 0x05, 0xd3, 0xc6, 0x33, 0x39, 0xb1, 0x38, 0x02, 0x88, 0x6d, 0x53, 0xfc, 0x85},
}

// Ed25519Verify confirms an Ed25519 signature over message under pub and
// returns the key on success. Weak (small-order) public keys are rejected.
func Ed25519Verify(sig [Ed25519SignatureLength]byte, message []byte, pub [Ed25519PublicKeyLength]byte) ([Ed25519PublicKeyLength]byte, bool) {
	for _, weak := range weakEd25519Keys {
		if pub == weak {
			return pub, false
		}
	}
	if !ed25519.Verify(pub[:], message, sig[:]) {
		return pub, false
	}
	return pub, true
}

// Secp256k1Recover recovers the public key that produced sig over digest.
// The signature is r || s || v with v in {0, 1}; callers dealing with
// Ethereum-style 27/28 recovery ids must normalize them first. Malleable
// (high-S) signatures are rejected. The returned key is the uncompressed
// form with the SEC1 tag byte stripped.
func Secp256k1Recover(sig [Secp256k1SignatureLength]byte, digest Hash) ([Secp256k1PublicKeyLength]byte, bool) {
	var pub [Secp256k1PublicKeyLength]byte
	v := sig[64]
	if v > 1 {
		return pub, false
	}
	var s btcec.ModNScalar
	if s.SetByteSlice(sig[32:64]) {
		return pub, false
	}
	if s.IsOverHalfOrder() {
		return pub, false
	}
	// RecoverCompact expects the header byte first: 27 + v.
	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])
	key, _, err := btcecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return pub, false
	}
	uncompressed := key.SerializeUncompressed()
	copy(pub[:], uncompressed[1:])
	return pub, true
}

// P256Verify confirms a NIST P-256 ECDSA signature over digest under the
// compressed public key pub. Signatures whose s component lies in the upper
// half of the curve order fail verification: canonical signatures must use
// the low-S form.
func P256Verify(sig [P256SignatureLength]byte, digest Hash, pub [P256PublicKeyLength]byte) ([P256PublicKeyLength]byte, bool) {
	curve := elliptic.P256()
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	halfOrder := new(big.Int).Rsh(curve.Params().N, 1)
	if s.Cmp(halfOrder) > 0 {
		return pub, false
	}
	x, y := elliptic.UnmarshalCompressed(curve, pub[:])
	if x == nil || y == nil {
		return pub, false
	}
	key := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	if !ecdsa.Verify(key, digest[:], r, s) {
		return pub, false
	}
	return pub, true
}

// SchnorrVerify confirms a BIP-340 Schnorr signature over digest under the
// 32-byte x-only public key pub.
func SchnorrVerify(sig [64]byte, digest Hash, pub [32]byte) ([32]byte, bool) {
	key, err := schnorr.ParsePubKey(pub[:])
	if err != nil {
		return pub, false
	}
	signature, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return pub, false
	}
	return pub, signature.Verify(digest[:], key)
}

// Sr25519Verify confirms a Schnorrkel signature over message under pub,
// using the "substrate" signing context.
func Sr25519Verify(sig [Sr25519SignatureLength]byte, message []byte, pub [Sr25519PublicKeyLength]byte) ([Sr25519PublicKeyLength]byte, bool) {
	key := new(schnorrkel.PublicKey)
	if err := key.Decode(pub); err != nil {
		return pub, false
	}
	signature := new(schnorrkel.Signature)
	if err := signature.Decode(sig); err != nil {
		return pub, false
	}
	transcript := schnorrkel.NewSigningContext(sr25519SigningContext, message)
	ok, err := key.Verify(signature, transcript)
	if err != nil || !ok {
		return pub, false
	}
	return pub, true
}
