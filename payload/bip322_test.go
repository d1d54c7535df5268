package payload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/tos-network/intents/crypto"
)

// encodeWitnessStack serializes witness items the way a wallet does for the
// BIP-322 simple format.
func encodeWitnessStack(t *testing.T, items ...[]byte) string {
	t.Helper()
	var buf bytes.Buffer
	writeVarint(&buf, uint64(len(items)))
	for _, item := range items {
		writeVarint(&buf, uint64(len(item)))
		buf.Write(item)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func segwitAddress(t *testing.T, program []byte) string {
	t.Helper()
	conv, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		t.Fatalf("failed to convert bits: %v", err)
	}
	addr, err := bech32.Encode("bc", append([]byte{0}, conv...))
	if err != nil {
		t.Fatalf("failed to encode address: %v", err)
	}
	return addr
}

func taprootAddress(t *testing.T, program []byte) string {
	t.Helper()
	conv, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		t.Fatalf("failed to convert bits: %v", err)
	}
	addr, err := bech32.EncodeM("bc", append([]byte{1}, conv...))
	if err != nil {
		t.Fatalf("failed to encode address: %v", err)
	}
	return addr
}

func TestBIP322P2WPKH(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	pubBytes := priv.PubKey().SerializeCompressed()
	program := btcutil.Hash160(pubBytes)

	p := &BIP322Payload{Address: segwitAddress(t, program), Payload: innerJSON(t)}
	script, err := parseBIP322Address(p.Address)
	if err != nil {
		t.Fatalf("failed to parse address: %v", err)
	}
	digest := segwitSighash(toSpendTxid(p.Hash(), script.pkScript), program)
	der := btcecdsa.Sign(priv, digest.Bytes()).Serialize()
	p.Signature = encodeWitnessStack(t, append(der, 0x01), pubBytes)

	got, ok := p.Verify()
	if !ok {
		t.Fatal("valid P2WPKH signature rejected")
	}
	uncompressed := priv.PubKey().SerializeUncompressed()
	want, _ := crypto.NewPublicKey(crypto.CurveSecp256k1, uncompressed[1:])
	if !got.Equal(want) {
		t.Fatalf("verify returned %s, want %s", got, want)
	}

	m := &MultiPayload{BIP322: p}
	extracted, err := ExtractPayload[testMessage](m, payloadTestNow)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	checkExtracted(t, extracted)

	// A different message must not verify against the same witness.
	p.Payload = p.Payload + " "
	if _, ok := p.Verify(); ok {
		t.Fatal("tampered message verified")
	}
}

func TestBIP322P2PKH(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	pubBytes := priv.PubKey().SerializeCompressed()
	program := btcutil.Hash160(pubBytes)

	p := &BIP322Payload{Address: base58.CheckEncode(program, 0x00), Payload: innerJSON(t)}
	script, err := parseBIP322Address(p.Address)
	if err != nil {
		t.Fatalf("failed to parse address: %v", err)
	}
	digest := legacySighash(toSpendTxid(p.Hash(), script.pkScript), script.pkScript)
	der := btcecdsa.Sign(priv, digest.Bytes()).Serialize()
	p.Signature = encodeWitnessStack(t, append(der, 0x01), pubBytes)

	if _, ok := p.Verify(); !ok {
		t.Fatal("valid P2PKH signature rejected")
	}

	// Wrong key for the address.
	other, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	p.Signature = encodeWitnessStack(t, append(der, 0x01), other.PubKey().SerializeCompressed())
	if _, ok := p.Verify(); ok {
		t.Fatal("witness with mismatched key verified")
	}
}

func TestBIP322P2TRKeyPath(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	program := schnorr.SerializePubKey(priv.PubKey())

	p := &BIP322Payload{Address: taprootAddress(t, program), Payload: innerJSON(t)}
	script, err := parseBIP322Address(p.Address)
	if err != nil {
		t.Fatalf("failed to parse address: %v", err)
	}
	digest := taprootSighash(toSpendTxid(p.Hash(), script.pkScript), script.pkScript, 0x00)
	sig, err := schnorr.Sign(priv, digest.Bytes())
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	p.Signature = encodeWitnessStack(t, sig.Serialize())

	if _, ok := p.Verify(); !ok {
		t.Fatal("valid P2TR key-path signature rejected")
	}

	m := &MultiPayload{BIP322: p}
	if _, err := ExtractPayload[testMessage](m, payloadTestNow); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
}

func TestBIP322UnsupportedAddressForms(t *testing.T) {
	// P2SH (base58 version 0x05) and P2WSH (witness v0, 32-byte program)
	// must surface the explicit unsupported error on extraction.
	p2sh := base58.CheckEncode(make([]byte, 20), 0x05)

	conv, err := bech32.ConvertBits(make([]byte, 32), 8, 5, true)
	if err != nil {
		t.Fatalf("failed to convert bits: %v", err)
	}
	p2wsh, err := bech32.Encode("bc", append([]byte{0}, conv...))
	if err != nil {
		t.Fatalf("failed to encode address: %v", err)
	}

	for _, addr := range []string{p2sh, p2wsh} {
		p := &BIP322Payload{Address: addr, Payload: innerJSON(t), Signature: encodeWitnessStack(t)}
		if _, ok := p.Verify(); ok {
			t.Fatalf("unsupported address %q verified", addr)
		}
		m := &MultiPayload{BIP322: p}
		if _, err := ExtractPayload[testMessage](m, payloadTestNow); !errors.Is(err, ErrUnsupportedStandard) {
			t.Fatalf("address %q: want ErrUnsupportedStandard, got %v", addr, err)
		}
	}
}

func TestBIP322MessageHashIsTagged(t *testing.T) {
	p := &BIP322Payload{Payload: ""}
	// Known vector from BIP-322: tagged hash of the empty message.
	want := "c90c269c4f8fcbe6880f72a721ddfbf1914268a794cbb21cfafee13770ae19f1"
	if got := p.Hash(); got.Hex() != "0x"+want {
		t.Fatalf("empty message hash = %s, want 0x%s", got.Hex(), want)
	}
}
