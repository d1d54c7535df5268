package payload

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/tos-network/intents/crypto"
)

// bip322Tag is the BIP-340 tag for the BIP-322 message hash.
const bip322Tag = "BIP0322-signed-message"

// BIP322Payload is a Bitcoin signed-message envelope in the BIP-322 simple
// format: the signature field holds the base64 witness stack of the virtual
// to_sign transaction. P2PKH, P2WPKH and P2TR key-path addresses are
// supported; script-hash forms fail verification and extraction reports
// them as unsupported.
type BIP322Payload struct {
	Address   string `json:"address"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"` // base64 witness stack
}

type bip322Script struct {
	kind     byte
	program  []byte
	pkScript []byte
}

const (
	bip322P2PKH = iota
	bip322P2WPKH
	bip322P2TR
)

// parseBIP322Address classifies the address and derives the scriptPubKey of
// the virtual to_spend output.
func parseBIP322Address(addr string) (bip322Script, error) {
	if raw, version, err := base58.CheckDecode(addr); err == nil {
		if version != 0x00 || len(raw) != 20 {
			return bip322Script{}, fmt.Errorf("%w: bip322 base58 address form", ErrUnsupportedStandard)
		}
		// OP_DUP OP_HASH160 PUSH20 <h> OP_EQUALVERIFY OP_CHECKSIG
		script := append([]byte{0x76, 0xa9, 0x14}, raw...)
		script = append(script, 0x88, 0xac)
		return bip322Script{kind: bip322P2PKH, program: raw, pkScript: script}, nil
	}
	_, data, version, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return bip322Script{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(data) < 1 {
		return bip322Script{}, fmt.Errorf("%w: empty witness program", ErrMalformedEnvelope)
	}
	witVer := data[0]
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return bip322Script{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	switch {
	case witVer == 0 && len(program) == 20 && version == bech32.Version0:
		script := append([]byte{0x00, 0x14}, program...)
		return bip322Script{kind: bip322P2WPKH, program: program, pkScript: script}, nil
	case witVer == 1 && len(program) == 32 && version == bech32.VersionM:
		script := append([]byte{0x51, 0x20}, program...)
		return bip322Script{kind: bip322P2TR, program: program, pkScript: script}, nil
	default:
		return bip322Script{}, fmt.Errorf("%w: bip322 witness v%d program of %d bytes",
			ErrUnsupportedStandard, witVer, len(program))
	}
}

func writeVarint(w *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		w.WriteByte(byte(n))
	case n <= 0xffff:
		w.WriteByte(0xfd)
		binary.Write(w, binary.LittleEndian, uint16(n))
	case n <= 0xffffffff:
		w.WriteByte(0xfe)
		binary.Write(w, binary.LittleEndian, uint32(n))
	default:
		w.WriteByte(0xff)
		binary.Write(w, binary.LittleEndian, n)
	}
}

// toSpendTxid serializes the virtual to_spend transaction and returns its
// txid. Per BIP-322 the transaction spends a null outpoint with scriptSig
// OP_0 PUSH32(tagged message hash) into the address's script.
func toSpendTxid(msgHash crypto.Hash, pkScript []byte) crypto.Hash {
	var tx bytes.Buffer
	binary.Write(&tx, binary.LittleEndian, uint32(0)) // version
	writeVarint(&tx, 1)                               // inputs
	tx.Write(make([]byte, 32))                        // null prevout hash
	binary.Write(&tx, binary.LittleEndian, uint32(0xffffffff))
	writeVarint(&tx, 34) // scriptSig: OP_0 PUSH32 <hash>
	tx.WriteByte(0x00)
	tx.WriteByte(0x20)
	tx.Write(msgHash[:])
	binary.Write(&tx, binary.LittleEndian, uint32(0)) // sequence
	writeVarint(&tx, 1)                               // outputs
	binary.Write(&tx, binary.LittleEndian, uint64(0)) // value
	writeVarint(&tx, uint64(len(pkScript)))
	tx.Write(pkScript)
	binary.Write(&tx, binary.LittleEndian, uint32(0)) // locktime
	return crypto.DoubleSha256(tx.Bytes())
}

// toSignOutput is the single output of to_sign: zero value, OP_RETURN.
func writeToSignOutputs(w *bytes.Buffer) {
	writeVarint(w, 1)
	binary.Write(w, binary.LittleEndian, uint64(0))
	writeVarint(w, 1)
	w.WriteByte(0x6a)
}

// legacySighash computes the pre-segwit SIGHASH_ALL digest of to_sign with
// the input script set to the to_spend output script.
func legacySighash(spendTxid crypto.Hash, pkScript []byte) crypto.Hash {
	var tx bytes.Buffer
	binary.Write(&tx, binary.LittleEndian, uint32(0)) // version
	writeVarint(&tx, 1)
	tx.Write(spendTxid[:])
	binary.Write(&tx, binary.LittleEndian, uint32(0)) // vout
	writeVarint(&tx, uint64(len(pkScript)))
	tx.Write(pkScript)
	binary.Write(&tx, binary.LittleEndian, uint32(0)) // sequence
	writeToSignOutputs(&tx)
	binary.Write(&tx, binary.LittleEndian, uint32(0)) // locktime
	binary.Write(&tx, binary.LittleEndian, uint32(1)) // SIGHASH_ALL
	return crypto.DoubleSha256(tx.Bytes())
}

// segwitSighash computes the BIP-143 SIGHASH_ALL digest of to_sign for a
// P2WPKH input.
func segwitSighash(spendTxid crypto.Hash, pubKeyHash []byte) crypto.Hash {
	var outpoint bytes.Buffer
	outpoint.Write(spendTxid[:])
	binary.Write(&outpoint, binary.LittleEndian, uint32(0))

	hashPrevouts := crypto.DoubleSha256(outpoint.Bytes())

	var seq bytes.Buffer
	binary.Write(&seq, binary.LittleEndian, uint32(0))
	hashSequence := crypto.DoubleSha256(seq.Bytes())

	var outs bytes.Buffer
	binary.Write(&outs, binary.LittleEndian, uint64(0))
	writeVarint(&outs, 1)
	outs.WriteByte(0x6a)
	hashOutputs := crypto.DoubleSha256(outs.Bytes())

	var pre bytes.Buffer
	binary.Write(&pre, binary.LittleEndian, uint32(0)) // version
	pre.Write(hashPrevouts[:])
	pre.Write(hashSequence[:])
	pre.Write(outpoint.Bytes())
	// scriptCode: the P2PKH script of the key hash, length-prefixed.
	pre.WriteByte(0x19)
	pre.Write([]byte{0x76, 0xa9, 0x14})
	pre.Write(pubKeyHash)
	pre.Write([]byte{0x88, 0xac})
	binary.Write(&pre, binary.LittleEndian, uint64(0)) // amount
	binary.Write(&pre, binary.LittleEndian, uint32(0)) // sequence
	pre.Write(hashOutputs[:])
	binary.Write(&pre, binary.LittleEndian, uint32(0)) // locktime
	binary.Write(&pre, binary.LittleEndian, uint32(1)) // SIGHASH_ALL
	return crypto.DoubleSha256(pre.Bytes())
}

// taprootSighash computes the BIP-341 key-path digest of to_sign for the
// given hash type (0x00 default or 0x01 all).
func taprootSighash(spendTxid crypto.Hash, pkScript []byte, hashType byte) crypto.Hash {
	var outpoint bytes.Buffer
	outpoint.Write(spendTxid[:])
	binary.Write(&outpoint, binary.LittleEndian, uint32(0))
	shaPrevouts := crypto.Sha256(outpoint.Bytes())

	var amounts bytes.Buffer
	binary.Write(&amounts, binary.LittleEndian, uint64(0))
	shaAmounts := crypto.Sha256(amounts.Bytes())

	var scripts bytes.Buffer
	writeVarint(&scripts, uint64(len(pkScript)))
	scripts.Write(pkScript)
	shaScriptPubKeys := crypto.Sha256(scripts.Bytes())

	var seqs bytes.Buffer
	binary.Write(&seqs, binary.LittleEndian, uint32(0))
	shaSequences := crypto.Sha256(seqs.Bytes())

	var outs bytes.Buffer
	binary.Write(&outs, binary.LittleEndian, uint64(0))
	writeVarint(&outs, 1)
	outs.WriteByte(0x6a)
	shaOutputs := crypto.Sha256(outs.Bytes())

	var msg bytes.Buffer
	msg.WriteByte(0x00) // sighash epoch
	msg.WriteByte(hashType)
	binary.Write(&msg, binary.LittleEndian, uint32(0)) // version
	binary.Write(&msg, binary.LittleEndian, uint32(0)) // locktime
	msg.Write(shaPrevouts[:])
	msg.Write(shaAmounts[:])
	msg.Write(shaScriptPubKeys[:])
	msg.Write(shaSequences[:])
	msg.Write(shaOutputs[:])
	msg.WriteByte(0x00)                                // spend type: key path, no annex
	binary.Write(&msg, binary.LittleEndian, uint32(0)) // input index
	return crypto.TaggedHash("TapSighash", msg.Bytes())
}

// parseWitnessStack decodes the base64 witness stack serialization: a
// varint item count followed by varint-length-prefixed items.
func parseWitnessStack(encoded string) ([][]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	r := bytes.NewReader(raw)
	count, err := readVarint(r)
	if err != nil {
		return nil, err
	}
	if count > 16 {
		return nil, fmt.Errorf("%w: witness stack of %d items", ErrMalformedEnvelope, count)
	}
	items := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		n, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		if n > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: truncated witness item", ErrMalformedEnvelope)
		}
		item := make([]byte, n)
		if _, err := r.Read(item); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		items = append(items, item)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing witness bytes", ErrMalformedEnvelope)
	}
	return items, nil
}

func readVarint(r *bytes.Reader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: truncated varint", ErrMalformedEnvelope)
	}
	switch b {
	case 0xfd:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, fmt.Errorf("%w: truncated varint", ErrMalformedEnvelope)
		}
		return uint64(v), nil
	case 0xfe:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, fmt.Errorf("%w: truncated varint", ErrMalformedEnvelope)
		}
		return uint64(v), nil
	case 0xff:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, fmt.Errorf("%w: truncated varint", ErrMalformedEnvelope)
		}
		return v, nil
	default:
		return uint64(b), nil
	}
}

// Hash returns the BIP-322 tagged hash of the message.
func (p *BIP322Payload) Hash() crypto.Hash {
	return crypto.TaggedHash(bip322Tag, []byte(p.Payload))
}

// Verify validates the witness stack against the virtual to_spend/to_sign
// transaction pair for the claimed address.
func (p *BIP322Payload) Verify() (crypto.PublicKey, bool) {
	script, err := parseBIP322Address(p.Address)
	if err != nil {
		return crypto.PublicKey{}, false
	}
	stack, err := parseWitnessStack(p.Signature)
	if err != nil {
		return crypto.PublicKey{}, false
	}
	spendTxid := toSpendTxid(p.Hash(), script.pkScript)

	switch script.kind {
	case bip322P2TR:
		if len(stack) != 1 {
			return crypto.PublicKey{}, false
		}
		sigBytes := stack[0]
		hashType := byte(0x00)
		if len(sigBytes) == 65 {
			hashType = sigBytes[64]
			if hashType != 0x01 {
				return crypto.PublicKey{}, false
			}
			sigBytes = sigBytes[:64]
		}
		if len(sigBytes) != 64 {
			return crypto.PublicKey{}, false
		}
		var sig [64]byte
		var xonly [32]byte
		copy(sig[:], sigBytes)
		copy(xonly[:], script.program)
		digest := taprootSighash(spendTxid, script.pkScript, hashType)
		if _, ok := crypto.SchnorrVerify(sig, digest, xonly); !ok {
			return crypto.PublicKey{}, false
		}
		return liftSecp256k1(script.program)

	case bip322P2WPKH, bip322P2PKH:
		if len(stack) != 2 {
			return crypto.PublicKey{}, false
		}
		sigBytes, pubBytes := stack[0], stack[1]
		if len(sigBytes) < 2 || sigBytes[len(sigBytes)-1] != 0x01 {
			return crypto.PublicKey{}, false
		}
		if !bytes.Equal(btcutil.Hash160(pubBytes), script.program) {
			return crypto.PublicKey{}, false
		}
		pub, err := btcec.ParsePubKey(pubBytes)
		if err != nil {
			return crypto.PublicKey{}, false
		}
		sig, err := btcecdsa.ParseDERSignature(sigBytes[:len(sigBytes)-1])
		if err != nil {
			return crypto.PublicKey{}, false
		}
		var digest crypto.Hash
		if script.kind == bip322P2WPKH {
			digest = segwitSighash(spendTxid, script.program)
		} else {
			digest = legacySighash(spendTxid, script.pkScript)
		}
		if !sig.Verify(digest[:], pub) {
			return crypto.PublicKey{}, false
		}
		uncompressed := pub.SerializeUncompressed()
		key, kerr := crypto.NewPublicKey(crypto.CurveSecp256k1, uncompressed[1:])
		if kerr != nil {
			return crypto.PublicKey{}, false
		}
		return key, true

	default:
		return crypto.PublicKey{}, false
	}
}

// liftSecp256k1 lifts an x-only key to the even-Y curve point and returns
// it in the uncompressed 64-byte form.
func liftSecp256k1(xonly []byte) (crypto.PublicKey, bool) {
	compressed := append([]byte{0x02}, xonly...)
	pub, err := btcec.ParsePubKey(compressed)
	if err != nil {
		return crypto.PublicKey{}, false
	}
	uncompressed := pub.SerializeUncompressed()
	key, err := crypto.NewPublicKey(crypto.CurveSecp256k1, uncompressed[1:])
	if err != nil {
		return crypto.PublicKey{}, false
	}
	return key, true
}

// CheckSupported reports whether the address form is one of the supported
// script types. Extraction surfaces this as an explicit unsupported error
// rather than a bare verification failure.
func (p *BIP322Payload) CheckSupported() error {
	_, err := parseBIP322Address(p.Address)
	return err
}
