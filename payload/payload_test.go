package payload

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/tos-network/intents/crypto"
	"github.com/tos-network/intents/nonce"
)

var payloadTestNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testMessage struct {
	Note string `json:"note"`
}

func testNonce(b byte) nonce.Nonce {
	var n nonce.Nonce
	for i := range n {
		n[i] = b
	}
	return n
}

// innerJSON builds the canonical payload JSON every adapter unwraps to.
func innerJSON(t *testing.T) string {
	t.Helper()
	p := DefusePayload[testMessage]{
		SignerID:          "alice.near",
		VerifyingContract: "intents.near",
		Deadline:          nonce.DeadlineAt(payloadTestNow.Add(time.Hour)),
		Nonce:             testNonce(0x11),
		Message:           testMessage{Note: "hello"},
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("failed to marshal inner payload: %v", err)
	}
	return string(data)
}

func checkExtracted(t *testing.T, got DefusePayload[testMessage]) {
	t.Helper()
	if got.SignerID != "alice.near" {
		t.Fatalf("signer_id = %q", got.SignerID)
	}
	if got.VerifyingContract != "intents.near" {
		t.Fatalf("verifying_contract = %q", got.VerifyingContract)
	}
	if !got.Deadline.Equal(payloadTestNow.Add(time.Hour)) {
		t.Fatalf("deadline = %s", got.Deadline)
	}
	if got.Nonce != testNonce(0x11) {
		t.Fatalf("nonce = %s", got.Nonce)
	}
	if got.Message.Note != "hello" {
		t.Fatalf("message = %+v", got.Message)
	}
}

func ed25519Keys(t *testing.T) (crypto.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate ed25519 key: %v", err)
	}
	key, err := crypto.NewPublicKey(crypto.CurveEd25519, pub)
	if err != nil {
		t.Fatalf("failed to wrap ed25519 key: %v", err)
	}
	return key, priv
}

func ed25519Sig(t *testing.T, priv ed25519.PrivateKey, digest crypto.Hash) crypto.Signature {
	t.Helper()
	sig, err := crypto.NewSignature(crypto.CurveEd25519, ed25519.Sign(priv, digest.Bytes()))
	if err != nil {
		t.Fatalf("failed to wrap signature: %v", err)
	}
	return sig
}

// compactSig converts a btcec compact signature (header first) into the
// r || s || v wire form.
func compactSig(t *testing.T, priv *btcec.PrivateKey, digest crypto.Hash) crypto.Signature {
	t.Helper()
	compact := btcecdsa.SignCompact(priv, digest.Bytes(), false)
	raw := make([]byte, 65)
	copy(raw, compact[1:])
	raw[64] = compact[0] - 27
	sig, err := crypto.NewSignature(crypto.CurveSecp256k1, raw)
	if err != nil {
		t.Fatalf("failed to wrap signature: %v", err)
	}
	return sig
}

func expectSecp256k1Key(t *testing.T, got crypto.PublicKey, priv *btcec.PrivateKey) {
	t.Helper()
	uncompressed := priv.PubKey().SerializeUncompressed()
	want, err := crypto.NewPublicKey(crypto.CurveSecp256k1, uncompressed[1:])
	if err != nil {
		t.Fatalf("failed to wrap expected key: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("recovered key %s, want %s", got, want)
	}
}

func TestNEP413RoundTrip(t *testing.T) {
	key, priv := ed25519Keys(t)
	inner := `{"signer_id":"alice.near","deadline":"2024-06-01T13:00:00Z","note":"hello"}`
	p := &NEP413Payload{
		Payload: NEP413Message{
			Message:   inner,
			Nonce:     testNonce(0x11),
			Recipient: "intents.near",
		},
		PublicKey: key,
	}
	p.Signature = ed25519Sig(t, priv, p.Hash())

	got, ok := p.Verify()
	if !ok {
		t.Fatal("valid NEP-413 signature rejected")
	}
	if !got.Equal(key) {
		t.Fatalf("verify returned %s, want %s", got, key)
	}

	m := &MultiPayload{NEP413: p}
	extracted, err := ExtractPayload[testMessage](m, payloadTestNow)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	checkExtracted(t, extracted)

	p.Payload.Message = inner + " "
	if _, ok := p.Verify(); ok {
		t.Fatal("tampered NEP-413 message verified")
	}
}

func TestNEP413CallbackURLChangesHash(t *testing.T) {
	cb := "https://example.com/cb"
	base := &NEP413Payload{Payload: NEP413Message{Message: "m", Nonce: testNonce(1), Recipient: "r"}}
	with := &NEP413Payload{Payload: NEP413Message{Message: "m", Nonce: testNonce(1), Recipient: "r", CallbackURL: &cb}}
	if base.Hash() == with.Hash() {
		t.Fatal("callback url not covered by the prehash")
	}
}

func TestERC191RoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("failed to generate secp256k1 key: %v", err)
	}
	p := &ERC191Payload{Payload: innerJSON(t)}
	p.Signature = compactSig(t, priv, p.Hash())

	got, ok := p.Verify()
	if !ok {
		t.Fatal("valid ERC-191 signature rejected")
	}
	expectSecp256k1Key(t, got, priv)

	m := &MultiPayload{ERC191: p}
	extracted, err := ExtractPayload[testMessage](m, payloadTestNow)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	checkExtracted(t, extracted)
}

func TestERC191EthereumRecoveryID(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("failed to generate secp256k1 key: %v", err)
	}
	p := &ERC191Payload{Payload: innerJSON(t)}
	sig := compactSig(t, priv, p.Hash())
	// Present the recovery id in the 27/28 convention.
	sig.Sig[64] += 27
	p.Signature = sig
	got, ok := p.Verify()
	if !ok {
		t.Fatal("27/28 recovery id rejected")
	}
	expectSecp256k1Key(t, got, priv)
}

func TestTIP191RoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("failed to generate secp256k1 key: %v", err)
	}
	p := &TIP191Payload{Payload: innerJSON(t)}
	p.Signature = compactSig(t, priv, p.Hash())

	got, ok := p.Verify()
	if !ok {
		t.Fatal("valid TIP-191 signature rejected")
	}
	expectSecp256k1Key(t, got, priv)

	erc := &ERC191Payload{Payload: p.Payload}
	if erc.Hash() == p.Hash() {
		t.Fatal("TRON and Ethereum prefixes hash identically")
	}
}

func TestADR36RoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("failed to generate secp256k1 key: %v", err)
	}
	p := &ADR36Payload{Payload: innerJSON(t), Signer: "cosmos1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu"}
	p.Signature = compactSig(t, priv, p.Hash())

	got, ok := p.Verify()
	if !ok {
		t.Fatal("valid ADR-36 signature rejected")
	}
	expectSecp256k1Key(t, got, priv)

	m := &MultiPayload{ADR36: p}
	extracted, err := ExtractPayload[testMessage](m, payloadTestNow)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	checkExtracted(t, extracted)
}

func TestADR36SignDocShape(t *testing.T) {
	p := &ADR36Payload{Payload: "hi", Signer: "cosmos1signer"}
	doc := p.signDocBytes()
	want := `{"account_number":"0","chain_id":"","fee":{"amount":[],"gas":"0"},"memo":"",` +
		`"msgs":[{"type":"sign/MsgSignData","value":{"data":"` +
		base64.StdEncoding.EncodeToString([]byte("hi")) +
		`","signer":"cosmos1signer"}}],"sequence":"0"}`
	if string(doc) != want {
		t.Fatalf("sign doc mismatch:\n got %s\nwant %s", doc, want)
	}
}

func TestSEP53RoundTrip(t *testing.T) {
	key, priv := ed25519Keys(t)
	p := &SEP53Payload{Payload: innerJSON(t), PublicKey: key}
	p.Signature = ed25519Sig(t, priv, p.Hash())

	got, ok := p.Verify()
	if !ok {
		t.Fatal("valid SEP-53 signature rejected")
	}
	if !got.Equal(key) {
		t.Fatalf("verify returned %s", got)
	}

	m := &MultiPayload{SEP53: p}
	extracted, err := ExtractPayload[testMessage](m, payloadTestNow)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	checkExtracted(t, extracted)
}

func TestSR25519RoundTrip(t *testing.T) {
	msk, err := schnorrkel.GenerateMiniSecretKey()
	if err != nil {
		t.Fatalf("failed to generate sr25519 key: %v", err)
	}
	secret := msk.ExpandEd25519()
	pubEnc := msk.Public().Encode()
	key, err := crypto.NewPublicKey(crypto.CurveSr25519, pubEnc[:])
	if err != nil {
		t.Fatalf("failed to wrap sr25519 key: %v", err)
	}

	p := &SR25519Payload{Payload: innerJSON(t), PublicKey: key}
	transcript := schnorrkel.NewSigningContext([]byte("substrate"), p.wrapped())
	sig, err := secret.Sign(transcript)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	sigEnc := sig.Encode()
	p.Signature, err = crypto.NewSignature(crypto.CurveSr25519, sigEnc[:])
	if err != nil {
		t.Fatalf("failed to wrap signature: %v", err)
	}

	got, ok := p.Verify()
	if !ok {
		t.Fatal("valid sr25519 signature rejected")
	}
	if !got.Equal(key) {
		t.Fatalf("verify returned %s", got)
	}

	m := &MultiPayload{SR25519: p}
	extracted, err := ExtractPayload[testMessage](m, payloadTestNow)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	checkExtracted(t, extracted)

	// The signature covers the wrapped message, not the raw payload.
	unwrapped := schnorrkel.NewSigningContext([]byte("substrate"), []byte(p.Payload))
	pubKey := new(schnorrkel.PublicKey)
	if err := pubKey.Decode(pubEnc); err != nil {
		t.Fatalf("failed to decode public key: %v", err)
	}
	if ok, _ := pubKey.Verify(sig, unwrapped); ok {
		t.Fatal("signature also valid over the unwrapped message")
	}
}

func TestTONConnectRoundTrip(t *testing.T) {
	key, priv := ed25519Keys(t)
	p := &TONConnectPayload{
		Address:   "0:1122334455667788990011223344556677889900112233445566778899001122",
		Domain:    "app.example.com",
		Timestamp: payloadTestNow.Add(-time.Minute).Unix(),
		Payload:   TONConnectData{Type: "text", Text: innerJSON(t)},
		PublicKey: key,
	}
	p.Signature = ed25519Sig(t, priv, p.Hash())

	got, ok := p.Verify()
	if !ok {
		t.Fatal("valid TON Connect signature rejected")
	}
	if !got.Equal(key) {
		t.Fatalf("verify returned %s", got)
	}

	m := &MultiPayload{TONConnect: p}
	extracted, err := ExtractPayload[testMessage](m, payloadTestNow)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	checkExtracted(t, extracted)
}

func TestTONConnectFutureTimestamp(t *testing.T) {
	key, priv := ed25519Keys(t)
	p := &TONConnectPayload{
		Address:   "0:0000000000000000000000000000000000000000000000000000000000000000",
		Domain:    "app.example.com",
		Timestamp: payloadTestNow.Add(time.Minute).Unix(),
		Payload:   TONConnectData{Type: "text", Text: innerJSON(t)},
		PublicKey: key,
	}
	p.Signature = ed25519Sig(t, priv, p.Hash())
	m := &MultiPayload{TONConnect: p}
	_, err := ExtractPayload[testMessage](m, payloadTestNow)
	if !errors.Is(err, ErrTimestampNotYetValid) {
		t.Fatalf("want ErrTimestampNotYetValid, got %v", err)
	}
}

func TestTEP104RoundTrip(t *testing.T) {
	key, priv := ed25519Keys(t)
	p := &TEP104Payload{
		SchemaCRC: 0x12345678,
		Timestamp: payloadTestNow.Add(-time.Minute).Unix(),
		Payload:   innerJSON(t),
		PublicKey: key,
	}
	p.Signature = ed25519Sig(t, priv, p.Hash())

	got, ok := p.Verify()
	if !ok {
		t.Fatal("valid TEP-104 signature rejected")
	}
	if !got.Equal(key) {
		t.Fatalf("verify returned %s", got)
	}

	m := &MultiPayload{TEP104: p}
	extracted, err := ExtractPayload[testMessage](m, payloadTestNow)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	checkExtracted(t, extracted)

	p.Timestamp = payloadTestNow.Add(time.Minute).Unix()
	if _, err := ExtractPayload[testMessage](m, payloadTestNow); !errors.Is(err, ErrTimestampNotYetValid) {
		t.Fatalf("want ErrTimestampNotYetValid, got %v", err)
	}
}

func TestTonCellHashChainsLongPayloads(t *testing.T) {
	short := tonCellHash([]byte("short"))
	if short == (crypto.Hash{}) {
		t.Fatal("zero cell hash")
	}
	long := make([]byte, 300) // three chained cells
	for i := range long {
		long[i] = byte(i)
	}
	if tonCellHash(long) == tonCellHash(long[:127]) {
		t.Fatal("chained cells ignored beyond the first")
	}
}

func TestMultiPayloadJSON(t *testing.T) {
	key, priv := ed25519Keys(t)
	p := &SEP53Payload{Payload: innerJSON(t), PublicKey: key}
	p.Signature = ed25519Sig(t, priv, p.Hash())
	m := MultiPayload{SEP53: p}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var back MultiPayload
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.SEP53 == nil || back.Standard() != StandardSEP53 {
		t.Fatalf("round-trip lost the variant: %+v", back)
	}
	if _, ok := back.Verify(); !ok {
		t.Fatal("signature no longer verifies after JSON round-trip")
	}
}

func TestMultiPayloadUnknownStandard(t *testing.T) {
	var m MultiPayload
	err := json.Unmarshal([]byte(`{"standard":"carrier_pigeon"}`), &m)
	if !errors.Is(err, ErrUnsupportedStandard) {
		t.Fatalf("want ErrUnsupportedStandard, got %v", err)
	}
}

func TestDefusePayloadFlattenRoundTrip(t *testing.T) {
	in := DefusePayload[testMessage]{
		SignerID:          "bob.near",
		VerifyingContract: "intents.near",
		Deadline:          nonce.DeadlineAt(payloadTestNow),
		Nonce:             testNonce(0x22),
		Message:           testMessage{Note: "flat"},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		t.Fatalf("not an object: %v", err)
	}
	if _, ok := probe["note"]; !ok {
		t.Fatalf("message field not flattened: %s", data)
	}
	var out DefusePayload[testMessage]
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out.SignerID != in.SignerID || out.Nonce != in.Nonce || out.Message != in.Message {
		t.Fatalf("round-trip mismatch: %+v", out)
	}
}

func TestParseInnerPayloadErrors(t *testing.T) {
	if _, err := parseInnerPayload[testMessage]([]byte{0xff, 0xfe}); !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("want ErrInvalidUTF8, got %v", err)
	}
	if _, err := parseInnerPayload[testMessage]([]byte(`{"note":"x"}`)); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("want ErrSchemaMismatch, got %v", err)
	}
}
