package payload

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tos-network/intents/crypto"
)

// Standard names a supported signing standard on the wire.
type Standard string

const (
	StandardNEP413     Standard = "nep413"
	StandardERC191     Standard = "erc191"
	StandardTIP191     Standard = "tip191"
	StandardADR36      Standard = "adr36"
	StandardSEP53      Standard = "sep53"
	StandardSR25519    Standard = "sr25519"
	StandardTONConnect Standard = "ton_connect"
	StandardTEP104     Standard = "tep104"
	StandardBIP322     Standard = "bip322"
)

// MultiPayload is the closed union over every supported signed envelope.
// Exactly one variant is set. The JSON form is the variant's own object
// plus a "standard" discriminator field.
type MultiPayload struct {
	NEP413     *NEP413Payload
	ERC191     *ERC191Payload
	TIP191     *TIP191Payload
	ADR36      *ADR36Payload
	SEP53      *SEP53Payload
	SR25519    *SR25519Payload
	TONConnect *TONConnectPayload
	TEP104     *TEP104Payload
	BIP322     *BIP322Payload
}

// variant returns the set envelope, or nil when none is.
func (m *MultiPayload) variant() Signed {
	switch {
	case m.NEP413 != nil:
		return m.NEP413
	case m.ERC191 != nil:
		return m.ERC191
	case m.TIP191 != nil:
		return m.TIP191
	case m.ADR36 != nil:
		return m.ADR36
	case m.SEP53 != nil:
		return m.SEP53
	case m.SR25519 != nil:
		return m.SR25519
	case m.TONConnect != nil:
		return m.TONConnect
	case m.TEP104 != nil:
		return m.TEP104
	case m.BIP322 != nil:
		return m.BIP322
	default:
		return nil
	}
}

// Standard returns the discriminator of the set variant.
func (m *MultiPayload) Standard() Standard {
	switch {
	case m.NEP413 != nil:
		return StandardNEP413
	case m.ERC191 != nil:
		return StandardERC191
	case m.TIP191 != nil:
		return StandardTIP191
	case m.ADR36 != nil:
		return StandardADR36
	case m.SEP53 != nil:
		return StandardSEP53
	case m.SR25519 != nil:
		return StandardSR25519
	case m.TONConnect != nil:
		return StandardTONConnect
	case m.TEP104 != nil:
		return StandardTEP104
	case m.BIP322 != nil:
		return StandardBIP322
	default:
		return ""
	}
}

// Hash returns the digest the signature covers, per the variant's standard.
func (m *MultiPayload) Hash() crypto.Hash {
	if v := m.variant(); v != nil {
		return v.Hash()
	}
	return crypto.Hash{}
}

// Verify checks the variant's signature and returns the signer's public key.
func (m *MultiPayload) Verify() (crypto.PublicKey, bool) {
	if v := m.variant(); v != nil {
		return v.Verify()
	}
	return crypto.PublicKey{}, false
}

// UnmarshalJSON dispatches on the "standard" field and decodes the whole
// object into the matching variant.
func (m *MultiPayload) UnmarshalJSON(data []byte) error {
	var probe struct {
		Standard Standard `json:"standard"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	*m = MultiPayload{}
	var dst any
	switch probe.Standard {
	case StandardNEP413:
		m.NEP413 = new(NEP413Payload)
		dst = m.NEP413
	case StandardERC191:
		m.ERC191 = new(ERC191Payload)
		dst = m.ERC191
	case StandardTIP191:
		m.TIP191 = new(TIP191Payload)
		dst = m.TIP191
	case StandardADR36:
		m.ADR36 = new(ADR36Payload)
		dst = m.ADR36
	case StandardSEP53:
		m.SEP53 = new(SEP53Payload)
		dst = m.SEP53
	case StandardSR25519:
		m.SR25519 = new(SR25519Payload)
		dst = m.SR25519
	case StandardTONConnect:
		m.TONConnect = new(TONConnectPayload)
		dst = m.TONConnect
	case StandardTEP104:
		m.TEP104 = new(TEP104Payload)
		dst = m.TEP104
	case StandardBIP322:
		m.BIP322 = new(BIP322Payload)
		dst = m.BIP322
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedStandard, probe.Standard)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return nil
}

// MarshalJSON emits the variant's fields with the "standard" discriminator.
func (m MultiPayload) MarshalJSON() ([]byte, error) {
	v := m.variant()
	if v == nil {
		return nil, ErrMalformedEnvelope
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	flat := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, err
	}
	std, err := json.Marshal(m.Standard())
	if err != nil {
		return nil, err
	}
	flat["standard"] = std
	return json.Marshal(flat)
}

// ExtractPayload unwraps the envelope into the canonical payload shape.
// Adapters carrying a wall-clock timestamp reject payloads stamped in the
// future relative to now. Extraction does not verify the signature; callers
// run Verify first.
func ExtractPayload[T any](m *MultiPayload, now time.Time) (DefusePayload[T], error) {
	switch v := m.variant().(type) {
	case *NEP413Payload:
		return extractNEP413[T](v)
	case *ERC191Payload:
		return parseInnerPayload[T]([]byte(v.Payload))
	case *TIP191Payload:
		return parseInnerPayload[T]([]byte(v.Payload))
	case *ADR36Payload:
		return parseInnerPayload[T]([]byte(v.Payload))
	case *SEP53Payload:
		return parseInnerPayload[T]([]byte(v.Payload))
	case *SR25519Payload:
		return parseInnerPayload[T]([]byte(v.Payload))
	case *TONConnectPayload:
		msg, err := v.message(now)
		if err != nil {
			return DefusePayload[T]{}, err
		}
		return parseInnerPayload[T](msg)
	case *TEP104Payload:
		msg, err := v.message(now)
		if err != nil {
			return DefusePayload[T]{}, err
		}
		return parseInnerPayload[T](msg)
	case *BIP322Payload:
		if err := v.CheckSupported(); err != nil {
			return DefusePayload[T]{}, err
		}
		return parseInnerPayload[T]([]byte(v.Payload))
	default:
		return DefusePayload[T]{}, ErrMalformedEnvelope
	}
}
