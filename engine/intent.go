package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tos-network/intents/crypto"
)

var ErrInvalidIntent = errors.New("engine: invalid intent")

// IntentKind names an intent variant on the wire.
type IntentKind string

const (
	IntentTransfer  IntentKind = "transfer"
	IntentTokenDiff IntentKind = "token_diff"
	IntentWithdraw  IntentKind = "withdraw"
)

// TransferIntent moves tokens from the signer to another ledger account.
type TransferIntent struct {
	ReceiverID string             `json:"receiver_id"`
	Tokens     map[string]*Amount `json:"tokens"`
	Memo       string             `json:"memo,omitempty"`
}

// TokenDiffIntent applies a signed balance diff to the signer: negative
// deltas are debited, positive deltas credited net of the configured fee.
type TokenDiffIntent struct {
	Diff map[string]*Delta `json:"diff"`
}

// WithdrawIntent burns tokens from the signer's ledger balance. The
// external transfer handoff happens outside the engine.
type WithdrawIntent struct {
	Token  string  `json:"token"`
	Amount *Amount `json:"amount"`
	Memo   string  `json:"memo,omitempty"`
}

// Intent is the closed union over intent variants. Exactly one is set. The
// JSON form is the variant's object with an "intent" discriminator.
type Intent struct {
	Transfer  *TransferIntent
	TokenDiff *TokenDiffIntent
	Withdraw  *WithdrawIntent
}

// Kind returns the discriminator of the set variant.
func (in *Intent) Kind() IntentKind {
	switch {
	case in.Transfer != nil:
		return IntentTransfer
	case in.TokenDiff != nil:
		return IntentTokenDiff
	case in.Withdraw != nil:
		return IntentWithdraw
	default:
		return ""
	}
}

// UnmarshalJSON dispatches on the "intent" field.
func (in *Intent) UnmarshalJSON(data []byte) error {
	var probe struct {
		Intent IntentKind `json:"intent"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIntent, err)
	}
	*in = Intent{}
	var dst any
	switch probe.Intent {
	case IntentTransfer:
		in.Transfer = new(TransferIntent)
		dst = in.Transfer
	case IntentTokenDiff:
		in.TokenDiff = new(TokenDiffIntent)
		dst = in.TokenDiff
	case IntentWithdraw:
		in.Withdraw = new(WithdrawIntent)
		dst = in.Withdraw
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidIntent, probe.Intent)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIntent, err)
	}
	return nil
}

// MarshalJSON emits the variant's fields with the "intent" discriminator.
func (in Intent) MarshalJSON() ([]byte, error) {
	var variant any
	switch {
	case in.Transfer != nil:
		variant = in.Transfer
	case in.TokenDiff != nil:
		variant = in.TokenDiff
	case in.Withdraw != nil:
		variant = in.Withdraw
	default:
		return nil, fmt.Errorf("%w: empty", ErrInvalidIntent)
	}
	body, err := json.Marshal(variant)
	if err != nil {
		return nil, err
	}
	flat := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, err
	}
	kind, err := json.Marshal(in.Kind())
	if err != nil {
		return nil, err
	}
	flat["intent"] = kind
	return json.Marshal(flat)
}

// Hash returns the sha256 digest of the intent's canonical JSON form.
// encoding/json sorts map keys, so the digest is deterministic.
func (in Intent) Hash() crypto.Hash {
	data, err := json.Marshal(in)
	if err != nil {
		return crypto.Hash{}
	}
	return crypto.Sha256(data)
}

// Intents is the message body of an execution payload.
type Intents struct {
	Intents []Intent `json:"intents"`
}
