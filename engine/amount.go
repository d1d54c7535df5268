package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Amount is an unsigned 256-bit token amount. Its JSON form is a decimal
// string.
type Amount struct {
	uint256.Int
}

// NewAmount returns an amount holding v.
func NewAmount(v uint64) *Amount {
	a := new(Amount)
	a.SetUint64(v)
	return a
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Dec())
}

// UnmarshalJSON decodes a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("engine: invalid amount: %v", err)
	}
	if err := a.SetFromDecimal(s); err != nil {
		return fmt.Errorf("engine: invalid amount %q: %v", s, err)
	}
	return nil
}

// Delta is a signed 256-bit balance change. Its JSON form is a decimal
// string with an optional leading minus.
type Delta struct {
	Neg    bool
	Amount uint256.Int
}

// MarshalJSON encodes the delta as a signed decimal string.
func (d Delta) MarshalJSON() ([]byte, error) {
	s := d.Amount.Dec()
	if d.Neg && !d.Amount.IsZero() {
		s = "-" + s
	}
	return json.Marshal(s)
}

// UnmarshalJSON decodes a signed decimal string.
func (d *Delta) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("engine: invalid delta: %v", err)
	}
	raw, neg := strings.CutPrefix(s, "-")
	if err := d.Amount.SetFromDecimal(raw); err != nil {
		return fmt.Errorf("engine: invalid delta %q: %v", s, err)
	}
	if neg && d.Amount.IsZero() {
		return errors.New("engine: negative zero delta")
	}
	d.Neg = neg
	return nil
}
