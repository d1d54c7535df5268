package engine

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Pips is a fee rate in parts per million.
type Pips uint32

// MaxPips is a 100% fee rate.
const MaxPips Pips = 1_000_000

var ErrFeeRange = errors.New("engine: fee rate out of range")

var pipsDenominator = uint256.NewInt(uint64(MaxPips))

// FromPips validates a parts-per-million rate.
func FromPips(v uint32) (Pips, error) {
	if Pips(v) > MaxPips {
		return 0, fmt.Errorf("%w: %d pips", ErrFeeRange, v)
	}
	return Pips(v), nil
}

// FromBips converts basis points (1/100 of a percent) to pips. The scaling
// runs in 64 bits so oversized inputs fail the range check instead of
// wrapping.
func FromBips(v uint32) (Pips, error) {
	pips := uint64(v) * 100
	if pips > uint64(MaxPips) {
		return 0, fmt.Errorf("%w: %d bips", ErrFeeRange, v)
	}
	return Pips(pips), nil
}

// FromPercent converts whole percent to pips.
func FromPercent(v uint32) (Pips, error) {
	pips := uint64(v) * 10_000
	if pips > uint64(MaxPips) {
		return 0, fmt.Errorf("%w: %d percent", ErrFeeRange, v)
	}
	return Pips(pips), nil
}

// Fee computes amount * rate / 1_000_000, rounded down.
func (p Pips) Fee(amount *uint256.Int) *uint256.Int {
	// rate <= 1e6 keeps the quotient within amount, so the full-precision
	// product cannot overflow the result.
	fee, _ := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(uint64(p)), pipsDenominator)
	return fee
}

// FeeCeil computes amount * rate / 1_000_000, rounded up.
func (p Pips) FeeCeil(amount *uint256.Int) *uint256.Int {
	fee := p.Fee(amount)
	rem := new(uint256.Int).MulMod(amount, uint256.NewInt(uint64(p)), pipsDenominator)
	if !rem.IsZero() {
		fee.AddUint64(fee, 1)
	}
	return fee
}

// FeesConfig is the fee schedule the engine reads on every fee-bearing
// intent. Administrative flows outside the engine mutate it.
type FeesConfig struct {
	Fee          Pips
	FeeCollector string
}
