package settlement

import (
	"errors"
	"fmt"
	"math/big"
)

// Pips is a non-negative fixed-point fee rate in parts per million.
type Pips uint32

const (
	// PipsZero disables the protocol fee.
	PipsZero Pips = 0
	// OneBip is one basis point (0.01%).
	OneBip Pips = 100
	// OnePercent is 1%.
	OnePercent Pips = 10_000
	// MaxPips is the full unit. Fee rates must stay strictly below it.
	MaxPips Pips = 1_000_000
)

// ErrFeeTooHigh indicates a fee rate at or above 100%.
var ErrFeeTooHigh = errors.New("settlement: fee must be less than 100%")

var maxPipsBig = big.NewInt(int64(MaxPips))

// Validate rejects fee rates the settlement math cannot support.
func (p Pips) Validate() error {
	if p >= MaxPips {
		return ErrFeeTooHigh
	}
	return nil
}

func (p Pips) String() string {
	return fmt.Sprintf("%d pips", uint32(p))
}

// FeeCeil computes the fee on a non-negative amount, rounding up. Rounding up
// means any fractional pip is charged in full, so rounding can never leak
// value out of the ledger.
func (p Pips) FeeCeil(amount *big.Int) *big.Int {
	if p == 0 || amount.Sign() <= 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(int64(p)))
	rem := new(big.Int)
	fee.DivMod(fee, maxPipsBig, rem)
	if rem.Sign() > 0 {
		fee.Add(fee, big.NewInt(1))
	}
	return fee
}

// AdjustedDelta maps a raw requested delta into the amount the batch
// invariant accounts for: the delta plus the fee on its magnitude. Outgoing
// legs contribute less than face value to the pool and incoming legs consume
// more, so the per-token adjusted sums of a self-balancing batch are exactly
// zero and the raw sums leave precisely the collected fee behind.
func AdjustedDelta(delta *big.Int, fee Pips) *big.Int {
	return new(big.Int).Add(delta, fee.FeeCeil(new(big.Int).Abs(delta)))
}
