package settlement

import (
	"errors"
	"math/big"
)

// ErrNoExactClosure indicates the fee-adjusted image skips the requested
// amount: no integer delta settles it exactly. Callers should adjust the
// quoted amount by one unit and retry.
var ErrNoExactClosure = errors.New("settlement: no exact closure for amount")

// ClosureDelta returns the raw delta a counter-party must sign so that,
// after fee adjustment, it exactly cancels the supplied raw delta. The fee is
// charged on both legs, so closing a 200-unit give at 1% quotes 196 to the
// receiving side.
func ClosureDelta(token string, delta *big.Int, fee Pips) (*big.Int, error) {
	if err := fee.Validate(); err != nil {
		return nil, err
	}
	_ = token // the fee rate is currently uniform across tokens
	target := new(big.Int).Neg(AdjustedDelta(delta, fee))
	return solveAdjusted(target, fee)
}

// ClosureSupplyDelta returns the raw delta that absorbs an unmatched
// fee-adjusted residual: the inverse quote a solver uses to compute what it
// owes for the leftovers a simulation reported.
func ClosureSupplyDelta(token string, residual *big.Int, fee Pips) (*big.Int, error) {
	if err := fee.Validate(); err != nil {
		return nil, err
	}
	_ = token
	target := new(big.Int).Neg(residual)
	return solveAdjusted(target, fee)
}

// solveAdjusted finds x with AdjustedDelta(x, fee) == target.
//
// The magnitude image m -> |AdjustedDelta(+-m, fee)| is monotone
// non-decreasing in m (strictly increasing for positive x), so a binary
// search over magnitudes locates the smallest candidate and an equality check
// decides whether the target is reachable. Positive targets can be skipped
// by the fee rounding (no exact solution); negative targets always have one
// since |x| - feeCeil(|x|) advances in unit steps.
func solveAdjusted(target *big.Int, fee Pips) (*big.Int, error) {
	if target.Sign() == 0 {
		return new(big.Int), nil
	}

	abs := new(big.Int).Abs(target)
	adjustedAbs := func(m *big.Int) *big.Int {
		x := new(big.Int).Set(m)
		if target.Sign() < 0 {
			x.Neg(x)
		}
		return new(big.Int).Abs(AdjustedDelta(x, fee))
	}

	// Upper bound on the magnitude: for positive targets the adjusted value
	// is at least the raw one; for negative targets invert the (1 - fee)
	// factor and pad for rounding.
	hi := new(big.Int).Set(abs)
	if target.Sign() < 0 {
		hi.Mul(new(big.Int).Add(abs, big.NewInt(2)), big.NewInt(int64(MaxPips)))
		hi.Div(hi, big.NewInt(int64(MaxPips)-int64(fee)))
		hi.Add(hi, big.NewInt(2))
	}
	lo := new(big.Int)

	// Smallest m with adjustedAbs(m) >= |target|.
	for lo.Cmp(hi) < 0 {
		mid := new(big.Int).Add(lo, hi)
		mid.Rsh(mid, 1)
		if adjustedAbs(mid).Cmp(abs) < 0 {
			lo.Add(mid, big.NewInt(1))
		} else {
			hi.Set(mid)
		}
	}
	if adjustedAbs(lo).Cmp(abs) != 0 {
		return nil, ErrNoExactClosure
	}
	if target.Sign() < 0 {
		lo.Neg(lo)
	}
	return lo, nil
}
