package settlement

import (
	"errors"
	"math/big"
	"sort"
)

// ErrZeroDelta indicates an intent carried an explicit zero entry, which is
// meaningless and rejected.
var ErrZeroDelta = errors.New("settlement: zero token delta")

// TokenDeltas is an ordered mapping from token identifier to a signed amount:
// the net change one signer requests across the tokens an intent touches.
// Every present entry is non-zero; accumulation prunes entries that sum to
// zero. Iteration order is ascending by token identifier.
type TokenDeltas struct {
	amounts map[string]*big.Int
}

// NewTokenDeltas returns an empty delta set.
func NewTokenDeltas() *TokenDeltas {
	return &TokenDeltas{amounts: make(map[string]*big.Int)}
}

// Apply records an explicit intent entry, accumulating into any existing
// entry for the token. Explicit zero deltas are rejected.
func (d *TokenDeltas) Apply(token string, delta *big.Int) error {
	if delta == nil || delta.Sign() == 0 {
		return ErrZeroDelta
	}
	d.Add(token, delta)
	return nil
}

// Add accumulates a delta for the token. Zero inputs are no-ops and entries
// that sum to zero are pruned, so the set only ever holds non-zero residuals.
func (d *TokenDeltas) Add(token string, delta *big.Int) {
	if delta == nil || delta.Sign() == 0 {
		return
	}
	sum, ok := d.amounts[token]
	if !ok {
		d.amounts[token] = new(big.Int).Set(delta)
		return
	}
	sum.Add(sum, delta)
	if sum.Sign() == 0 {
		delete(d.amounts, token)
	}
}

// Amount returns the entry for the token, zero when absent.
func (d *TokenDeltas) Amount(token string) *big.Int {
	if sum, ok := d.amounts[token]; ok {
		return new(big.Int).Set(sum)
	}
	return new(big.Int)
}

// Tokens lists the tokens with non-zero entries in ascending order.
func (d *TokenDeltas) Tokens() []string {
	tokens := make([]string, 0, len(d.amounts))
	for token := range d.amounts {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// Len reports the number of non-zero entries.
func (d *TokenDeltas) Len() int {
	return len(d.amounts)
}

// IsEmpty reports whether every accumulated delta cancelled out.
func (d *TokenDeltas) IsEmpty() bool {
	return len(d.amounts) == 0
}

// Iterate visits entries in ascending token order.
func (d *TokenDeltas) Iterate(fn func(token string, delta *big.Int) error) error {
	for _, token := range d.Tokens() {
		if err := fn(token, new(big.Int).Set(d.amounts[token])); err != nil {
			return err
		}
	}
	return nil
}

// Map returns a copy of the entries as a plain map.
func (d *TokenDeltas) Map() map[string]*big.Int {
	out := make(map[string]*big.Int, len(d.amounts))
	for token, sum := range d.amounts {
		out[token] = new(big.Int).Set(sum)
	}
	return out
}
