package settlement

import (
	"errors"
	"math/big"
	"testing"
)

func TestTokenDeltasAccumulate(t *testing.T) {
	d := NewTokenDeltas()
	if err := d.Apply("ft1", big.NewInt(100)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := d.Apply("ft1", big.NewInt(-40)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := d.Amount("ft1"); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("ft1 = %s, want 60", got)
	}
	if got := d.Amount("ft2"); got.Sign() != 0 {
		t.Fatalf("absent token = %s, want 0", got)
	}
}

func TestTokenDeltasRejectExplicitZero(t *testing.T) {
	d := NewTokenDeltas()
	if err := d.Apply("ft1", big.NewInt(0)); !errors.Is(err, ErrZeroDelta) {
		t.Fatalf("expected ErrZeroDelta, got %v", err)
	}
}

func TestTokenDeltasPruneCancelled(t *testing.T) {
	d := NewTokenDeltas()
	d.Add("ft1", big.NewInt(25))
	d.Add("ft1", big.NewInt(-25))
	if !d.IsEmpty() {
		t.Fatalf("cancelled entries must be pruned, have %v", d.Map())
	}
}

func TestTokenDeltasOrderedIteration(t *testing.T) {
	d := NewTokenDeltas()
	d.Add("zeta", big.NewInt(1))
	d.Add("alpha", big.NewInt(2))
	d.Add("mid", big.NewInt(3))

	var seen []string
	err := d.Iterate(func(token string, _ *big.Int) error {
		seen = append(seen, token)
		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("iteration order %v, want %v", seen, want)
		}
	}
}
