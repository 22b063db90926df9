package settlement

import (
	"errors"
	"math/big"
	"testing"
)

type mockBalances struct {
	balances map[string]*big.Int
	sets     int
}

func newMockBalances() *mockBalances {
	return &mockBalances{balances: make(map[string]*big.Int)}
}

func (m *mockBalances) Balance(account, token string) (*big.Int, error) {
	if amount, ok := m.balances[account+"/"+token]; ok {
		return new(big.Int).Set(amount), nil
	}
	return new(big.Int), nil
}

func (m *mockBalances) SetBalance(account, token string, amount *big.Int) error {
	m.sets++
	m.balances[account+"/"+token] = new(big.Int).Set(amount)
	return nil
}

func (m *mockBalances) deposit(account, token string, amount int64) {
	m.balances[account+"/"+token] = big.NewInt(amount)
}

func (m *mockBalances) require(t *testing.T, account, token string, want int64) {
	t.Helper()
	got, err := m.Balance(account, token)
	if err != nil {
		t.Fatalf("balance %s/%s: %v", account, token, err)
	}
	if got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("balance %s/%s = %s, want %d", account, token, got, want)
	}
}

func diff(signer string, deltas map[string]int64) SignedTokenDiff {
	d := NewTokenDeltas()
	for token, amount := range deltas {
		if err := d.Apply(token, big.NewInt(amount)); err != nil {
			panic(err)
		}
	}
	return SignedTokenDiff{Signer: signer, Diff: TokenDiff{Deltas: d}}
}

func TestApplyBatchTwoPartySwap(t *testing.T) {
	store := newMockBalances()
	store.deposit("alice", "token1", 100)
	store.deposit("bob", "token2", 200)
	engine := NewEngine(store, FeesConfig{})

	report, err := engine.ApplyBatch([]SignedTokenDiff{
		diff("alice", map[string]int64{"token1": -100, "token2": 200}),
		diff("bob", map[string]int64{"token1": 100, "token2": -200}),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !report.Committed {
		t.Fatal("batch must commit")
	}
	if len(report.UnmatchedDeltas) != 0 {
		t.Fatalf("unexpected residuals: %v", report.UnmatchedDeltas)
	}
	if len(report.FeesCollected) != 0 {
		t.Fatalf("unexpected fees at zero rate: %v", report.FeesCollected)
	}
	store.require(t, "alice", "token1", 0)
	store.require(t, "alice", "token2", 200)
	store.require(t, "bob", "token1", 100)
	store.require(t, "bob", "token2", 0)
}

func TestApplyBatchInvariantViolated(t *testing.T) {
	store := newMockBalances()
	store.deposit("alice", "ft1", 1000)
	engine := NewEngine(store, FeesConfig{})

	// The second intent returns one unit of ft2 short of what the first
	// takes, so the batch leaks value and must be rejected wholesale.
	report, err := engine.ApplyBatch([]SignedTokenDiff{
		diff("alice", map[string]int64{"ft1": -1000, "ft2": 2000}),
		diff("alice", map[string]int64{"ft1": 1000, "ft2": -1999}),
	})
	if !errors.Is(err, ErrInvariantViolated) {
		t.Fatalf("expected ErrInvariantViolated, got %v", err)
	}
	if report == nil {
		t.Fatal("rejection must still produce a report")
	}
	if report.Committed {
		t.Fatal("rejected batch reported as committed")
	}
	residual, ok := report.UnmatchedDeltas["ft2"]
	if !ok || residual.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected ft2 residual +1, got %v", report.UnmatchedDeltas)
	}
	if store.sets != 0 {
		t.Fatal("rejected batch must not touch the store")
	}
	store.require(t, "alice", "ft1", 1000)
}

func TestApplyBatchInsufficientBalance(t *testing.T) {
	store := newMockBalances()
	store.deposit("alice", "token1", 50)
	engine := NewEngine(store, FeesConfig{})

	_, err := engine.ApplyBatch([]SignedTokenDiff{
		diff("alice", map[string]int64{"token1": -100, "token2": 100}),
		diff("bob", map[string]int64{"token1": 100, "token2": -100}),
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if store.sets != 0 {
		t.Fatal("failed batch must not touch the store")
	}
}

func TestApplyBatchStagesAcrossIntents(t *testing.T) {
	// The second intent spends token2 the first intent just received: staged
	// balances must be visible to later intents in the same batch.
	store := newMockBalances()
	store.deposit("alice", "token1", 100)
	engine := NewEngine(store, FeesConfig{})

	report, err := engine.ApplyBatch([]SignedTokenDiff{
		diff("alice", map[string]int64{"token1": -100, "token2": 100}),
		diff("alice", map[string]int64{"token2": -100, "token1": 100}),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !report.Committed {
		t.Fatal("batch must commit")
	}
	store.require(t, "alice", "token1", 100)
	store.require(t, "alice", "token2", 0)
}

func TestApplyBatchEmptyDiff(t *testing.T) {
	engine := NewEngine(newMockBalances(), FeesConfig{})
	_, err := engine.ApplyBatch([]SignedTokenDiff{
		{Signer: "alice", Diff: TokenDiff{Deltas: NewTokenDeltas()}},
	})
	if !errors.Is(err, ErrEmptyDiff) {
		t.Fatalf("expected ErrEmptyDiff, got %v", err)
	}
}

func TestApplyBatchCollectsFees(t *testing.T) {
	store := newMockBalances()
	store.deposit("alice", "ft1", 100)
	store.deposit("bob", "ft2", 200)
	engine := NewEngine(store, FeesConfig{Fee: OnePercent, FeeCollector: "collector"})

	// Quotes computed with ClosureDelta at 1%: bob gives 200 ft2 and asks
	// 98 ft1; alice gives 100 ft1 and asks 196 ft2.
	report, err := engine.ApplyBatch([]SignedTokenDiff{
		diff("alice", map[string]int64{"ft1": -100, "ft2": 196}),
		diff("bob", map[string]int64{"ft1": 98, "ft2": -200}),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !report.Committed {
		t.Fatal("batch must commit")
	}
	if got := report.FeesCollected["ft1"]; got == nil || got.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("ft1 fees = %v, want 2", got)
	}
	if got := report.FeesCollected["ft2"]; got == nil || got.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("ft2 fees = %v, want 4", got)
	}

	store.require(t, "alice", "ft1", 0)
	store.require(t, "alice", "ft2", 196)
	store.require(t, "bob", "ft1", 98)
	store.require(t, "bob", "ft2", 0)
	store.require(t, "collector", "ft1", 2)
	store.require(t, "collector", "ft2", 4)

	// Conservation: every unit deposited is still accounted for.
	for token, total := range map[string]int64{"ft1": 100, "ft2": 200} {
		sum := new(big.Int)
		for _, account := range []string{"alice", "bob", "collector"} {
			balance, _ := store.Balance(account, token)
			sum.Add(sum, balance)
		}
		if sum.Cmp(big.NewInt(total)) != 0 {
			t.Fatalf("token %s: %s units accounted, want %d", token, sum, total)
		}
	}
}

func TestSimulateBatchPersistsNothing(t *testing.T) {
	store := newMockBalances()
	store.deposit("alice", "token1", 100)
	store.deposit("bob", "token2", 200)
	engine := NewEngine(store, FeesConfig{})

	report, err := engine.SimulateBatch([]SignedTokenDiff{
		diff("alice", map[string]int64{"token1": -100, "token2": 200}),
		diff("bob", map[string]int64{"token1": 100, "token2": -200}),
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !report.Committed {
		t.Fatal("balanced batch must report as committable")
	}
	if store.sets != 0 {
		t.Fatal("simulation must not touch the store")
	}
	store.require(t, "alice", "token1", 100)
	store.require(t, "bob", "token2", 200)
}

func TestSimulateBatchReportsResiduals(t *testing.T) {
	store := newMockBalances()
	store.deposit("solver", "tokenIn", 0)
	store.deposit("solver", "tokenOut", 1000)
	engine := NewEngine(store, FeesConfig{})

	// A lone solver leg: simulation surfaces the residuals a counter-party
	// would have to absorb, without failing.
	report, err := engine.SimulateBatch([]SignedTokenDiff{
		diff("solver", map[string]int64{"tokenIn": 500, "tokenOut": -1000}),
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if report.Committed {
		t.Fatal("unbalanced batch reported as committable")
	}
	if got := report.UnmatchedDeltas["tokenIn"]; got == nil || got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("tokenIn residual = %v, want 500", got)
	}
	if got := report.UnmatchedDeltas["tokenOut"]; got == nil || got.Cmp(big.NewInt(-1000)) != 0 {
		t.Fatalf("tokenOut residual = %v, want -1000", got)
	}
	if store.sets != 0 {
		t.Fatal("simulation must not touch the store")
	}

	// The closing intent derived from the residuals balances the batch.
	closeIn, err := ClosureSupplyDelta("tokenIn", report.UnmatchedDeltas["tokenIn"], PipsZero)
	if err != nil {
		t.Fatalf("closure: %v", err)
	}
	closeOut, err := ClosureSupplyDelta("tokenOut", report.UnmatchedDeltas["tokenOut"], PipsZero)
	if err != nil {
		t.Fatalf("closure: %v", err)
	}
	store.deposit("user", "tokenIn", 500)
	report, err = engine.ApplyBatch([]SignedTokenDiff{
		diff("solver", map[string]int64{"tokenIn": 500, "tokenOut": -1000}),
		diff("user", map[string]int64{"tokenIn": closeIn.Int64(), "tokenOut": closeOut.Int64()}),
	})
	if err != nil {
		t.Fatalf("closing apply: %v", err)
	}
	if !report.Committed {
		t.Fatal("closed batch must commit")
	}
	store.require(t, "user", "tokenOut", 1000)
}

func TestEngineRejectsMissingCollector(t *testing.T) {
	engine := NewEngine(newMockBalances(), FeesConfig{Fee: OnePercent})
	_, err := engine.ApplyBatch([]SignedTokenDiff{
		diff("alice", map[string]int64{"token1": 1}),
	})
	if !errors.Is(err, ErrNoFeeCollector) {
		t.Fatalf("expected ErrNoFeeCollector, got %v", err)
	}
}
