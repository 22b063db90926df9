package settlement

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

var (
	// ErrInsufficientBalance indicates a single intent's debit exceeds the
	// signer's balance. It fails that intent, not the conservation check.
	ErrInsufficientBalance = errors.New("settlement: insufficient balance")
	// ErrInvariantViolated indicates the batch-wide conservation check
	// failed; the report carries the unmatched per-token residuals.
	ErrInvariantViolated = errors.New("settlement: token invariant violated")
	// ErrEmptyDiff indicates an intent with no token deltas.
	ErrEmptyDiff = errors.New("settlement: empty token diff")
	// ErrNoFeeCollector indicates a non-zero fee rate without a configured
	// collector account.
	ErrNoFeeCollector = errors.New("settlement: fee collector not configured")
)

// BalanceStore exposes the per-account token balances the engine settles
// against. Absent balances read as zero; balances are never negative.
type BalanceStore interface {
	Balance(account, token string) (*big.Int, error)
	SetBalance(account, token string, amount *big.Int) error
}

// TokenDiff is the body of a swap-leg intent: the signed net movement across
// however many tokens it touches.
type TokenDiff struct {
	Deltas   *TokenDeltas
	Memo     string
	Referral string
}

// SignedTokenDiff is a token-diff intent whose signature and nonce have
// already been validated by the caller.
type SignedTokenDiff struct {
	Signer string
	Diff   TokenDiff
}

// FeesConfig is the process-wide fee configuration read by every settlement
// pass and mutated only by an authorized role.
type FeesConfig struct {
	Fee          Pips
	FeeCollector string
}

// Validate rejects unusable configurations.
func (c FeesConfig) Validate() error {
	if err := c.Fee.Validate(); err != nil {
		return err
	}
	if c.Fee > 0 && c.FeeCollector == "" {
		return ErrNoFeeCollector
	}
	return nil
}

// Report summarises one settlement pass. UnmatchedDeltas holds the
// fee-adjusted per-token residuals left over when the batch did not balance;
// it is empty for committed batches. FeesCollected holds the per-token fee
// amounts credited to the collector (committed batches) or that would have
// been (simulations).
type Report struct {
	BatchID         string
	Committed       bool
	UnmatchedDeltas map[string]*big.Int
	FeesCollected   map[string]*big.Int
}

// Engine accumulates per-account, per-asset deltas from a batch of intents,
// applies the protocol fee, and verifies global conservation before any
// balance mutation reaches the store.
type Engine struct {
	balances BalanceStore
	fees     FeesConfig
}

// NewEngine constructs an engine over the supplied balance store.
func NewEngine(balances BalanceStore, fees FeesConfig) *Engine {
	return &Engine{balances: balances, fees: fees}
}

// Fees returns the active fee configuration.
func (e *Engine) Fees() FeesConfig {
	return e.fees
}

// stagedBalances is a read-through cache over the balance store. Mutations
// stay here until the whole batch has passed verification.
type stagedBalances struct {
	store BalanceStore
	cache map[string]*big.Int
	dirty map[string]struct{}
}

func newStagedBalances(store BalanceStore) *stagedBalances {
	return &stagedBalances{
		store: store,
		cache: make(map[string]*big.Int),
		dirty: make(map[string]struct{}),
	}
}

func balanceCacheKey(account, token string) string {
	return account + "\x00" + token
}

func (s *stagedBalances) balance(account, token string) (*big.Int, error) {
	key := balanceCacheKey(account, token)
	if cached, ok := s.cache[key]; ok {
		return cached, nil
	}
	stored, err := s.store.Balance(account, token)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		stored = new(big.Int)
	}
	s.cache[key] = stored
	return stored, nil
}

func (s *stagedBalances) set(account, token string, amount *big.Int) {
	key := balanceCacheKey(account, token)
	s.cache[key] = amount
	s.dirty[key] = struct{}{}
}

func (s *stagedBalances) flush() error {
	for key := range s.dirty {
		account, token := splitBalanceCacheKey(key)
		if err := s.store.SetBalance(account, token, s.cache[key]); err != nil {
			return err
		}
	}
	return nil
}

func splitBalanceCacheKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// ApplyBatch settles a batch: stages every intent's deltas, verifies the
// conservation invariant, and either persists all staged balances plus the
// collector's fees or persists nothing. On violation the returned error is
// ErrInvariantViolated and the report carries the residuals.
func (e *Engine) ApplyBatch(diffs []SignedTokenDiff) (*Report, error) {
	return e.run(diffs, true)
}

// SimulateBatch runs the identical pipeline read-only. The report is the
// same one ApplyBatch would produce, including residuals for batches that
// would be rejected; no mutation is ever persisted.
func (e *Engine) SimulateBatch(diffs []SignedTokenDiff) (*Report, error) {
	return e.run(diffs, false)
}

func (e *Engine) run(diffs []SignedTokenDiff, persist bool) (*Report, error) {
	if err := e.fees.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		BatchID:         uuid.NewString(),
		UnmatchedDeltas: make(map[string]*big.Int),
		FeesCollected:   make(map[string]*big.Int),
	}
	staged := newStagedBalances(e.balances)
	unmatched := NewTokenDeltas()
	fees := NewTokenDeltas()

	for i, sd := range diffs {
		if sd.Diff.Deltas == nil || sd.Diff.Deltas.IsEmpty() {
			return nil, fmt.Errorf("intent %d from %q: %w", i, sd.Signer, ErrEmptyDiff)
		}
		err := sd.Diff.Deltas.Iterate(func(token string, delta *big.Int) error {
			balance, err := staged.balance(sd.Signer, token)
			if err != nil {
				return err
			}
			next := new(big.Int).Add(balance, delta)
			if next.Sign() < 0 {
				return fmt.Errorf("intent %d from %q: token %s: %w",
					i, sd.Signer, token, ErrInsufficientBalance)
			}
			staged.set(sd.Signer, token, next)

			unmatched.Add(token, AdjustedDelta(delta, e.fees.Fee))
			fees.Add(token, e.fees.Fee.FeeCeil(new(big.Int).Abs(delta)))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	report.FeesCollected = fees.Map()
	if !unmatched.IsEmpty() {
		report.UnmatchedDeltas = unmatched.Map()
		if persist {
			return report, fmt.Errorf("batch %s: %w", report.BatchID, ErrInvariantViolated)
		}
		return report, nil
	}

	if !persist {
		report.Committed = true // the batch would commit as-is
		return report, nil
	}

	err := fees.Iterate(func(token string, fee *big.Int) error {
		balance, err := staged.balance(e.fees.FeeCollector, token)
		if err != nil {
			return err
		}
		staged.set(e.fees.FeeCollector, token, new(big.Int).Add(balance, fee))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := staged.flush(); err != nil {
		return nil, fmt.Errorf("batch %s: flush: %w", report.BatchID, err)
	}
	report.Committed = true
	return report, nil
}
