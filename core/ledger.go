package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"swapclear/core/events"
	"swapclear/core/state"
	"swapclear/native/nonces"
	"swapclear/native/salts"
	"swapclear/native/settlement"
	"swapclear/observability/logging"
	"swapclear/observability/metrics"
	"swapclear/storage"
)

var (
	// ErrDeadlineExpired indicates the nonce's embedded deadline has passed.
	ErrDeadlineExpired = errors.New("core: deadline has expired")
	// ErrInvalidNonceDeadline indicates the payload deadline exceeds the
	// nonce's embedded deadline, which would let the payload outlive the
	// window the nonce was minted for.
	ErrInvalidNonceDeadline = errors.New("core: deadline is greater than nonce's deadline")
	// ErrInvalidAccount rejects empty account identifiers or ones containing
	// the key separator.
	ErrInvalidAccount = errors.New("core: invalid account identifier")
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger clock, primarily for deterministic testing.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithEmitter routes ledger events to the supplied emitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(l *Ledger) { l.emitter = emitter }
}

// WithLogger overrides the ledger logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.log = logger }
}

// Ledger is the settlement core's root object: it owns the salt registry,
// the per-account nonce registries, balances, and the fee configuration, all
// rooted in one state manager. Execution is strictly sequential per ledger;
// callers must not invoke mutating operations concurrently.
type Ledger struct {
	state   *state.Manager
	saltReg *salts.Registry
	emitter events.Emitter
	now     func() time.Time
	log     *slog.Logger
}

// NewLedger opens a ledger over the supplied database. The seed function
// provides the execution context's random seed for salt derivation; the first
// call derives the initial salt when the store is fresh.
func NewLedger(db storage.Database, seed salts.SeedFunc, opts ...Option) (*Ledger, error) {
	manager := state.NewManager(db)
	ledger := &Ledger{
		state:   manager,
		saltReg: salts.NewRegistry(manager.Salts(), seed),
		emitter: events.NoopEmitter{},
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(ledger)
	}
	salt, err := ledger.saltReg.Init()
	if err != nil {
		return nil, fmt.Errorf("core: init salt registry: %w", err)
	}
	ledger.log.Info("ledger opened", "current_salt", salt.String())
	return ledger, nil
}

func validAccount(account string) error {
	if account == "" || strings.ContainsRune(account, '/') {
		return fmt.Errorf("%w: %q", ErrInvalidAccount, account)
	}
	return nil
}

// BeginBatch opens a staged batch: every mutation until CommitBatch lands in
// an overlay only. DiscardBatch leaves persisted state byte-identical to
// before the batch started.
func (l *Ledger) BeginBatch() { l.state.Begin() }

// CommitBatch persists the staged batch.
func (l *Ledger) CommitBatch() error { return l.state.Commit() }

// DiscardBatch drops the staged batch.
func (l *Ledger) DiscardBatch() { l.state.Discard() }

// --- nonces ---

func (l *Ledger) nonceRegistry(account string) (*nonces.MaybeLegacy, error) {
	current := nonces.NewBitmap(l.state.NonceWords(account))
	migrated, err := l.state.AccountMigrated(account)
	if err != nil {
		return nil, err
	}
	if !migrated {
		return nonces.NewMaybeLegacy(current), nil
	}
	legacy := nonces.NewBitmap(l.state.LegacyNonceWords(account))
	return nonces.WithLegacy(legacy, current), nil
}

// CommitNonce validates and consumes a nonce for the account. The payload
// deadline is the one declared by the signed payload; a zero deadline means
// the payload never expires on its own.
//
// Replays fail with nonces.ErrNonceUsed before any other check. Versioned
// nonces additionally require their embedded deadline to cover the payload
// deadline, to not have expired, and to carry a currently valid salt. Legacy
// nonces get the plain replay check only.
func (l *Ledger) CommitNonce(account string, n nonces.Nonce, deadline time.Time) error {
	err := l.commitNonce(account, n, deadline)
	switch {
	case err == nil:
		metrics.Ledger().ObserveNonceCommit("committed")
	case errors.Is(err, nonces.ErrNonceUsed):
		metrics.Ledger().ObserveNonceCommit("replayed")
	default:
		metrics.Ledger().ObserveNonceCommit("rejected")
	}
	return err
}

func (l *Ledger) commitNonce(account string, n nonces.Nonce, deadline time.Time) error {
	if err := validAccount(account); err != nil {
		return err
	}
	registry, err := l.nonceRegistry(account)
	if err != nil {
		return err
	}
	used, err := registry.IsUsed(n)
	if err != nil {
		return err
	}
	if used {
		return nonces.ErrNonceUsed
	}
	if versioned, ok := nonces.Decode(n); ok {
		if deadline.IsZero() || versioned.Deadline.Before(deadline) {
			return ErrInvalidNonceDeadline
		}
		if versioned.HasExpired(l.now()) {
			return ErrDeadlineExpired
		}
		valid, err := l.saltReg.IsValid(versioned.Salt)
		if err != nil {
			return err
		}
		if !valid {
			return salts.ErrInvalidSalt
		}
	}
	return registry.Commit(n)
}

// IsNonceUsed reports whether the nonce was consumed in either the current or
// the legacy registry of the account.
func (l *Ledger) IsNonceUsed(account string, n nonces.Nonce) (bool, error) {
	if err := validAccount(account); err != nil {
		return false, err
	}
	registry, err := l.nonceRegistry(account)
	if err != nil {
		return false, err
	}
	return registry.IsUsed(n)
}

// CleanupNonces reclaims bitmap words for the supplied prefixes, best-effort:
// a prefix is removed only when it provably can no longer admit a fresh
// nonce, i.e. it parses as a versioned nonce whose embedded deadline expired
// or whose salt is no longer valid. Everything else, including all legacy
// prefixes, is silently skipped. Returns the number of words removed.
func (l *Ledger) CleanupNonces(account string, prefixes [][]byte) (int, error) {
	if err := validAccount(account); err != nil {
		return 0, err
	}
	registry, err := l.nonceRegistry(account)
	if err != nil {
		return 0, err
	}
	cleaned := 0
	for _, prefix := range prefixes {
		if len(prefix) != nonces.PrefixSize {
			continue
		}
		representative, err := nonces.FromParts(prefix, 0)
		if err != nil {
			continue
		}
		versioned, ok := nonces.Decode(representative)
		if !ok {
			// Legacy prefix: expiry is unprovable, never reclaimed.
			continue
		}
		eligible := versioned.HasExpired(l.now())
		if !eligible {
			valid, err := l.saltReg.IsValid(versioned.Salt)
			if err != nil {
				return cleaned, err
			}
			eligible = !valid
		}
		if !eligible {
			continue
		}
		removed, err := registry.CleanupByPrefix(prefix)
		if err != nil {
			return cleaned, err
		}
		if removed {
			cleaned++
		}
	}
	metrics.Ledger().ObserveWordsReclaimed(cleaned)
	return cleaned, nil
}

// MigrateLegacyAccount seeds the account's read-only legacy registry with the
// nonces consumed under the prior ledger format. It can run once per
// account; migrated accounts keep their legacy component forever.
func (l *Ledger) MigrateLegacyAccount(account string, used []nonces.Nonce) error {
	if err := validAccount(account); err != nil {
		return err
	}
	migrated, err := l.state.AccountMigrated(account)
	if err != nil {
		return err
	}
	if migrated {
		return fmt.Errorf("core: account %q already migrated", account)
	}
	legacy := nonces.NewBitmap(l.state.LegacyNonceWords(account))
	for _, n := range used {
		if err := legacy.Commit(n); err != nil && !errors.Is(err, nonces.ErrNonceUsed) {
			return err
		}
	}
	if err := l.state.SetAccountMigrated(account); err != nil {
		return err
	}
	l.log.Info("legacy account migrated", logging.MaskAccount("account", account), "nonces", len(used))
	return nil
}

// --- salts ---

// RotateSalt makes a freshly derived salt current; the previous salt remains
// valid. Returns the new current salt.
func (l *Ledger) RotateSalt() (salts.Salt, error) {
	previous, err := l.saltReg.Rotate()
	if err != nil {
		return salts.Salt{}, err
	}
	current, err := l.saltReg.Current()
	if err != nil {
		return salts.Salt{}, err
	}
	metrics.Ledger().ObserveSaltRotation()
	l.emitter.Emit(events.SaltRotated{Current: current, Previous: previous})
	l.log.Info("salt rotated", "current", current.String(), "previous", previous.String())
	return current, nil
}

// InvalidateSalts revokes the supplied salts, rotating first whenever one of
// them is the current salt. Returns the salt current afterwards.
func (l *Ledger) InvalidateSalts(list []salts.Salt) (salts.Salt, error) {
	for _, salt := range list {
		if err := l.saltReg.Invalidate(salt); err != nil {
			return salts.Salt{}, err
		}
	}
	current, err := l.saltReg.Current()
	if err != nil {
		return salts.Salt{}, err
	}
	metrics.Ledger().ObserveSaltsInvalidated(len(list))
	for _, salt := range list {
		l.emitter.Emit(events.SaltInvalidated{Salt: salt, Current: current})
	}
	l.log.Info("salts invalidated", "count", len(list), "current", current.String())
	return current, nil
}

// IsValidSalt reports whether the salt is currently accepted.
func (l *Ledger) IsValidSalt(salt salts.Salt) (bool, error) {
	return l.saltReg.IsValid(salt)
}

// CurrentSalt returns the currently active salt.
func (l *Ledger) CurrentSalt() (salts.Salt, error) {
	return l.saltReg.Current()
}

// --- fees ---

// Fees returns the active fee configuration.
func (l *Ledger) Fees() (settlement.FeesConfig, error) {
	return l.state.FeesConfig()
}

// SetFees replaces the fee configuration. Authorization is assumed to have
// been checked by the caller.
func (l *Ledger) SetFees(cfg settlement.FeesConfig) error {
	if err := l.state.SetFeesConfig(cfg); err != nil {
		return err
	}
	l.emitter.Emit(events.FeeChanged{Fee: cfg.Fee, FeeCollector: cfg.FeeCollector})
	l.log.Info("fees changed", "fee", cfg.Fee.String(), "collector", cfg.FeeCollector)
	return nil
}

// SetFee updates the fee rate, keeping the collector.
func (l *Ledger) SetFee(fee settlement.Pips) error {
	cfg, err := l.state.FeesConfig()
	if err != nil {
		return err
	}
	cfg.Fee = fee
	return l.SetFees(cfg)
}

// SetFeeCollector updates the collector account, keeping the fee rate.
func (l *Ledger) SetFeeCollector(collector string) error {
	if collector != "" {
		if err := validAccount(collector); err != nil {
			return err
		}
	}
	cfg, err := l.state.FeesConfig()
	if err != nil {
		return err
	}
	cfg.FeeCollector = collector
	return l.SetFees(cfg)
}

// Fee returns the active fee rate.
func (l *Ledger) Fee() (settlement.Pips, error) {
	cfg, err := l.state.FeesConfig()
	return cfg.Fee, err
}

// FeeCollector returns the active collector account.
func (l *Ledger) FeeCollector() (string, error) {
	cfg, err := l.state.FeesConfig()
	return cfg.FeeCollector, err
}

// --- balances and settlement ---

// Deposit credits the account's balance for a token. This is the boundary
// where external token-transfer plumbing hands value to the ledger.
func (l *Ledger) Deposit(account, token string, amount *big.Int) error {
	if err := validAccount(account); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("core: deposit amount must be positive")
	}
	balances := l.state.Balances()
	balance, err := balances.Balance(account, token)
	if err != nil {
		return err
	}
	return balances.SetBalance(account, token, new(big.Int).Add(balance, amount))
}

// Balance returns the account's balance for a token.
func (l *Ledger) Balance(account, token string) (*big.Int, error) {
	if err := validAccount(account); err != nil {
		return nil, err
	}
	return l.state.Balances().Balance(account, token)
}

// ApplyTokenDiffBatch settles a batch of signed token-diff intents under one
// all-or-nothing conservation check. When the caller already opened a batch
// (to co-stage nonce commits) the staged writes join that batch and the
// caller owns commit/discard; otherwise the ledger runs its own batch.
func (l *Ledger) ApplyTokenDiffBatch(diffs []settlement.SignedTokenDiff) (*settlement.Report, error) {
	fees, err := l.state.FeesConfig()
	if err != nil {
		return nil, err
	}
	ownBatch := !l.state.InBatch()
	if ownBatch {
		l.state.Begin()
	}
	engine := settlement.NewEngine(l.state.Balances(), fees)
	report, err := engine.ApplyBatch(diffs)
	if err != nil {
		if ownBatch {
			l.state.Discard()
		}
		metrics.Ledger().ObserveBatch("rejected", len(diffs))
		return report, err
	}
	if ownBatch {
		if err := l.state.Commit(); err != nil {
			return nil, err
		}
	}
	metrics.Ledger().ObserveBatch("committed", len(diffs))
	l.emitter.Emit(events.BatchSettled{
		BatchID:       report.BatchID,
		Intents:       len(diffs),
		FeesCollected: report.FeesCollected,
	})
	l.log.Info("batch settled", "batch_id", report.BatchID, "intents", len(diffs))
	return report, nil
}

// StateOutput reports the ledger configuration alongside a simulation so
// integrators can price closures without extra round-trips.
type StateOutput struct {
	Fee         settlement.Pips
	CurrentSalt salts.Salt
}

// SimulationOutput is the read-only twin of a settlement pass.
type SimulationOutput struct {
	Report *settlement.Report
	State  StateOutput
}

// SimulateTokenDiffBatch runs the settlement pipeline without persisting any
// mutation. The report matches what ApplyTokenDiffBatch would produce,
// including the unmatched residuals of a batch that would be rejected.
func (l *Ledger) SimulateTokenDiffBatch(diffs []settlement.SignedTokenDiff) (*SimulationOutput, error) {
	fees, err := l.state.FeesConfig()
	if err != nil {
		return nil, err
	}
	engine := settlement.NewEngine(l.state.Balances(), fees)
	report, err := engine.SimulateBatch(diffs)
	if err != nil {
		return nil, err
	}
	current, err := l.saltReg.Current()
	if err != nil {
		return nil, err
	}
	return &SimulationOutput{
		Report: report,
		State:  StateOutput{Fee: fees.Fee, CurrentSalt: current},
	}, nil
}
