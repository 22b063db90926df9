package salts

import (
	"errors"
	"fmt"
)

var (
	// ErrSaltGenerationFailed indicates all 256 derivation attempts produced a
	// salt that is already tracked. Treated as a fatal configuration error.
	ErrSaltGenerationFailed = errors.New("salts: salt generation failed")
	// ErrInvalidSalt indicates the supplied salt is not tracked by the registry.
	ErrInvalidSalt = errors.New("salts: invalid salt")
	// ErrNotInitialized indicates the registry has no current salt yet.
	ErrNotInitialized = errors.New("salts: registry not initialized")
)

// Store exposes the state access required by the salt registry.
type Store interface {
	CurrentSalt() (Salt, bool, error)
	SetCurrentSalt(Salt) error
	// PreviousSalt returns the validity flag for a previously-current salt
	// and whether the salt is tracked at all.
	PreviousSalt(Salt) (valid bool, ok bool, err error)
	SetPreviousSalt(salt Salt, valid bool) error
}

// SeedFunc supplies the execution context's random seed.
type SeedFunc func() [32]byte

// Registry tracks the currently accepted salts. Exactly one salt is current
// at any time; every previously-current salt stays tracked forever with a
// validity flag. A salt is valid iff it is current or previous with flag
// true.
type Registry struct {
	store Store
	seed  SeedFunc
}

// NewRegistry constructs a registry backed by the supplied store.
func NewRegistry(store Store, seed SeedFunc) *Registry {
	return &Registry{store: store, seed: seed}
}

// Init derives the first salt (attempt 0) and sets it current. Calling Init
// on an already-initialized registry is a no-op returning the existing
// current salt.
func (r *Registry) Init() (Salt, error) {
	current, ok, err := r.store.CurrentSalt()
	if err != nil {
		return Salt{}, err
	}
	if ok {
		return current, nil
	}
	salt := Derive(r.seed(), 0)
	if err := r.store.SetCurrentSalt(salt); err != nil {
		return Salt{}, err
	}
	return salt, nil
}

// Current returns the currently active salt.
func (r *Registry) Current() (Salt, error) {
	current, ok, err := r.store.CurrentSalt()
	if err != nil {
		return Salt{}, err
	}
	if !ok {
		return Salt{}, ErrNotInitialized
	}
	return current, nil
}

func (r *Registry) deriveNext() (Salt, error) {
	seed := r.seed()
	for attempt := 0; attempt <= 255; attempt++ {
		salt := Derive(seed, uint8(attempt))
		used, err := r.IsUsed(salt)
		if err != nil {
			return Salt{}, err
		}
		if !used {
			return salt, nil
		}
	}
	return Salt{}, ErrSaltGenerationFailed
}

// Rotate derives a fresh salt, makes it current, and demotes the old current
// into the previous set with validity preserved. It returns the demoted salt.
func (r *Registry) Rotate() (Salt, error) {
	previous, err := r.Current()
	if err != nil {
		return Salt{}, err
	}
	salt, err := r.deriveNext()
	if err != nil {
		return Salt{}, err
	}
	if err := r.store.SetCurrentSalt(salt); err != nil {
		return Salt{}, err
	}
	if err := r.store.SetPreviousSalt(previous, true); err != nil {
		return Salt{}, err
	}
	return previous, nil
}

// Invalidate revokes the supplied salt. Invalidating the current salt first
// rotates so there is always a current salt; the old current is then revoked
// in the same logical step. Salts the registry has never tracked yield
// ErrInvalidSalt.
func (r *Registry) Invalidate(salt Salt) error {
	current, err := r.Current()
	if err != nil {
		return err
	}
	if salt == current {
		if _, err := r.Rotate(); err != nil {
			return fmt.Errorf("salts: rotate before invalidate: %w", err)
		}
	}
	_, ok, err := r.store.PreviousSalt(salt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidSalt
	}
	return r.store.SetPreviousSalt(salt, false)
}

// IsValid reports whether the salt is currently accepted in versioned nonces.
func (r *Registry) IsValid(salt Salt) (bool, error) {
	current, ok, err := r.store.CurrentSalt()
	if err != nil {
		return false, err
	}
	if ok && salt == current {
		return true, nil
	}
	valid, ok, err := r.store.PreviousSalt(salt)
	if err != nil {
		return false, err
	}
	return ok && valid, nil
}

// IsUsed reports whether the salt has ever been tracked, regardless of
// validity. Used to avoid ever reusing a salt value even after invalidation.
func (r *Registry) IsUsed(salt Salt) (bool, error) {
	current, ok, err := r.store.CurrentSalt()
	if err != nil {
		return false, err
	}
	if ok && salt == current {
		return true, nil
	}
	_, ok, err = r.store.PreviousSalt(salt)
	if err != nil {
		return false, err
	}
	return ok, nil
}
