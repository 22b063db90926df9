package nonces

// MaybeLegacy layers replay protection over a current-format registry and,
// for accounts migrated from the prior ledger format, a read-only legacy
// registry. Legacy registries are append-only history: they are consulted on
// every check but never written and never reclaimed.
type MaybeLegacy struct {
	nonces *Bitmap
	legacy *Bitmap
}

// NewMaybeLegacy builds a wrapper with no legacy component. Newly created
// accounts always use this form; it is the cheaper storage layout.
func NewMaybeLegacy(nonces *Bitmap) *MaybeLegacy {
	return &MaybeLegacy{nonces: nonces}
}

// WithLegacy builds a wrapper for a migrated account. The legacy registry is
// kept forever and only ever read.
func WithLegacy(legacy *Bitmap, nonces *Bitmap) *MaybeLegacy {
	return &MaybeLegacy{nonces: nonces, legacy: legacy}
}

// Commit records the nonce as used. A nonce already present in the legacy
// registry fails with ErrNonceUsed without touching the new registry; fresh
// commits are only ever written into the new registry.
func (m *MaybeLegacy) Commit(n Nonce) error {
	if m.legacy != nil {
		used, err := m.legacy.IsUsed(n)
		if err != nil {
			return err
		}
		if used {
			return ErrNonceUsed
		}
	}
	return m.nonces.Commit(n)
}

// IsUsed reports whether the nonce was consumed in either registry.
func (m *MaybeLegacy) IsUsed(n Nonce) (bool, error) {
	used, err := m.nonces.IsUsed(n)
	if err != nil || used {
		return used, err
	}
	if m.legacy == nil {
		return false, nil
	}
	return m.legacy.IsUsed(n)
}

// CleanupByPrefix reclaims the word in the new registry only. Legacy entries
// are immutable and can never be reclaimed through this path.
func (m *MaybeLegacy) CleanupByPrefix(prefix []byte) (bool, error) {
	return m.nonces.CleanupByPrefix(prefix)
}

// Iterate walks the used nonces of the new registry.
func (m *MaybeLegacy) Iterate(fn func(Nonce) (bool, error)) error {
	return m.nonces.Iterate(fn)
}
