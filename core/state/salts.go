package state

import (
	"swapclear/native/salts"
)

type storedSalt struct {
	Salt []byte
}

type storedSaltFlag struct {
	Valid bool
}

// SaltStore adapts the manager to the salt registry's store interface.
type SaltStore struct {
	m *Manager
}

// Salts returns the salt-registry view over this manager.
func (m *Manager) Salts() *SaltStore {
	return &SaltStore{m: m}
}

// CurrentSalt loads the currently active salt if one has been set.
func (s *SaltStore) CurrentSalt() (salts.Salt, bool, error) {
	var record storedSalt
	ok, err := s.m.KVGet(SaltCurrentKey(), &record)
	if err != nil || !ok {
		return salts.Salt{}, false, err
	}
	salt, err := salts.FromBytes(record.Salt)
	if err != nil {
		return salts.Salt{}, false, err
	}
	return salt, true, nil
}

// SetCurrentSalt persists the active salt.
func (s *SaltStore) SetCurrentSalt(salt salts.Salt) error {
	return s.m.KVPut(SaltCurrentKey(), storedSalt{Salt: salt.Bytes()})
}

// PreviousSalt loads the validity flag for a previously-current salt.
func (s *SaltStore) PreviousSalt(salt salts.Salt) (bool, bool, error) {
	var record storedSaltFlag
	ok, err := s.m.KVGet(SaltPreviousKey(salt.Bytes()), &record)
	if err != nil || !ok {
		return false, false, err
	}
	return record.Valid, true, nil
}

// SetPreviousSalt records a previously-current salt with its validity flag.
// Entries are never deleted; the set grows with rotations.
func (s *SaltStore) SetPreviousSalt(salt salts.Salt, valid bool) error {
	return s.m.KVPut(SaltPreviousKey(salt.Bytes()), storedSaltFlag{Valid: valid})
}
