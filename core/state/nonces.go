package state

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

type storedWord struct {
	Word []byte
}

// NonceWordStore adapts the manager to the nonce bitmap's word store for one
// account. The legacy flag selects the migrated read-only key space.
type NonceWordStore struct {
	m       *Manager
	account string
	legacy  bool
}

// NonceWords returns the current-format word store for the account.
func (m *Manager) NonceWords(account string) *NonceWordStore {
	return &NonceWordStore{m: m, account: account}
}

// LegacyNonceWords returns the migrated legacy word store for the account.
func (m *Manager) LegacyNonceWords(account string) *NonceWordStore {
	return &NonceWordStore{m: m, account: account, legacy: true}
}

func (s *NonceWordStore) key(prefix []byte) []byte {
	if s.legacy {
		return LegacyWordKey(s.account, prefix)
	}
	return NonceWordKey(s.account, prefix)
}

func (s *NonceWordStore) iterPrefix() []byte {
	if s.legacy {
		return LegacyWordIterPrefix(s.account)
	}
	return NonceWordIterPrefix(s.account)
}

// Word loads the 256-bit bitmap word stored under the supplied prefix.
func (s *NonceWordStore) Word(prefix []byte) (*uint256.Int, bool, error) {
	var record storedWord
	ok, err := s.m.KVGet(s.key(prefix), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	word := new(uint256.Int).SetBytes(record.Word)
	return word, true, nil
}

// SetWord persists the bitmap word under the supplied prefix.
func (s *NonceWordStore) SetWord(prefix []byte, word *uint256.Int) error {
	raw := word.Bytes32()
	return s.m.KVPut(s.key(prefix), storedWord{Word: raw[:]})
}

// DeleteWord removes the bitmap word under the supplied prefix.
func (s *NonceWordStore) DeleteWord(prefix []byte) error {
	return s.m.KVDelete(s.key(prefix))
}

// IterateWords visits every stored word for the account in ascending prefix
// order.
func (s *NonceWordStore) IterateWords(fn func(prefix []byte, word *uint256.Int) (bool, error)) error {
	iterPrefix := s.iterPrefix()
	return s.m.KVIterate(iterPrefix, func(key, value []byte) (bool, error) {
		if !bytes.HasPrefix(key, iterPrefix) {
			return false, fmt.Errorf("state: nonce word key %q outside namespace", key)
		}
		prefix := key[len(iterPrefix):]
		var record storedWord
		if err := rlp.DecodeBytes(value, &record); err != nil {
			return false, err
		}
		return fn(prefix, new(uint256.Int).SetBytes(record.Word))
	})
}
