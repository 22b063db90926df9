package state

import (
	"fmt"
	"math/big"
)

type storedBalance struct {
	Amount *big.Int
}

// BalanceStore adapts the manager to the settlement engine's balance
// interface.
type BalanceStore struct {
	m *Manager
}

// Balances returns the balance view over this manager.
func (m *Manager) Balances() *BalanceStore {
	return &BalanceStore{m: m}
}

// Balance loads the account's balance for a token, zero when absent.
func (s *BalanceStore) Balance(account, token string) (*big.Int, error) {
	var record storedBalance
	ok, err := s.m.KVGet(BalanceKey(account, token), &record)
	if err != nil {
		return nil, err
	}
	if !ok || record.Amount == nil {
		return new(big.Int), nil
	}
	return record.Amount, nil
}

// SetBalance persists the account's balance for a token. Negative balances
// are a programming error upstream and rejected outright.
func (s *BalanceStore) SetBalance(account, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: negative balance for %q token %s", account, token)
	}
	return s.m.KVPut(BalanceKey(account, token), storedBalance{Amount: amount})
}
