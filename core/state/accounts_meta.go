package state

type storedMarker struct {
	Set bool
}

// AccountMigrated reports whether the account was migrated from the prior
// ledger format and therefore carries a read-only legacy nonce registry.
func (m *Manager) AccountMigrated(account string) (bool, error) {
	var record storedMarker
	ok, err := m.KVGet(MigratedKey(account), &record)
	if err != nil {
		return false, err
	}
	return ok && record.Set, nil
}

// SetAccountMigrated records the migration marker. Markers are permanent:
// legacy replay protection stays consulted for the account's lifetime.
func (m *Manager) SetAccountMigrated(account string) error {
	return m.KVPut(MigratedKey(account), storedMarker{Set: true})
}
