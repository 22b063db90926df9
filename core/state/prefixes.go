package state

var (
	saltCurrentKeyBytes = []byte("salts/current")
	saltPreviousPrefix  = []byte("salts/previous/")
	nonceWordPrefix     = []byte("nonces/word/")
	legacyWordPrefix    = []byte("nonces/legacy/")
	balancePrefix       = []byte("balances/")
	feesConfigKeyBytes  = []byte("fees/config")
	migratedPrefix      = []byte("accounts/migrated/")
)

// SaltCurrentKey is the key holding the currently active salt.
func SaltCurrentKey() []byte { return saltCurrentKeyBytes }

// SaltPreviousKey addresses the validity flag of a previously-current salt.
func SaltPreviousKey(salt []byte) []byte {
	return joinKey(saltPreviousPrefix, salt)
}

// SaltPreviousIterPrefix is the iteration prefix over all previous salts.
func SaltPreviousIterPrefix() []byte { return saltPreviousPrefix }

// NonceWordKey addresses the 256-bit bitmap word for an account's nonce
// prefix in the current-format registry.
func NonceWordKey(account string, prefix []byte) []byte {
	return accountKey(nonceWordPrefix, account, prefix)
}

// NonceWordIterPrefix is the iteration prefix over an account's bitmap words.
func NonceWordIterPrefix(account string) []byte {
	return accountKey(nonceWordPrefix, account, nil)
}

// LegacyWordKey addresses a bitmap word in an account's migrated legacy
// registry. Legacy words are written once during migration and never after.
func LegacyWordKey(account string, prefix []byte) []byte {
	return accountKey(legacyWordPrefix, account, prefix)
}

// LegacyWordIterPrefix is the iteration prefix over an account's legacy words.
func LegacyWordIterPrefix(account string) []byte {
	return accountKey(legacyWordPrefix, account, nil)
}

// BalanceKey addresses an account's balance for a single token.
func BalanceKey(account, token string) []byte {
	return accountKey(balancePrefix, account, []byte(token))
}

// FeesConfigKey is the key holding the process-wide fee configuration.
func FeesConfigKey() []byte { return feesConfigKeyBytes }

// MigratedKey addresses the marker recording that an account carries a
// legacy nonce registry.
func MigratedKey(account string) []byte {
	return joinKey(migratedPrefix, []byte(account))
}

func joinKey(prefix, suffix []byte) []byte {
	key := make([]byte, len(prefix)+len(suffix))
	copy(key, prefix)
	copy(key[len(prefix):], suffix)
	return key
}

// accountKey builds prefix || account || '/' || suffix. Account identifiers
// never contain '/' (enforced at the ledger boundary), keeping key spaces of
// distinct accounts disjoint.
func accountKey(prefix []byte, account string, suffix []byte) []byte {
	key := make([]byte, 0, len(prefix)+len(account)+1+len(suffix))
	key = append(key, prefix...)
	key = append(key, account...)
	key = append(key, '/')
	key = append(key, suffix...)
	return key
}
