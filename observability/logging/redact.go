package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// Account identifiers are the only personally attributable data the ledger
// handles; log lines carry a shortened form instead of the raw value.
const accountPrefixLen = 6

// MaskAccount returns a slog.Attr carrying a truncated account identifier.
// Identifiers too short to truncate are fully redacted.
func MaskAccount(key, account string) slog.Attr {
	trimmed := strings.TrimSpace(account)
	if len(trimmed) <= accountPrefixLen {
		return slog.String(key, RedactedValue)
	}
	return slog.String(key, trimmed[:accountPrefixLen]+"...")
}
