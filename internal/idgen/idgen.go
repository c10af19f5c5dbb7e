// Package idgen provides cryptographically random ID generation.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// Domain prefixes used across the engine. Keeping them in one place makes
// log lines and API payloads self-describing.
const (
	PrefixUser        = "usr_"
	PrefixAccount     = "acct_"
	PrefixTransaction = "txn_"
	PrefixLoginLog    = "login_"
	PrefixAlert       = "alert_"
	PrefixIndicator   = "ioc_"
	PrefixScenarioRun = "run_"
	PrefixPending     = "pend_"
)

// WithPrefix generates a random ID with a prefix (e.g. "txn_", "alert_").
// Result is prefix + 24 hex chars (12 random bytes).
func WithPrefix(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// Hex generates a random hex string of the given byte length.
func Hex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
