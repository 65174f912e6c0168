// Package cryptox holds the small hashing helpers used around tokens.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// TokenDigest returns the hex SHA-256 of a token. Ledgers persist the digest,
// never the bearer value itself.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Fingerprint condenses state (for instance a stored password hash) into a
// short value that can travel inside a signed token. Any change of the input
// changes the fingerprint, which is what makes one-time links single-use.
func Fingerprint(state string) string {
	sum := sha256.Sum256([]byte("ulpt:fp:" + state))
	return hex.EncodeToString(sum[:8])
}

// Equal compares two strings in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
