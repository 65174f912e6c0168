package models

import "time"

// RefreshToken is a ledger record. TokenDigest is the SHA-256 of the bearer
// value; the value itself is never stored.
type RefreshToken struct {
	TokenDigest string
	UserID      string
	Expires     time.Time
	CreatedAt   time.Time
}
