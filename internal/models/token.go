package models

import "time"

// TokenPair is what a successful login or refresh hands back to the client.
// Refresh is empty when a refresh call did not rotate the refresh token.
type TokenPair struct {
	Access  string
	Refresh string
}

// BlacklistedToken represents a refresh token that may no longer be used
type BlacklistedToken struct {
	JTI           string    `db:"jti"`
	AccountID     int64     `db:"account_id"`
	ExpiresAt     time.Time `db:"expires_at"`
	BlacklistedAt time.Time `db:"blacklisted_at"`
}
