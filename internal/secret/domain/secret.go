// Package domain defines the core domain model for one-time secrets.
//
// A secret is a single envelope-encrypted payload that can be retrieved
// exactly once before its expiry. Retrieval destroys the record atomically;
// there is no update path and no way to read a secret twice.
package domain

import "time"

// TTL bounds in seconds. Requested lifetimes outside the bounds are clamped,
// never rejected.
const (
	MinTTLSeconds     = 60
	MaxTTLSeconds     = 604800 // 7 days
	DefaultTTLSeconds = 86400  // 1 day
)

// MaxPayloadSize is the maximum accepted encrypted payload size in bytes,
// measured on the decoded ciphertext.
const MaxPayloadSize = 100 * 1024

// Secret represents a stored one-time secret.
type Secret struct {
	// ID is the short URL-safe identifier minted at creation.
	ID string
	// Envelope contains the server-side envelope-encrypted payload
	// (salt, nonce, ciphertext) as a single opaque blob.
	Envelope []byte
	// PassphraseHash holds the Argon2id hash of the optional retrieval
	// passphrase (empty when no passphrase was set).
	PassphraseHash string
	// CreatedAt is the UTC timestamp when the secret was stored.
	CreatedAt time.Time
	// ExpiresAt is the UTC timestamp after which the secret is gone.
	ExpiresAt time.Time
}

// Expired reports whether the secret is past its expiry at the given instant.
// A secret expiring exactly at now is expired.
func (s *Secret) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// ClampTTL normalizes a requested lifetime in seconds to the allowed range.
// Zero or negative values select the default.
func ClampTTL(seconds int64) time.Duration {
	switch {
	case seconds <= 0:
		seconds = DefaultTTLSeconds
	case seconds < MinTTLSeconds:
		seconds = MinTTLSeconds
	case seconds > MaxTTLSeconds:
		seconds = MaxTTLSeconds
	}
	return time.Duration(seconds) * time.Second
}
