// Package repository implements persistence for one-time secrets.
// Stores support PostgreSQL, MySQL, and an in-memory map, all providing the
// same atomic retrieve-and-destroy contract.
package repository

import (
	"context"
	"time"

	secretDomain "github.com/allisson/onetime/internal/secret/domain"
)

// RetrievalGuard is an optional check run against the stored record before it
// is destroyed, while the record is still exclusively held (row lock on SQL
// stores, mutex on the memory store). Returning an error aborts the retrieval
// and leaves the record stored and retrievable; only a nil return consumes
// the secret. Used for passphrase verification.
type RetrievalGuard func(secret *secretDomain.Secret) error

// SecretStore defines the persistence contract for one-time secrets.
type SecretStore interface {
	// Put stores a new secret with the given lifetime. The store stamps
	// secret.ExpiresAt from its own clock so callers see the effective expiry.
	Put(ctx context.Context, secret *secretDomain.Secret, ttl time.Duration) error

	// GetAndDelete atomically retrieves and destroys the secret with the
	// given id. At most one concurrent caller receives the secret; every
	// other caller, and any caller after expiry, gets ErrSecretNotFound.
	// A non-nil guard runs before destruction; its error is returned
	// verbatim and the secret survives.
	GetAndDelete(ctx context.Context, id string, guard RetrievalGuard) (*secretDomain.Secret, error)

	// CleanupExpired removes expired records and returns how many were (or
	// would be, when dryRun is set) removed. Expired records are already
	// unreachable through GetAndDelete; this reclaims storage.
	CleanupExpired(ctx context.Context, dryRun bool) (int64, error)
}
