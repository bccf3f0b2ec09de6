// Package usecase implements the business logic for one-time secrets:
// creation with envelope encryption and TTL clamping, and atomic
// retrieve-and-destroy with optional passphrase verification.
package usecase

import (
	"context"

	secretDomain "github.com/allisson/onetime/internal/secret/domain"
)

// SecretUseCase defines the interface for one-time secret business logic.
type SecretUseCase interface {
	// Create validates and stores a client-encrypted payload, returning the
	// minted id and effective expiry. expiresIn is the requested lifetime in
	// seconds (zero selects the default); out-of-range values are clamped.
	// passphrase optionally guards retrieval.
	Create(ctx context.Context, ciphertext []byte, expiresIn int64, passphrase string) (*secretDomain.Secret, error)

	// Retrieve atomically retrieves and destroys a secret, returning the
	// original client-encrypted payload. Never created, already retrieved,
	// and expired are indistinguishable (ErrSecretNotFound). A wrong
	// passphrase fails with ErrInvalidPassphrase without consuming the
	// secret.
	Retrieve(ctx context.Context, id string, passphrase string) ([]byte, error)
}
