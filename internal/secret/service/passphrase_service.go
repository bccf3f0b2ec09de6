// Package service provides the passphrase hashing service for guarded
// secret retrieval, using Argon2id via go-pwdhash.
package service

import (
	"github.com/allisson/go-pwdhash"

	apperrors "github.com/allisson/onetime/internal/errors"
)

// PassphraseService hashes and verifies retrieval passphrases.
type PassphraseService interface {
	// Hash hashes a plain text passphrase using Argon2id.
	Hash(passphrase string) (string, error)

	// Compare performs a constant-time comparison between a plain passphrase
	// and its hash.
	Compare(passphrase, hash string) bool
}

// passphraseService implements PassphraseService using Argon2id.
type passphraseService struct {
	hasher *pwdhash.PasswordHasher
}

// NewPassphraseService creates a new PassphraseService using Argon2id hashing.
// Uses the Moderate policy for a balance between security and performance.
func NewPassphraseService() PassphraseService {
	hasher, err := pwdhash.New(
		pwdhash.WithPolicy(pwdhash.PolicyModerate),
	)
	if err != nil {
		// This should never happen with valid policy
		panic(err)
	}

	return &passphraseService{hasher: hasher}
}

// Hash hashes a plain text passphrase using Argon2id.
func (p *passphraseService) Hash(passphrase string) (string, error) {
	hash, err := p.hasher.Hash([]byte(passphrase))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash passphrase")
	}
	return hash, nil
}

// Compare performs a constant-time comparison between a plain passphrase and its hash.
func (p *passphraseService) Compare(passphrase, hash string) bool {
	ok, err := p.hasher.Verify([]byte(passphrase), hash)
	if err != nil {
		return false
	}
	return ok
}
