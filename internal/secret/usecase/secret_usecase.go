package usecase

import (
	"context"
	"fmt"
	"time"

	cryptoDomain "github.com/allisson/onetime/internal/crypto/domain"
	cryptoService "github.com/allisson/onetime/internal/crypto/service"
	apperrors "github.com/allisson/onetime/internal/errors"
	secretDomain "github.com/allisson/onetime/internal/secret/domain"
	"github.com/allisson/onetime/internal/secret/repository"
	secretService "github.com/allisson/onetime/internal/secret/service"
	"github.com/allisson/onetime/internal/validation"
)

// secretUseCase implements the SecretUseCase interface.
type secretUseCase struct {
	store      repository.SecretStore
	envelope   cryptoService.Envelope
	masterKey  *cryptoDomain.MasterKey
	passphrase secretService.PassphraseService
}

// NewSecretUseCase creates a new secret use case instance with the provided dependencies.
func NewSecretUseCase(
	store repository.SecretStore,
	envelope cryptoService.Envelope,
	masterKey *cryptoDomain.MasterKey,
	passphrase secretService.PassphraseService,
) SecretUseCase {
	return &secretUseCase{
		store:      store,
		envelope:   envelope,
		masterKey:  masterKey,
		passphrase: passphrase,
	}
}

// Create validates and stores a client-encrypted payload.
func (s *secretUseCase) Create(
	ctx context.Context,
	ciphertext []byte,
	expiresIn int64,
	passphrase string,
) (*secretDomain.Secret, error) {
	// Validation order matters: emptiness before size, size before TTL, so a
	// request failing several checks always reports the same error.
	if len(ciphertext) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "encrypted payload must not be empty")
	}
	if len(ciphertext) > secretDomain.MaxPayloadSize {
		return nil, fmt.Errorf(
			"%w: encrypted payload exceeds %d bytes",
			apperrors.ErrPayloadTooLarge, secretDomain.MaxPayloadSize,
		)
	}
	ttl := secretDomain.ClampTTL(expiresIn)

	id, err := secretDomain.NewSecretID()
	if err != nil {
		return nil, err
	}

	var passphraseHash string
	if passphrase != "" {
		passphraseHash, err = s.passphrase.Hash(passphrase)
		if err != nil {
			return nil, err
		}
	}

	blob, err := s.envelope.Encrypt(s.masterKey, ciphertext)
	if err != nil {
		return nil, err
	}

	secret := &secretDomain.Secret{
		ID:             id,
		Envelope:       blob,
		PassphraseHash: passphraseHash,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.Put(ctx, secret, ttl); err != nil {
		return nil, err
	}

	return secret, nil
}

// Retrieve atomically retrieves and destroys a secret.
func (s *secretUseCase) Retrieve(ctx context.Context, id string, passphrase string) ([]byte, error) {
	// Ids outside the accepted shape cannot exist, so they report the same
	// not found as any other absent secret.
	if err := validation.ValidateSecretID(id); err != nil {
		return nil, secretDomain.ErrSecretNotFound
	}

	secret, err := s.store.GetAndDelete(ctx, id, func(candidate *secretDomain.Secret) error {
		if candidate.PassphraseHash == "" {
			return nil
		}
		if passphrase == "" || !s.passphrase.Compare(passphrase, candidate.PassphraseHash) {
			return secretDomain.ErrInvalidPassphrase
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The envelope was produced by this service; a failure here means data
	// corruption or a wrong master key, not client error. The sentinel chain
	// is dropped on purpose so the handler reports an internal error.
	plaintext, err := s.envelope.Decrypt(s.masterKey, secret.Envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to open stored envelope: %v", err)
	}
	return plaintext, nil
}
