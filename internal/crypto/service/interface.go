// Package service provides cryptographic services for envelope encryption.
// Implements AEAD ciphers (AES-256-GCM, ChaCha20-Poly1305) and the per-record
// HKDF key derivation used to seal secret payloads under the master key.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/onetime/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// Envelope defines the interface for sealing and opening secret payloads
// under the master key.
type Envelope interface {
	// Encrypt seals plaintext into a self-contained blob (salt, nonce, ciphertext).
	Encrypt(masterKey *cryptoDomain.MasterKey, plaintext []byte) ([]byte, error)

	// Decrypt opens a blob produced by Encrypt.
	Decrypt(masterKey *cryptoDomain.MasterKey, blob []byte) ([]byte, error)
}

// KMSService defines the interface for opening KMS keepers used to unwrap
// the master key at startup.
type KMSService interface {
	// OpenKeeper opens a keeper for the configured KMS provider.
	// Returns an error if the KMS provider URI is invalid or connection fails.
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}
