package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
)

// MasterKeySize is the required master key length in bytes (256 bits).
const MasterKeySize = 32

// MasterKey is the single long-lived secret of the envelope encryption layer.
//
// The key lives only in process memory and is injected at startup, never
// generated on demand. It is the input to the per-record HKDF derivation; no
// per-record key material is ever persisted. A compromised master key alone is
// still insufficient to read a sender's plaintext, since the client layer is
// keyed by the link fragment the server never sees.
type MasterKey struct {
	Key []byte
}

// NewMasterKey creates a MasterKey from raw key material.
// The material must be exactly MasterKeySize bytes; it is copied, so the
// caller may zero its own buffer afterwards.
func NewMasterKey(key []byte) (*MasterKey, error) {
	if len(key) != MasterKeySize {
		return nil, fmt.Errorf("%w: master key must be %d bytes, got %d", ErrInvalidKeySize, MasterKeySize, len(key))
	}
	k := make([]byte, MasterKeySize)
	copy(k, key)
	return &MasterKey{Key: k}, nil
}

// Close zeroes the key material. The master key is unusable afterwards.
func (m *MasterKey) Close() {
	Zero(m.Key)
	m.Key = nil
}

// KMSKeeper abstracts the KMS keeper used to unwrap a KMS-encrypted master
// key at startup. *secrets.Keeper from gocloud.dev satisfies this interface.
type KMSKeeper interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// LoadMasterKeyFromEnv loads the master key from the MASTER_KEY environment variable.
//
// MASTER_KEY must contain a standard-base64 encoded 32-byte key. The decoded
// temporary buffer is zeroed after the key is copied into the MasterKey.
//
// Returns:
//   - ErrMasterKeyNotSet if MASTER_KEY is not configured
//   - ErrInvalidMasterKeyBase64 if base64 decoding fails
//   - ErrInvalidKeySize if the key is not exactly 32 bytes
func LoadMasterKeyFromEnv() (*MasterKey, error) {
	raw := os.Getenv("MASTER_KEY")
	if raw == "" {
		return nil, ErrMasterKeyNotSet
	}

	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMasterKeyBase64, err)
	}
	defer Zero(key)

	return NewMasterKey(key)
}

// LoadMasterKeyFromEnvWithKMS loads a KMS-wrapped master key from the
// MASTER_KEY environment variable and unwraps it with the provided keeper.
//
// MASTER_KEY must contain the standard-base64 encoded KMS ciphertext produced
// by the create-master-key command. The decrypted temporary buffer is zeroed
// after the key is copied into the MasterKey.
func LoadMasterKeyFromEnvWithKMS(ctx context.Context, keeper KMSKeeper) (*MasterKey, error) {
	raw := os.Getenv("MASTER_KEY")
	if raw == "" {
		return nil, ErrMasterKeyNotSet
	}

	ciphertext, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMasterKeyBase64, err)
	}

	key, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt master key with KMS: %w", err)
	}
	defer Zero(key)

	return NewMasterKey(key)
}
