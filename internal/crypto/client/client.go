// Package client implements the sender-side encryption contract.
//
// The server never sees the client key: senders encrypt locally, submit the
// opaque ciphertext, and share the key out of band (typically as a URL
// fragment, which browsers do not transmit). The helpers here back the
// generate-key, encrypt, and decrypt CLI commands and document the exact
// format a conforming client must produce.
package client

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	cryptoDomain "github.com/allisson/onetime/internal/crypto/domain"
	"github.com/allisson/onetime/internal/crypto/service"
)

// KeySize is the client key length in bytes (256 bits).
const KeySize = 32

// minPayloadSize is the smallest valid payload: a 12-byte nonce plus the
// 16-byte tag of an empty ciphertext.
const minPayloadSize = 12 + 16

// GenerateKey generates a fresh random client key, encoded with unpadded
// URL-safe base64 so it can travel in a URL fragment.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate client key: %w", err)
	}
	defer cryptoDomain.Zero(key)
	return base64.RawURLEncoding.EncodeToString(key), nil
}

// decodeKey decodes and validates an encoded client key.
func decodeKey(encodedKey string) ([]byte, error) {
	key, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: client key is not valid base64url", cryptoDomain.ErrDecryptionFailed)
	}
	if len(key) != KeySize {
		cryptoDomain.Zero(key)
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	return key, nil
}

// Encrypt seals plaintext with the client key using the given AEAD algorithm
// and returns the standard-base64 payload submitted as encryptedData:
//
//	base64( nonce (12 bytes) || ciphertext+tag )
//
// The server stores this payload opaquely and never learns the key.
func Encrypt(encodedKey string, plaintext []byte, alg cryptoDomain.Algorithm) (string, error) {
	key, err := decodeKey(encodedKey)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(key)

	aead, err := service.NewAEADManager().CreateCipher(key, alg)
	if err != nil {
		return "", err
	}

	ciphertext, nonce, err := aead.Encrypt(plaintext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt payload: %w", err)
	}

	payload := make([]byte, 0, len(nonce)+len(ciphertext))
	payload = append(payload, nonce...)
	payload = append(payload, ciphertext...)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt opens a payload produced by Encrypt using the client key.
//
// Returns ErrDecryptionFailed for any malformed, truncated, or tampered
// payload, and for a wrong key, without distinguishing the cause.
func Decrypt(encodedKey, encodedPayload string, alg cryptoDomain.Algorithm) ([]byte, error) {
	key, err := decodeKey(encodedKey)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(key)

	payload, err := base64.StdEncoding.DecodeString(encodedPayload)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	if len(payload) < minPayloadSize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	aead, err := service.NewAEADManager().CreateCipher(key, alg)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Decrypt(payload[12:], payload[:12], nil)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}
