package client

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/onetime/internal/crypto/domain"
)

func TestGenerateKey(t *testing.T) {
	key1, err := GenerateKey()
	require.NoError(t, err)
	key2, err := GenerateKey()
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)

	// Unpadded URL-safe base64 of 32 bytes is always 43 characters.
	assert.Len(t, key1, 43)
	raw, err := base64.RawURLEncoding.DecodeString(key1)
	require.NoError(t, err)
	assert.Len(t, raw, KeySize)
}

func TestEncryptDecrypt(t *testing.T) {
	plaintext := []byte("the quick brown fox")

	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			key, err := GenerateKey()
			require.NoError(t, err)

			payload, err := Encrypt(key, plaintext, alg)
			require.NoError(t, err)

			// The payload must be standard base64 and opaque.
			raw, err := base64.StdEncoding.DecodeString(payload)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, len(raw), minPayloadSize)
			assert.NotContains(t, string(raw), string(plaintext))

			decrypted, err := Decrypt(key, payload, alg)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)
		})
	}
}

func TestDecrypt_Failures(t *testing.T) {
	alg := cryptoDomain.AESGCM
	key, err := GenerateKey()
	require.NoError(t, err)
	payload, err := Encrypt(key, []byte("payload"), alg)
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		otherKey, err := GenerateKey()
		require.NoError(t, err)

		_, err = Decrypt(otherKey, payload, alg)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("tampered payload", func(t *testing.T) {
		raw, err := base64.StdEncoding.DecodeString(payload)
		require.NoError(t, err)
		raw[len(raw)-1] ^= 0x01

		_, err = Decrypt(key, base64.StdEncoding.EncodeToString(raw), alg)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, err := Decrypt(key, base64.StdEncoding.EncodeToString(make([]byte, minPayloadSize-1)), alg)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("payload is not base64", func(t *testing.T) {
		_, err := Decrypt(key, "not base64!!!", alg)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("key has wrong size", func(t *testing.T) {
		shortKey := base64.RawURLEncoding.EncodeToString([]byte("short"))
		_, err := Decrypt(shortKey, payload, alg)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})

	t.Run("key is not base64url", func(t *testing.T) {
		_, err := Decrypt("***", payload, alg)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})
}
