package service

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/onetime/internal/crypto/domain"
)

const (
	// envelopeSaltSize is the per-record HKDF salt length in bytes.
	envelopeSaltSize = 16

	// envelopeNonceSize is the AEAD nonce length in bytes. Both supported
	// algorithms use 96-bit nonces.
	envelopeNonceSize = 12

	// envelopeTagSize is the AEAD authentication tag length in bytes.
	envelopeTagSize = 16

	// envelopeMinBlobSize is the smallest blob Decrypt accepts: salt, nonce,
	// and the tag of an empty ciphertext.
	envelopeMinBlobSize = envelopeSaltSize + envelopeNonceSize + envelopeTagSize

	// envelopeLabel is the fixed HKDF info string binding derived keys to
	// this scheme. Changing it invalidates every stored blob.
	envelopeLabel = "onetime-envelope-v1"
)

// EnvelopeCipher seals secret payloads under the master key using a fresh
// per-record data key.
//
// Each Encrypt call draws a random 16-byte salt and derives a one-off 256-bit
// key with HKDF-SHA256 over the master key, the salt, and a fixed label. The
// payload is then sealed with the configured AEAD and packed into a single
// self-contained blob:
//
//	salt (16 bytes) || nonce (12 bytes) || ciphertext+tag
//
// No per-record key material is ever stored; the data key is recomputed from
// the salt on decryption and discarded. Because the AEAD authenticates the
// whole ciphertext, any bit flip in the blob (salt, nonce, or ciphertext)
// makes Decrypt fail.
type EnvelopeCipher struct {
	aeadManager AEADManager
	alg         cryptoDomain.Algorithm
}

// NewEnvelopeCipher creates an EnvelopeCipher using the given AEAD algorithm
// for all seal and open operations. The algorithm is a process-wide setting;
// changing it between writes and reads makes old blobs undecryptable.
func NewEnvelopeCipher(aeadManager AEADManager, alg cryptoDomain.Algorithm) *EnvelopeCipher {
	return &EnvelopeCipher{
		aeadManager: aeadManager,
		alg:         alg,
	}
}

// deriveKey derives a 32-byte data key from the master key and salt.
func (e *EnvelopeCipher) deriveKey(masterKey *cryptoDomain.MasterKey, salt []byte) ([]byte, error) {
	key := make([]byte, 32)
	reader := hkdf.New(sha256.New, masterKey.Key, salt, []byte(envelopeLabel))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive data key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext into a self-contained blob.
//
// A fresh random salt is generated for every call, so encrypting the same
// plaintext twice yields unrelated blobs. The returned blob carries everything
// needed for decryption except the master key itself.
func (e *EnvelopeCipher) Encrypt(masterKey *cryptoDomain.MasterKey, plaintext []byte) ([]byte, error) {
	salt := make([]byte, envelopeSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := e.deriveKey(masterKey, salt)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(key)

	aead, err := e.aeadManager.CreateCipher(key, e.alg)
	if err != nil {
		return nil, err
	}

	ciphertext, nonce, err := aead.Encrypt(plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt payload: %w", err)
	}

	blob := make([]byte, 0, envelopeSaltSize+envelopeNonceSize+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// Decrypt opens a blob produced by Encrypt.
//
// Returns ErrDecryptionFailed for any malformed, truncated, or tampered blob,
// without distinguishing the cause.
func (e *EnvelopeCipher) Decrypt(masterKey *cryptoDomain.MasterKey, blob []byte) ([]byte, error) {
	if len(blob) < envelopeMinBlobSize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	salt := blob[:envelopeSaltSize]
	nonce := blob[envelopeSaltSize : envelopeSaltSize+envelopeNonceSize]
	ciphertext := blob[envelopeSaltSize+envelopeNonceSize:]

	key, err := e.deriveKey(masterKey, salt)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(key)

	aead, err := e.aeadManager.CreateCipher(key, e.alg)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Decrypt(ciphertext, nonce, nil)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}
