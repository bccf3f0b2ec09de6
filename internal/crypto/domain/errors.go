package domain

import (
	"github.com/allisson/onetime/internal/errors"
)

// Cryptographic operation error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors
// to provide context for cryptographic failures. All errors are mapped to
// appropriate HTTP status codes by the error handling layer.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	// Supported algorithms: AESGCM (AES-256-GCM), ChaCha20 (ChaCha20-Poly1305).
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates the cryptographic key size is invalid.
	// All keys (master key, derived keys, client keys) must be exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates a decryption operation failed.
	//
	// This error can occur due to a wrong key, a tampered or truncated blob,
	// or an invalid nonce. For security reasons, the specific cause is never
	// disclosed to prevent information leakage that could aid attackers.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrMasterKeyNotSet indicates the MASTER_KEY environment variable is not configured.
	ErrMasterKeyNotSet = errors.Wrap(errors.ErrConfiguration, "MASTER_KEY not set")

	// ErrInvalidMasterKeyBase64 indicates the master key is not valid base64.
	ErrInvalidMasterKeyBase64 = errors.Wrap(errors.ErrConfiguration, "MASTER_KEY is not valid base64")
)
