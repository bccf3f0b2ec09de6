package domain

// Algorithm represents the cryptographic algorithm used for encryption.
//
// All supported algorithms provide Authenticated Encryption with Associated Data (AEAD),
// ensuring both confidentiality and authenticity of encrypted data.
//
// Algorithm selection guidelines:
//   - Use AESGCM on modern CPUs with AES-NI hardware acceleration
//   - Use ChaCha20 on systems without AES-NI
//   - Both provide equivalent 256-bit security when used correctly
type Algorithm string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm.
	//
	// Key features:
	//   - 256-bit key size
	//   - 12-byte nonce (96 bits)
	//   - 16-byte authentication tag
	//   - Hardware acceleration on modern CPUs
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents the ChaCha20-Poly1305 authenticated encryption algorithm.
	//
	// Key features:
	//   - 256-bit key size
	//   - 12-byte nonce (96 bits)
	//   - 16-byte authentication tag
	//   - Constant-time implementation, excellent software performance
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// ParseAlgorithm converts a configuration string into an Algorithm.
// Returns ErrUnsupportedAlgorithm for unknown values.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AESGCM:
		return AESGCM, nil
	case ChaCha20:
		return ChaCha20, nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
