package commands

import (
	"fmt"
	"io"

	"github.com/allisson/onetime/internal/crypto/client"
	cryptoDomain "github.com/allisson/onetime/internal/crypto/domain"
)

// RunGenerateKey generates a fresh client key and prints it. The key is what
// the sender shares out of band (typically as a URL fragment); the server
// never sees it.
func RunGenerateKey(out io.Writer) error {
	key, err := client.GenerateKey()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, key)
	return nil
}

// RunEncryptSecret encrypts a message with a client key and prints the payload
// to submit as encryptedData.
func RunEncryptSecret(out io.Writer, encodedKey, message, algorithm string) error {
	alg, err := cryptoDomain.ParseAlgorithm(algorithm)
	if err != nil {
		return fmt.Errorf("invalid algorithm: %w", err)
	}

	payload, err := client.Encrypt(encodedKey, []byte(message), alg)
	if err != nil {
		return fmt.Errorf("failed to encrypt message: %w", err)
	}

	fmt.Fprintln(out, payload)
	return nil
}

// RunDecryptSecret decrypts a retrieved encryptedData payload with the client
// key and prints the plaintext.
func RunDecryptSecret(out io.Writer, encodedKey, encodedPayload, algorithm string) error {
	alg, err := cryptoDomain.ParseAlgorithm(algorithm)
	if err != nil {
		return fmt.Errorf("invalid algorithm: %w", err)
	}

	plaintext, err := client.Decrypt(encodedKey, encodedPayload, alg)
	if err != nil {
		return fmt.Errorf("failed to decrypt payload: %w", err)
	}

	fmt.Fprintln(out, string(plaintext))
	return nil
}
