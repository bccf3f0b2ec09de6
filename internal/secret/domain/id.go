package domain

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// idEntropyBytes is the random id length before encoding. Six bytes encode to
// eight URL-safe characters, giving 48 bits of entropy. Ids are capability
// tokens, not sequence numbers: they must be unguessable within the lifetime
// of a secret, and at 48 bits an attacker probing the retrieval endpoint has
// a negligible hit rate against any realistic number of live secrets.
const idEntropyBytes = 6

// NewSecretID mints a random URL-safe secret identifier.
func NewSecretID() (string, error) {
	buf := make([]byte, idEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
