package dto

import (
	"encoding/base64"
	"time"

	secretDomain "github.com/allisson/onetime/internal/secret/domain"
)

// CreateSecretResponse is returned after a secret is stored. ExpiresAt is the
// effective expiry after clamping, serialized as RFC 3339.
type CreateSecretResponse struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RetrieveSecretResponse carries the original client-encrypted payload back
// to the retriever, still opaque to the server.
type RetrieveSecretResponse struct {
	EncryptedData string `json:"encryptedData"`
}

// MapSecretToCreateResponse converts a stored secret to the creation response.
func MapSecretToCreateResponse(secret *secretDomain.Secret) CreateSecretResponse {
	return CreateSecretResponse{
		ID:        secret.ID,
		ExpiresAt: secret.ExpiresAt,
	}
}

// NewRetrieveSecretResponse encodes the retrieved payload for the wire.
func NewRetrieveSecretResponse(payload []byte) RetrieveSecretResponse {
	return RetrieveSecretResponse{
		EncryptedData: base64.StdEncoding.EncodeToString(payload),
	}
}
