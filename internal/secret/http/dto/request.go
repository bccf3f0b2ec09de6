// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/onetime/internal/validation"
)

// CreateSecretRequest contains the parameters for storing a one-time secret.
//
// EncryptedData carries the client-encrypted payload as standard base64; the
// server never sees the plaintext. ExpiresIn is the requested lifetime in
// seconds and is clamped, not rejected, when out of range. Passphrase
// optionally guards retrieval.
type CreateSecretRequest struct {
	EncryptedData string `json:"encryptedData"`
	ExpiresIn     int64  `json:"expiresIn,omitempty"`
	Passphrase    string `json:"passphrase,omitempty"`
}

// Validate checks if the create secret request is valid.
func (r *CreateSecretRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EncryptedData,
			validation.Required,
			customValidation.Base64,
		),
	)
}
