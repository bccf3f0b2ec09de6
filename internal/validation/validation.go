// Package validation provides custom validation rules for the application.
package validation

import (
	"encoding/base64"
	"regexp"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/onetime/internal/errors"
)

// Secret id shape bounds. Ids are minted at 8 characters, but retrieval accepts
// the wider [6, 12] window as a cheap input-integrity gate decoupled from the
// exact generation scheme.
const (
	SecretIDMinLength = 6
	SecretIDMaxLength = 12
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Base64 validates that a string is valid base64-encoded data.
var Base64 = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_base64_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	_, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return validation.NewError("validation_base64", "must be valid base64-encoded data")
	}
	return nil
})

// secretIDPattern matches the unpadded URL-safe base64 alphabet ids are
// minted from.
var secretIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SecretID validates the shape of a one-time secret identifier.
var SecretID = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_secret_id_type", "must be a string")
	}
	if len(s) < SecretIDMinLength || len(s) > SecretIDMaxLength {
		return validation.NewError("validation_secret_id", "must be between 6 and 12 characters")
	}
	if !secretIDPattern.MatchString(s) {
		return validation.NewError("validation_secret_id", "must use the URL-safe base64 alphabet")
	}
	return nil
})

// ValidateSecretID checks a secret id outside of a struct validation context.
func ValidateSecretID(id string) error {
	return validation.Validate(id, validation.Required, SecretID)
}
