package domain

import (
	"github.com/allisson/onetime/internal/errors"
)

// Secret-specific error definitions.
var (
	// ErrSecretNotFound indicates no retrievable secret exists for the id.
	// It deliberately covers every absence: never created, already
	// retrieved, expired, or cleaned up. Callers cannot distinguish them.
	ErrSecretNotFound = errors.Wrap(errors.ErrNotFound, "secret not found")

	// ErrInvalidPassphrase indicates the retrieval passphrase was missing or
	// wrong. The secret remains stored and retrievable.
	ErrInvalidPassphrase = errors.Wrap(errors.ErrUnauthorized, "invalid passphrase")
)
