// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors should be used by use cases
// and mapped to appropriate HTTP status codes by handlers.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist. For one-time
	// secrets this deliberately covers never-existed, already-delivered, and
	// expired records so callers cannot distinguish between them.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPayloadTooLarge indicates the submitted payload exceeds the size cap.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnauthorized indicates the request lacks a valid credential
	// (e.g., a wrong passphrase on a protected secret).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable indicates the backing store could not serve the request.
	ErrUnavailable = errors.New("unavailable")

	// ErrConfiguration indicates a missing or invalid process configuration
	// (master key, store binding). Fatal; should be caught at startup.
	ErrConfiguration = errors.New("configuration error")
)

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context while preserving the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
