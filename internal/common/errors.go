// Package common defines shared constants and sentinel errors used across
// the vault, the services and the HTTP layer. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Vault errors.
	//
	// ErrConfiguration is fatal at startup. ErrValidation and ErrAccessDenied
	// are expected user-facing outcomes. ErrIntegrity and ErrStorageIO carry
	// internal detail for logs only and must reach clients as a generic failure.
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrIntegrity     = errors.New("integrity check failed")
	ErrAccessDenied  = errors.New("access denied")
	ErrStorageIO     = errors.New("storage i/o error")
)
