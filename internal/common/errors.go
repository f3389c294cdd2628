// Package common defines shared constants, helpers and sentinel errors used
// across the walletkeeper packages. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Input errors.
	ErrValidation = errors.New("validation error")

	// Authentication flow errors. Both are deliberately coarse: callers must
	// not be able to tell which sub-check failed.
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")

	// Secret handling errors.
	ErrIntegrity = errors.New("integrity check failed")

	// Chain query or notification delivery failed; retryable by the caller.
	ErrUpstream = errors.New("upstream unavailable")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
