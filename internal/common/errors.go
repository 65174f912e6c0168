// Package common defines shared constants and sentinel errors used across
// the ULPT server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal         = errors.New("internal error")
	ErrorUnauthorized     = errors.New("unauthenticated")
	ErrorForbidden        = errors.New("access denied")
	ErrorValidation       = errors.New("validation error")
	ErrorRateLimited      = errors.New("too many requests")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired         = errors.New("token expired")
	ErrInvalidPasswordToken = errors.New("invalid or expired link")
)
