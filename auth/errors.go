package auth

import "errors"

// Sentinel errors for token signing and verification.
var (
	// Signing errors
	ErrMissingSecret = errors.New("auth: signing secret is required")
	ErrInvalidTTL    = errors.New("auth: token ttl must not be negative")
	ErrSignFailed    = errors.New("auth: signing failed")

	// Verification errors
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
)
