package config

import "errors"

// Validation errors.
var (
	// ErrMissingBaseURL indicates base_url is empty.
	ErrMissingBaseURL = errors.New("config: base_url is required")

	// ErrInvalidTimeout indicates a negative timeout.
	ErrInvalidTimeout = errors.New("config: timeout must not be negative")

	// ErrInvalidRetry indicates a negative retry count or delay.
	ErrInvalidRetry = errors.New("config: retry settings must not be negative")

	// ErrInvalidCacheTime indicates a negative stale or gc time.
	ErrInvalidCacheTime = errors.New("config: cache times must not be negative")

	// ErrConflictingAuth indicates both a static token and a JWT secret are set.
	ErrConflictingAuth = errors.New("config: auth.token and auth.jwt.secret are mutually exclusive")

	// ErrMissingEnv indicates a ${VAR} reference to an unset variable.
	ErrMissingEnv = errors.New("config: missing required environment variables")
)
