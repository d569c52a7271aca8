package auth

import (
	"context"
	"strings"
)

// TokenSource supplies bearer tokens for outgoing route calls.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Token should honor cancellation when it does I/O.
// - Errors: an empty token with nil error means "send no Authorization header".
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token returns the token with surrounding whitespace removed.
func (s StaticToken) Token(_ context.Context) (string, error) {
	return strings.TrimSpace(string(s)), nil
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Ensure StaticToken implements TokenSource
var _ TokenSource = StaticToken("")
