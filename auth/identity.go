package auth

import (
	"slices"
	"time"
)

// Identity is the caller described by a verified token.
type Identity struct {
	// Subject is the sub claim.
	Subject string

	// Issuer is the iss claim.
	Issuer string

	// Audience is the aud claim.
	Audience []string

	// Claims contains every claim of the token.
	Claims map[string]any

	// ExpiresAt is the exp claim, zero when absent.
	ExpiresAt time.Time
}

// HasAudience reports whether aud is one of the token audiences.
func (id *Identity) HasAudience(aud string) bool {
	return slices.Contains(id.Audience, aud)
}

// IsExpired reports whether the identity has an expiry in the past.
func (id *Identity) IsExpired() bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(id.ExpiresAt)
}
