package auth

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SignerConfig configures a JWTSource.
type SignerConfig struct {
	// Secret is the HMAC key used to sign tokens. Required.
	Secret []byte

	// Issuer is the iss claim.
	Issuer string

	// Subject is the sub claim.
	Subject string

	// Audience is the aud claim.
	Audience string

	// TTL is the lifetime of a minted token.
	// Default: 5 minutes
	TTL time.Duration

	// RefreshBefore re-mints a token this long before it expires.
	// Default: TTL/10
	RefreshBefore time.Duration

	// Claims are extra claims added to every token.
	Claims map[string]any
}

// JWTSource mints short-lived HS256 tokens and reuses each one until it is
// close to expiry.
type JWTSource struct {
	config SignerConfig
	now    func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewJWTSource creates a token source from config.
func NewJWTSource(config SignerConfig) (*JWTSource, error) {
	if len(config.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if config.TTL < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTTL, config.TTL)
	}
	if config.TTL == 0 {
		config.TTL = 5 * time.Minute
	}
	if config.RefreshBefore <= 0 || config.RefreshBefore >= config.TTL {
		config.RefreshBefore = config.TTL / 10
	}

	return &JWTSource{config: config, now: time.Now}, nil
}

// Token returns a cached token or mints a new one.
func (s *JWTSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.expiresAt.Add(-s.config.RefreshBefore)) {
		return s.token, nil
	}

	expiresAt := now.Add(s.config.TTL)
	claims := jwt.MapClaims{}
	maps.Copy(claims, s.config.Claims)
	claims["iat"] = now.Unix()
	claims["exp"] = expiresAt.Unix()
	claims["jti"] = uuid.NewString()
	if s.config.Issuer != "" {
		claims["iss"] = s.config.Issuer
	}
	if s.config.Subject != "" {
		claims["sub"] = s.config.Subject
	}
	if s.config.Audience != "" {
		claims["aud"] = s.config.Audience
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignFailed, err)
	}

	s.token = signed
	s.expiresAt = expiresAt
	return signed, nil
}

// Ensure JWTSource implements TokenSource
var _ TokenSource = (*JWTSource)(nil)

