package auth

import (
	"errors"
	"maps"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	// Secret is the HMAC key tokens are signed with. Required.
	Secret []byte

	// Issuer is the expected iss claim, if set.
	Issuer string

	// Audience is the expected aud claim, if set.
	Audience string

	// HeaderName is the header containing the token.
	// Default: "Authorization"
	HeaderName string

	// TokenPrefix is the prefix before the token in the header.
	// Default: "Bearer "
	TokenPrefix string
}

// Verifier checks HS256 bearer tokens such as those minted by JWTSource.
type Verifier struct {
	config VerifierConfig
	parser *jwt.Parser
}

// NewVerifier creates a Verifier.
func NewVerifier(config VerifierConfig) (*Verifier, error) {
	if len(config.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &Verifier{config: config, parser: jwt.NewParser(opts...)}, nil
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.config.Secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, ErrInvalidCredentials
		}
	}
	if !token.Valid {
		return nil, ErrInvalidCredentials
	}
	return identityFromClaims(claims), nil
}

// VerifyRequest verifies the token carried by r.
func (v *Verifier) VerifyRequest(r *http.Request) (*Identity, error) {
	header := r.Header.Get(v.config.HeaderName)
	tokenString := strings.TrimPrefix(header, v.config.TokenPrefix)
	if header == "" || tokenString == header {
		return nil, ErrMissingCredentials
	}
	return v.Verify(strings.TrimSpace(tokenString))
}

func identityFromClaims(claims jwt.MapClaims) *Identity {
	id := &Identity{Claims: maps.Clone(map[string]any(claims))}
	id.Subject, _ = claims.GetSubject()
	id.Issuer, _ = claims.GetIssuer()
	id.Audience, _ = claims.GetAudience()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id
}

// RequireBearer is HTTP middleware that rejects requests without a valid
// token and attaches the verified Identity to the request context.
//
// Usage:
//
//	srv := httptest.NewServer(auth.RequireBearer(verifier, router))
func RequireBearer(v *Verifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := v.VerifyRequest(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
