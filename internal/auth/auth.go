// Package auth resolves bearer credentials to a verified caller identity.
// Every operation in the service requires one; requests without a valid
// credential fail before any registry or store work happens.
package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for missing, malformed, or expired credentials.
var ErrUnauthorized = errors.New("auth: missing or invalid credential")

// Identity is the verified caller of a request.
type Identity struct {
	UserID string
	Email  string
}

// Verifier validates a bearer token and resolves it to an Identity.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

// JWTVerifier validates HMAC-signed JWTs. The subject claim becomes the
// caller's user id.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a JWTVerifier. issuer is optional; when set, tokens
// from other issuers are rejected.
func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrUnauthorized
	}

	var c claims
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid || c.Subject == "" {
		return nil, ErrUnauthorized
	}

	return &Identity{UserID: c.Subject, Email: c.Email}, nil
}

type identityKey struct{}

// WithIdentity returns a context carrying the verified caller identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the verified caller identity, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
