package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, subject, issuer string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"iss":   issuer,
		"email": "jane@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTVerifier_Verify(t *testing.T) {
	v := NewJWTVerifier("test-secret", "provider-verify")

	id, err := v.Verify(signToken(t, "test-secret", "user-1", "provider-verify"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "jane@example.com", id.Email)
}

func TestJWTVerifier_RejectsBadSecret(t *testing.T) {
	v := NewJWTVerifier("test-secret", "")

	_, err := v.Verify(signToken(t, "wrong-secret", "user-1", ""))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestJWTVerifier_RejectsWrongIssuer(t *testing.T) {
	v := NewJWTVerifier("test-secret", "provider-verify")

	_, err := v.Verify(signToken(t, "test-secret", "user-1", "someone-else"))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestJWTVerifier_RejectsEmptyToken(t *testing.T) {
	v := NewJWTVerifier("test-secret", "")

	_, err := v.Verify("")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestJWTVerifier_RejectsMissingSubject(t *testing.T) {
	v := NewJWTVerifier("test-secret", "")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = v.Verify(signed)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestJWTVerifier_RejectsExpired(t *testing.T) {
	v := NewJWTVerifier("test-secret", "")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = v.Verify(signed)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestIdentityContextRoundTrip(t *testing.T) {
	id := &Identity{UserID: "user-9"}
	ctx := WithIdentity(context.Background(), id)

	assert.Equal(t, id, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
