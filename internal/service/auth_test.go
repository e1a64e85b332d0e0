package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	auth := NewAuthService("secret")
	token, err := auth.IssueToken("admin", time.Hour)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.NotEmpty(t, claims.TokenID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewAuthService("one").IssueToken("admin", time.Hour)
	require.NoError(t, err)

	_, err = NewAuthService("two").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	auth := NewAuthService("secret")
	auth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := auth.IssueToken("admin", time.Hour)
	require.NoError(t, err)

	auth.now = time.Now
	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateRejectsRefreshTokenType(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin"},
		TokenID:          "t1",
		TokenType:        "refresh",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewAuthService("secret").ValidateToken(token)
	assert.EqualError(t, err, "access token required")
}

func TestEmptySecret(t *testing.T) {
	auth := NewAuthService("")
	_, err := auth.IssueToken("admin", time.Hour)
	assert.Error(t, err)
	_, err = auth.ValidateToken("x.y.z")
	assert.Error(t, err)
}
