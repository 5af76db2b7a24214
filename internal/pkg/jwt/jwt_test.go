package jwt

import (
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewJWTService("test-secret-key-for-jwt", "15m", "24h", false)
	require.NoError(t, err)
	return svc
}

func TestNewJWTService_InvalidDuration(t *testing.T) {
	_, err := NewJWTService("secret", "soon", "24h", false)
	assert.Error(t, err)
}

func TestJWTService_AccessTokenClaims(t *testing.T) {
	svc := newTestService(t)

	token, expiresAt, err := svc.GenerateAccessToken("user-1", "owner@example.com", "ws-1", workspace.RoleOwner)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(15*time.Minute).Unix(), expiresAt, 2)

	decoded, err := jwtauth.VerifyToken(svc.JWTAuth(), token)
	require.NoError(t, err)
	claims := decoded.PrivateClaims()
	assert.Equal(t, "user-1", claims["user_id"])
	assert.Equal(t, "ws-1", claims["workspace_id"])
	assert.Equal(t, "owner", claims["role"])
	assert.Equal(t, TokenTypeAccess, claims["type"])
}

func TestJWTService_RefreshTokensAreUnique(t *testing.T) {
	svc := newTestService(t)

	first, _, err := svc.GenerateRefreshToken("user-1")
	require.NoError(t, err)
	second, _, err := svc.GenerateRefreshToken("user-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	userID, err := svc.ValidateRefreshToken(first)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestJWTService_TypedTokensRejectOtherTypes(t *testing.T) {
	svc := newTestService(t)

	sse, expiresIn, err := svc.GenerateSSEToken("user-1")
	require.NoError(t, err)
	assert.Equal(t, 300, expiresIn)

	userID, err := svc.ValidateSSEToken(sse)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = svc.ValidateMFAToken(sse)
	assert.Error(t, err)

	mfa, _, err := svc.GenerateMFAToken("user-2")
	require.NoError(t, err)
	userID, err = svc.ValidateMFAToken(mfa)
	require.NoError(t, err)
	assert.Equal(t, "user-2", userID)

	_, err = svc.ValidateRefreshToken(mfa)
	assert.Error(t, err)
}

func TestJWTService_RejectsForeignSignature(t *testing.T) {
	svc := newTestService(t)
	other, err := NewJWTService("another-secret", "15m", "24h", false)
	require.NoError(t, err)

	token, _, err := other.GenerateSSEToken("user-1")
	require.NoError(t, err)

	_, err = svc.ValidateSSEToken(token)
	assert.Error(t, err)
}

func TestJWTService_RefreshTokenCookie(t *testing.T) {
	svc := newTestService(t)
	exp := time.Now().Add(time.Hour).Unix()

	cookie := svc.RefreshTokenCookie("abc", exp)
	assert.Equal(t, "refresh_token", cookie.Name)
	assert.Equal(t, "/api/v1/auth", cookie.Path)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, exp, cookie.Expires.Unix())
}
