package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/greenify/plant-store/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing-purposes"

func newTestJWTService() *JWTService {
	return NewJWTService(testSecret, 15*time.Minute, 7*24*time.Hour)
}

func testUser(role model.Role) *model.User {
	return &model.User{ID: "user-123", Email: "fern@example.com", Name: "Fern", Role: role}
}

func TestNewJWTService(t *testing.T) {
	service := newTestJWTService()
	assert.Equal(t, 15*time.Minute, service.AccessTokenExpiry())
	assert.Equal(t, 7*24*time.Hour, service.RefreshTokenExpiry())
}

// ============================================
// Access Token Tests
// ============================================

func TestJWTService_AccessToken_RoundTrip(t *testing.T) {
	service := newTestJWTService()

	token, expiresAt, err := service.GenerateAccessToken(testUser(model.RoleAdmin))
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))

	claims, err := service.ValidateAccessToken(token)

	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "fern@example.com", claims.Email)
	assert.Equal(t, "Fern", claims.Name)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.Equal(t, "user-123", claims.Subject)
	assert.True(t, claims.IsAdmin())
}

func TestJWTService_ValidateAccessToken_Expired(t *testing.T) {
	service := NewJWTService(testSecret, time.Millisecond, time.Hour)

	token, _, err := service.GenerateAccessToken(testUser(model.RoleCustomer))
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	claims, err := service.ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestJWTService_ValidateAccessToken_Rejects(t *testing.T) {
	service := newTestJWTService()
	other := NewJWTService("another-secret-key-for-testing-xx", 15*time.Minute, time.Hour)
	foreign, _, err := other.GenerateAccessToken(testUser(model.RoleCustomer))
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-123", Role: model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}})
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "user-123",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"}})
	wrongIssuerToken, err := wrongIssuer.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"random string", "not-a-valid-token"},
		{"malformed JWT", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
		{"wrong signature", foreign},
		{"alg none", noneToken},
		{"wrong issuer", wrongIssuerToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

// ============================================
// Refresh Token Tests
// ============================================

func TestJWTService_RefreshToken_RoundTrip(t *testing.T) {
	service := newTestJWTService()

	token, expiresAt, err := service.GenerateRefreshToken("user-789")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now().Add(6*24*time.Hour)))

	userID, err := service.ValidateRefreshToken(token)

	require.NoError(t, err)
	assert.Equal(t, "user-789", userID)
}

func TestJWTService_TokensAreNotInterchangeable(t *testing.T) {
	service := newTestJWTService()
	pair, err := service.GenerateTokenPair(testUser(model.RoleCustomer))
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	_, err = service.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = service.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ValidateRefreshToken_Invalid(t *testing.T) {
	service := newTestJWTService()

	for _, token := range []string{"", "garbage", strings.Repeat("a.", 2) + "a"} {
		userID, err := service.ValidateRefreshToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Empty(t, userID)
	}
}
