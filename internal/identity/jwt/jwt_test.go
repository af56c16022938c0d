package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_RoundTrip(t *testing.T) {
	v := NewValidator(Config{SecretKey: "test-secret", Issuer: "distributor"})

	token, err := v.IssueToken(domain.Principal{
		UserID:      42,
		Role:        domain.RoleStaff,
		Permissions: []string{domain.PermissionManageNotifications},
	}, time.Minute)
	require.NoError(t, err)

	principal, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), principal.UserID)
	assert.Equal(t, domain.RoleStaff, principal.Role)
	assert.True(t, principal.HasPermission(domain.PermissionManageNotifications))
}

func TestValidator_Rejects(t *testing.T) {
	v := NewValidator(Config{SecretKey: "test-secret"})

	expired, err := v.IssueToken(domain.Principal{UserID: 1, Role: domain.RoleAdmin}, -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewValidator(Config{SecretKey: "other"}).IssueToken(domain.Principal{UserID: 1}, time.Minute)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
		{"wrong key", otherKey, ErrInvalidToken},
		{"missing expiry", noExpiry, ErrInvalidToken},
		{"non-numeric subject", badSubject, ErrInvalidSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidator_IssuerMismatch(t *testing.T) {
	issuer := NewValidator(Config{SecretKey: "s", Issuer: "storefront"})
	token, err := issuer.IssueToken(domain.Principal{UserID: 7}, time.Minute)
	require.NoError(t, err)

	_, err = NewValidator(Config{SecretKey: "s", Issuer: "distributor"}).ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
