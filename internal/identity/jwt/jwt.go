// Package jwt validates admin bearer tokens issued by the main application.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
)

// Token errors.
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidSubject = errors.New("invalid subject claim")
)

// Config contains token validation configuration.
type Config struct {
	SecretKey string
	Issuer    string // checked when set
}

// Claims carried by admin tokens. Subject holds the user ID.
type Claims struct {
	Role        domain.Role `json:"role"`
	Permissions []string    `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Validator validates HS256 tokens signed with a shared secret.
type Validator struct {
	config Config
}

// NewValidator creates a new token validator.
func NewValidator(config Config) *Validator {
	return &Validator{config: config}
}

// ValidateToken parses the token and returns the caller it identifies.
func (v *Validator) ValidateToken(_ context.Context, tokenString string) (*domain.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (interface{}, error) {
		return []byte(v.config.SecretKey), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalidSubject
	}

	return &domain.Principal{
		UserID:      userID,
		Role:        claims.Role,
		Permissions: claims.Permissions,
	}, nil
}

// IssueToken signs a token for the principal. Used by tooling and tests.
func (v *Validator) IssueToken(principal domain.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:        principal.Role,
		Permissions: principal.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(principal.UserID, 10),
			Issuer:    v.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(v.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
