// Package auth provides JWT access-token validation for the API surface.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the user ID from the Subject claim
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenService handles JWT token generation and validation
type TokenService struct {
	secret string
	expiry time.Duration
	issuer string
}

// TokenServiceConfig holds configuration for TokenService
type TokenServiceConfig struct {
	AccessSecret      string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	return &TokenService{
		secret: cfg.AccessSecret,
		expiry: cfg.AccessTokenExpiry,
		issuer: cfg.Issuer,
	}
}

// GenerateAccessToken generates a new access token for the given user
func (s *TokenService) GenerateAccessToken(userID string) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// ValidateAccessToken validates an access token and returns its claims
func (s *TokenService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.secret), nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
