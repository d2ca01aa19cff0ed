// Package auth issues and checks the development backend's bearer tokens.
//
// TOKEN FLOW:
//  1. POST /auth/signup or /auth/login returns {"token": "<jwt>", "user": {...}}
//  2. The client stores the token and sends it on every call:
//     Authorization: Bearer <jwt>
//  3. RequireAuth validates the JWT and puts the user ID in the request context
//
// The backend keeps no session table. Everything it needs (user ID, expiry)
// is inside the signed token, so "logout" is purely the client forgetting it.
//
// Tokens are HS256 with payload {"sub": userID, "iss": "clint-crypto", "iat", "exp"}.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "clint-crypto"

	// DefaultTokenTTL is how long an issued token stays valid. The client has
	// no refresh flow: when the token expires, the next bootstrap discards it
	// and the user signs in again.
	DefaultTokenTTL = 7 * 24 * time.Hour
)

// TokenService signs and verifies bearer tokens with one shared secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and
// DefaultTokenTTL.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), ttl: DefaultTokenTTL}, nil
}

// claims is the JWT payload. We only use the registered claims; "sub" holds
// the user ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for userID that expires after the service TTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to get an already-expired token.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the user ID from "sub".
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Token is not expired, and has an expiry at all
//   - Issuer is "clint-crypto"
//   - Algorithm is HS256 (a token claiming "none" is rejected)
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
