// Package auth reads and issues the storefront API's JWT access tokens.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/storefront/internal/domain"
)

// Claims are the claims the storefront API puts in its access tokens.
type Claims struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// User returns the profile the claims describe.
func (c Claims) User() domain.User {
	return domain.User{ID: c.ID, Name: c.Name, Role: c.Role}
}

// ParseUnverified extracts the claims without checking the signature. The
// client never holds the signing key; the API stays the authority on whether
// a token is valid.
func ParseUnverified(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token claims: %w", err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("parse token claims: missing id")
	}
	return claims, nil
}

// Issuer signs and validates access tokens with an HMAC secret. Only the fake
// storefront API uses it.
type Issuer struct {
	secret []byte
	expiry time.Duration
}

// NewIssuer creates an issuer. A zero expiry issues tokens that never expire;
// a negative one issues tokens that are already expired.
func NewIssuer(secret string, expiry time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), expiry: expiry}
}

// Issue creates a signed token for user.
func (i *Issuer) Issue(user domain.User) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		ID:   user.ID,
		Name: user.Name,
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.expiry != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.expiry))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Validate parses token and checks its signature and expiry.
func (i *Issuer) Validate(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}
	return claims, nil
}
