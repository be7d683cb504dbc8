// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package authn

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vallum-project/vallum/internal/tenancy"
)

// minSecretLength is the minimum HS256 secret size accepted. Anything
// shorter is brute-forceable offline.
const minSecretLength = 32

// Claims are the token claims Vallum issues and verifies. The organization
// claim is the principal's HOME organization; which organization a request
// acts as is decided later by the resolver, never by the token.
type Claims struct {
	UserID         string `json:"uid"`
	OrganizationID string `json:"org"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenManager builds a token manager. The secret must be at least 32
// bytes; the ttl bounds every issued token's lifetime.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes, got %d", minSecretLength, len(secret))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "vallum",
	}, nil
}

// Issue signs a token asserting the given principal.
func (m *TokenManager) Issue(p tenancy.Principal) (string, error) {
	if p.UserID == "" || p.OrganizationID == "" || !p.Role.Valid() {
		return "", fmt.Errorf("refusing to issue token for incomplete principal")
	}

	now := time.Now()
	claims := &Claims{
		UserID:         p.UserID,
		OrganizationID: p.OrganizationID,
		Role:           string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   p.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks a token's signature, algorithm, and validity window, and
// returns the principal it asserts. The signing algorithm is pinned to
// HS256 so an attacker cannot downgrade to "none" or swap in an RSA
// public-key confusion.
func (m *TokenManager) Verify(tokenString string) (tenancy.Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return tenancy.Principal{}, ErrExpiredCredentials
		}
		return tenancy.Principal{}, ErrInvalidCredentials
	}

	role, err := tenancy.ParseRole(claims.Role)
	if err != nil {
		return tenancy.Principal{}, ErrInvalidCredentials
	}
	if claims.UserID == "" || claims.OrganizationID == "" {
		return tenancy.Principal{}, ErrInvalidCredentials
	}

	return tenancy.Principal{
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		Role:           role,
	}, nil
}
