// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package authn

import (
	"context"
	"net/http"
	"strings"

	"github.com/vallum-project/vallum/internal/tenancy"
)

// tokenCookieName is the fallback cookie checked when no Authorization
// header is present.
const tokenCookieName = "vallum_token"

// JWTAuthenticator verifies bearer tokens from the Authorization header or
// the session cookie.
type JWTAuthenticator struct {
	manager *TokenManager
}

// NewJWTAuthenticator wraps a token manager as an Authenticator.
func NewJWTAuthenticator(manager *TokenManager) *JWTAuthenticator {
	return &JWTAuthenticator{manager: manager}
}

// Authenticate extracts and verifies the bearer token.
func (a *JWTAuthenticator) Authenticate(_ context.Context, r *http.Request) (tenancy.Principal, error) {
	tokenStr := a.extractToken(r)
	if tokenStr == "" {
		return tenancy.Principal{}, ErrNoCredentials
	}
	return a.manager.Verify(tokenStr)
}

func (a *JWTAuthenticator) Name() string { return "jwt" }

// Priority places JWT ahead of Basic in a chain.
func (a *JWTAuthenticator) Priority() int { return 10 }

func (a *JWTAuthenticator) extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	if cookie, err := r.Cookie(tokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}
