// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package authn

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vallum-project/vallum/internal/tenancy"
)

// bcryptCost balances verification latency against offline cracking cost.
const bcryptCost = 12

// BasicUser is one statically configured HTTP Basic identity. Basic auth
// exists for operational access (the master break-glass account and CI
// service users); tenant end-user traffic uses bearer tokens.
type BasicUser struct {
	Username       string
	PasswordHash   string
	Role           tenancy.Role
	OrganizationID string
}

// BasicAuthenticator verifies HTTP Basic credentials against a static
// user table of bcrypt hashes.
type BasicAuthenticator struct {
	users map[string]BasicUser
}

// NewBasicAuthenticator validates the user table and builds the
// authenticator. Every entry needs a parseable bcrypt hash, a valid role,
// and an organization.
func NewBasicAuthenticator(users []BasicUser) (*BasicAuthenticator, error) {
	table := make(map[string]BasicUser, len(users))
	for _, u := range users {
		if u.Username == "" {
			return nil, fmt.Errorf("basic user with empty username")
		}
		if _, exists := table[u.Username]; exists {
			return nil, fmt.Errorf("duplicate basic user %q", u.Username)
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("basic user %q: password hash is not bcrypt: %w", u.Username, err)
		}
		if !u.Role.Valid() {
			return nil, fmt.Errorf("basic user %q: unknown role %q", u.Username, u.Role)
		}
		if u.OrganizationID == "" {
			return nil, fmt.Errorf("basic user %q: organization is required", u.Username)
		}
		table[u.Username] = u
	}
	return &BasicAuthenticator{users: table}, nil
}

// HashPassword produces a bcrypt hash suitable for the BasicUser table.
// Used by deployment tooling, never on the request path.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticate verifies Basic credentials from the Authorization header.
func (a *BasicAuthenticator) Authenticate(_ context.Context, r *http.Request) (tenancy.Principal, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Basic ") {
		return tenancy.Principal{}, ErrNoCredentials
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return tenancy.Principal{}, ErrInvalidCredentials
	}
	username, password, found := strings.Cut(string(raw), ":")
	if !found {
		return tenancy.Principal{}, ErrInvalidCredentials
	}

	user, ok := a.users[username]
	if !ok {
		// Burn a comparison anyway so unknown usernames cost the same as
		// wrong passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return tenancy.Principal{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return tenancy.Principal{}, ErrInvalidCredentials
	}

	return tenancy.Principal{
		UserID:         user.Username,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
	}, nil
}

func (a *BasicAuthenticator) Name() string { return "basic" }

// Priority places Basic after JWT in a chain.
func (a *BasicAuthenticator) Priority() int { return 20 }

// WWWAuthenticate is the challenge header value sent with 401 responses.
func (a *BasicAuthenticator) WWWAuthenticate() string {
	return `Basic realm="Vallum", charset="UTF-8"`
}

// dummyHash is a hash of a random unusable password, compared against when
// the username does not exist.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("vallum-nonexistent-user-pad"), bcryptCost)
	if err != nil {
		panic(err)
	}
	return h
}()
