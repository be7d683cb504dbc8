// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package authn

import (
	"context"
	"errors"
	"net/http"

	"github.com/vallum-project/vallum/internal/tenancy"
)

var (
	// ErrNoCredentials indicates the request carried no credentials this
	// authenticator understands. A chain moves on to the next one.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates credentials were presented but failed
	// verification. A chain stops here.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates a token past its expiry.
	ErrExpiredCredentials = errors.New("credentials expired")
)

// Authenticator verifies one credential type on an incoming request.
type Authenticator interface {
	// Authenticate extracts and verifies credentials, returning the
	// principal they prove. ErrNoCredentials means this authenticator found
	// nothing to verify; any other error is a verification failure.
	Authenticate(ctx context.Context, r *http.Request) (tenancy.Principal, error)

	// Name identifies the credential type for logs.
	Name() string

	// Priority orders authenticators in a chain; lower runs first.
	Priority() int
}
