// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package authn

import (
	"context"
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/vallum-project/vallum/internal/logging"
	"github.com/vallum-project/vallum/internal/tenancy"
)

// OrgHeader names the organization a request asks to act as. The header is
// advisory input to the resolver; authn only carries it. Absent header
// means the principal's home organization.
const OrgHeader = "X-Vallum-Org"

// principalKey carries the verified principal through the request context.
type principalKey struct{}

// PrincipalFromContext returns the principal attached by Middleware.
func PrincipalFromContext(ctx context.Context) (tenancy.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(tenancy.Principal)
	return p, ok
}

// WithPrincipal attaches a principal to a context. Exported for tests and
// for internal tooling that bypasses HTTP.
func WithPrincipal(ctx context.Context, p tenancy.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// RequestedOrg returns the organization the request asks to act as, or ""
// for the principal's home organization.
func RequestedOrg(r *http.Request) string {
	return r.Header.Get(OrgHeader)
}

// Middleware authenticates every request through the given authenticator
// and attaches the principal to the request context. Requests that fail
// verification are rejected with 401 before reaching any handler; no
// anonymous traffic passes.
func Middleware(auth Authenticator, challenge string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := auth.Authenticate(r.Context(), r)
			if err != nil {
				logging.Ctx(r.Context()).Debug().
					Err(err).
					Str("authenticator", auth.Name()).
					Str("path", r.URL.Path).
					Msg("authentication failed")
				writeUnauthorized(w, challenge, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// writeUnauthorized emits the 401 body. The message distinguishes missing
// from expired credentials but never leaks which verification step failed.
func writeUnauthorized(w http.ResponseWriter, challenge string, err error) {
	if challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	msg := "authentication required"
	if errors.Is(err, ErrExpiredCredentials) {
		msg = "credentials expired"
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  "unauthenticated",
	})
}
