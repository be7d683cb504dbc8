// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package authz

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/vallum-project/vallum/internal/authn"
	"github.com/vallum-project/vallum/internal/logging"
)

// Middleware applies role-based route gating on top of authentication.
type Middleware struct {
	enforcer *Enforcer
}

// NewMiddleware wraps an enforcer for use in a router.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{enforcer: enforcer}
}

// Require gates a route group behind a (object, action) permission. It
// assumes authn.Middleware ran earlier; a request without a principal is
// rejected rather than treated as some default role.
func (m *Middleware) Require(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := authn.PrincipalFromContext(r.Context())
			if !ok {
				writeForbidden(w)
				return
			}

			allowed, err := m.enforcer.Allowed(p.Role, object, action)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("authorization check failed")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "internal error",
					"code":  "internal",
				})
				return
			}
			if !allowed {
				logging.Ctx(r.Context()).Warn().
					Str("user_id", p.UserID).
					Str("role", string(p.Role)).
					Str("object", object).
					Str("action", action).
					Msg("route denied by role policy")
				writeForbidden(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireForMethod derives the action from the HTTP method: GET/HEAD read,
// DELETE delete, everything else write.
func (m *Middleware) RequireForMethod(object string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.Require(object, methodAction(r.Method))(next).ServeHTTP(w, r)
		})
	}
}

func methodAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionWrite
	}
}

func writeForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "forbidden",
		"code":  "forbidden",
	})
}
