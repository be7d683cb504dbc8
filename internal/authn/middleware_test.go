// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package authn

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vallum-project/vallum/internal/tenancy"
)

func TestMiddlewareAttachesPrincipal(t *testing.T) {
	m := newTestTokenManager(t, time.Hour)
	want := tenancy.Principal{UserID: "u1", Role: tenancy.RoleManager, OrganizationID: "org_acme"}
	token, err := m.Issue(want)
	if err != nil {
		t.Fatal(err)
	}

	var got tenancy.Principal
	var gotOK bool
	handler := Middleware(NewJWTAuthenticator(m), "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, gotOK = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/entities/campaigns", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !gotOK || got != want {
		t.Errorf("principal = %+v ok=%v, want %+v", got, gotOK, want)
	}
}

func TestMiddlewareRejectsAnonymous(t *testing.T) {
	m := newTestTokenManager(t, time.Hour)
	handler := Middleware(NewJWTAuthenticator(m), `Basic realm="Vallum"`)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without credentials")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entities/campaigns", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got == "" {
		t.Error("missing WWW-Authenticate challenge")
	}
	if !strings.Contains(w.Body.String(), "unauthenticated") {
		t.Errorf("body %q missing error code", w.Body.String())
	}
}

func TestMiddlewareDistinguishesExpired(t *testing.T) {
	m := newTestTokenManager(t, time.Nanosecond)
	token, err := m.Issue(tenancy.Principal{UserID: "u1", Role: tenancy.RoleSeller, OrganizationID: "org_acme"})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	handler := Middleware(NewJWTAuthenticator(m), "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached with expired credentials")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "expired") {
		t.Errorf("body %q should mention expiry", w.Body.String())
	}
}

func TestRequestedOrg(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := RequestedOrg(r); got != "" {
		t.Errorf("RequestedOrg without header = %q", got)
	}
	r.Header.Set(OrgHeader, "org_target")
	if got := RequestedOrg(r); got != "org_target" {
		t.Errorf("RequestedOrg = %q, want org_target", got)
	}
}
