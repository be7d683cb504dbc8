// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package tenancy

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// mockLookup is an in-memory SchemaLookup with injectable failures.
type mockLookup struct {
	mu       sync.Mutex
	mappings map[string]string
	err      error
	calls    int
}

func newMockLookup(mappings map[string]string) *mockLookup {
	if mappings == nil {
		mappings = make(map[string]string)
	}
	return &mockLookup{mappings: mappings}
}

func (m *mockLookup) SchemaFor(_ context.Context, orgID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	schema, ok := m.mappings[orgID]
	if !ok {
		return "", ErrUnknownOrganization
	}
	return schema, nil
}

func (m *mockLookup) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestResolveHomeOrganization(t *testing.T) {
	lookup := newMockLookup(map[string]string{"org_acme": "t_acme"})
	resolver := NewResolver(lookup)

	tests := []struct {
		name         string
		principal    Principal
		requestedOrg string
	}{
		{
			name:      "empty requested org defaults to home",
			principal: Principal{UserID: "u1", Role: RoleSeller, OrganizationID: "org_acme"},
		},
		{
			name:         "explicit home org allowed",
			principal:    Principal{UserID: "u1", Role: RoleSeller, OrganizationID: "org_acme"},
			requestedOrg: "org_acme",
		},
		{
			name:         "manager explicit home org allowed",
			principal:    Principal{UserID: "u2", Role: RoleManager, OrganizationID: "org_acme"},
			requestedOrg: "org_acme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := resolver.Resolve(context.Background(), tt.principal, tt.requestedOrg)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if tc.OrganizationID() != "org_acme" {
				t.Errorf("OrganizationID() = %q, want org_acme", tc.OrganizationID())
			}
			if tc.SchemaName() != "t_acme" {
				t.Errorf("SchemaName() = %q, want t_acme", tc.SchemaName())
			}
			if tc.CrossTenant() {
				t.Error("CrossTenant() = true for home-org resolution")
			}
		})
	}
}

func TestResolveNonMasterNeverLeavesHomeOrg(t *testing.T) {
	lookup := newMockLookup(map[string]string{
		"org_acme":  "t_acme",
		"org_other": "t_other",
	})
	resolver := NewResolver(lookup)

	for _, role := range []Role{RoleSeller, RoleManager, RoleAuditor, RoleAdmin} {
		t.Run(role.String(), func(t *testing.T) {
			p := Principal{UserID: "u1", Role: role, OrganizationID: "org_acme"}
			tc, err := resolver.Resolve(context.Background(), p, "org_other")
			if !errors.Is(err, ErrForbidden) {
				t.Fatalf("Resolve() error = %v, want ErrForbidden", err)
			}
			if tc != nil {
				t.Fatal("Resolve() returned a context alongside a denial")
			}
		})
	}
}

func TestResolveForbiddenBeforeRegistryLookup(t *testing.T) {
	lookup := newMockLookup(map[string]string{"org_other": "t_other"})
	resolver := NewResolver(lookup)

	p := Principal{UserID: "u1", Role: RoleSeller, OrganizationID: "org_acme"}
	if _, err := resolver.Resolve(context.Background(), p, "org_other"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Resolve() error = %v, want ErrForbidden", err)
	}
	if lookup.callCount() != 0 {
		t.Errorf("registry consulted %d times on a forbidden request, want 0", lookup.callCount())
	}
}

func TestResolveMasterImpersonation(t *testing.T) {
	lookup := newMockLookup(map[string]string{
		"org_master": "t_master",
		"org_acme":   "t_acme",
	})
	resolver := NewResolver(lookup)
	p := Principal{UserID: "m1", Role: RoleMaster, OrganizationID: "org_master"}

	t.Run("foreign org sets cross tenant flag", func(t *testing.T) {
		tc, err := resolver.Resolve(context.Background(), p, "org_acme")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if tc.OrganizationID() != "org_acme" {
			t.Errorf("OrganizationID() = %q, want org_acme", tc.OrganizationID())
		}
		if tc.HomeOrganizationID() != "org_master" {
			t.Errorf("HomeOrganizationID() = %q, want org_master", tc.HomeOrganizationID())
		}
		if !tc.CrossTenant() {
			t.Error("CrossTenant() = false for master acting on foreign org")
		}
	})

	t.Run("home org does not set cross tenant flag", func(t *testing.T) {
		tc, err := resolver.Resolve(context.Background(), p, "")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if tc.CrossTenant() {
			t.Error("CrossTenant() = true for master acting on home org")
		}
	})
}

func TestResolveUnknownOrganization(t *testing.T) {
	lookup := newMockLookup(map[string]string{"org_master": "t_master"})
	resolver := NewResolver(lookup)

	p := Principal{UserID: "m1", Role: RoleMaster, OrganizationID: "org_master"}
	_, err := resolver.Resolve(context.Background(), p, "org_ghost")
	if !errors.Is(err, ErrUnknownOrganization) {
		t.Fatalf("Resolve() error = %v, want ErrUnknownOrganization", err)
	}
}

func TestResolveUnauthenticated(t *testing.T) {
	lookup := newMockLookup(map[string]string{"org_acme": "t_acme"})
	resolver := NewResolver(lookup)

	tests := []struct {
		name      string
		principal Principal
	}{
		{name: "zero principal", principal: Principal{}},
		{name: "missing user id", principal: Principal{Role: RoleSeller, OrganizationID: "org_acme"}},
		{name: "missing org", principal: Principal{UserID: "u1", Role: RoleSeller}},
		{name: "unknown role", principal: Principal{UserID: "u1", Role: Role("intern"), OrganizationID: "org_acme"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := resolver.Resolve(context.Background(), tt.principal, ""); !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("Resolve() error = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestResolveRegistryErrorPassesThrough(t *testing.T) {
	lookup := newMockLookup(nil)
	lookup.err = errors.New("connection refused")
	resolver := NewResolver(lookup)

	p := Principal{UserID: "u1", Role: RoleSeller, OrganizationID: "org_acme"}
	_, err := resolver.Resolve(context.Background(), p, "")
	if err == nil || errors.Is(err, ErrUnknownOrganization) {
		t.Fatalf("Resolve() error = %v, want wrapped storage error", err)
	}
	if !errors.Is(err, lookup.err) {
		t.Errorf("storage error not preserved in chain: %v", err)
	}
}

func TestSchemaIsPureFunctionOfOrganization(t *testing.T) {
	lookup := newMockLookup(map[string]string{"org_acme": "t_acme"})
	resolver := NewResolver(lookup)

	a, err := resolver.Resolve(context.Background(), Principal{UserID: "u1", Role: RoleSeller, OrganizationID: "org_acme"}, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	b, err := resolver.Resolve(context.Background(), Principal{UserID: "u2", Role: RoleManager, OrganizationID: "org_acme"}, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if a.SchemaName() != b.SchemaName() {
		t.Errorf("same organization resolved to different schemas: %q vs %q", a.SchemaName(), b.SchemaName())
	}
}

func TestContextRoundTrip(t *testing.T) {
	lookup := newMockLookup(map[string]string{"org_acme": "t_acme"})
	resolver := NewResolver(lookup)
	tc, err := resolver.Resolve(context.Background(), Principal{UserID: "u1", Role: RoleSeller, OrganizationID: "org_acme"}, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	ctx := IntoContext(context.Background(), tc)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("FromContext() did not find an attached tenant context")
	}
	if got != tc {
		t.Error("FromContext() returned a different context value")
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext() found a context on an empty parent")
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"seller", RoleSeller, false},
		{"manager", RoleManager, false},
		{"auditor", RoleAuditor, false},
		{"admin", RoleAdmin, false},
		{"master", RoleMaster, false},
		{"", "", true},
		{"Master", "", true},
		{"root", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRoleIsMaster(t *testing.T) {
	if RoleSeller.IsMaster() || RoleAdmin.IsMaster() {
		t.Error("non-master role reported as master")
	}
	if !RoleMaster.IsMaster() {
		t.Error("master role not reported as master")
	}
}
