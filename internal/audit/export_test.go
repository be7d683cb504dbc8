// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package audit

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vallum-project/vallum/internal/tenancy"
)

func exportFixture() []Entry {
	ts := time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC)
	return []Entry{
		{
			ID: "01K2M", Timestamp: ts,
			ActorUserID: "u1", ActorRole: tenancy.RoleSeller,
			HomeOrgID: "org_acme", OrgID: "org_acme", SchemaName: "t_acme",
			EntityType: "campaigns", Kind: KindWrite, Operation: "create",
			Allowed: true,
		},
		{
			ID: "01K2N", Timestamp: ts.Add(time.Minute),
			ActorUserID: "m1", ActorRole: tenancy.RoleMaster,
			HomeOrgID: "org_master", OrgID: "org_acme", SchemaName: "t_acme",
			EntityType: "shows", Kind: KindRead, Operation: "list",
			Allowed: true, CrossTenant: true,
		},
		{
			ID: "01K2P", Timestamp: ts.Add(2 * time.Minute),
			ActorUserID: "u2", ActorRole: tenancy.RoleManager,
			HomeOrgID: "org_acme", OrgID: "org_acme", SchemaName: "t_acme",
			EntityType: "users", Kind: KindRead, Operation: "find",
			Allowed: false, DenialReason: "entity is shared, not tenant-scoped",
		},
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, exportFixture()); err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}

	var decoded []Entry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("exported JSON does not decode: %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("decoded %d entries, want 3", len(decoded))
	}
	if !decoded[1].CrossTenant {
		t.Error("cross_tenant flag lost in JSON export")
	}
}

func TestExportCEF(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportCEF(&buf, exportFixture(), "1.0.0"); err != nil {
		t.Fatalf("ExportCEF() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("exported %d CEF lines, want 3", len(lines))
	}

	for _, line := range lines {
		if !strings.HasPrefix(line, "CEF:0|Vallum|vallum|1.0.0|") {
			t.Errorf("malformed CEF header: %q", line)
		}
	}
	if !strings.Contains(lines[1], "|102|cross-tenant-access|") {
		t.Errorf("cross-tenant entry not classified: %q", lines[1])
	}
	if !strings.Contains(lines[2], "|101|tenant-access-denied|") {
		t.Errorf("denied entry not classified: %q", lines[2])
	}
	if !strings.Contains(lines[2], "outcome=denied") {
		t.Errorf("denied entry missing outcome: %q", lines[2])
	}
}

func TestCEFEscaping(t *testing.T) {
	e := Entry{
		ID:          "e1",
		Timestamp:   time.Now(),
		ActorUserID: "evil=user\nwith|pipes",
		OrgID:       "org_acme",
		Kind:        KindRead,
		Operation:   "find",
		Allowed:     true,
	}

	line := cefLine(&e, "1.0.0")
	if strings.Contains(line, "evil=user") {
		t.Errorf("unescaped equals sign in extension: %q", line)
	}
	if strings.Contains(line, "\n") {
		t.Errorf("raw newline in CEF line: %q", line)
	}
}
