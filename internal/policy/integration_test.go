// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

//go:build integration

package policy

import (
	"context"
	"database/sql"
	"testing"

	"github.com/vallum-project/vallum/internal/tenancy"
	"github.com/vallum-project/vallum/internal/testinfra"
)

// The container's default user is a superuser and bypasses row security,
// so the filtered reads run as a dedicated unprivileged role.
const (
	appRole     = "vallum_app"
	appPassword = "app-test"
)

func setupSharedTable(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	stmts := []string{
		`CREATE SCHEMA vallum_shared`,
		`CREATE TABLE vallum_shared.currencies (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			org_id     TEXT NOT NULL,
			data       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`INSERT INTO vallum_shared.currencies (org_id, data) VALUES
			('org_acme',   '{"code":"EUR"}'),
			('org_acme',   '{"code":"USD"}'),
			('org_globex', '{"code":"JPY"}')`,
		`CREATE ROLE ` + appRole + ` LOGIN PASSWORD '` + appPassword + `'`,
		`GRANT USAGE ON SCHEMA vallum_shared TO ` + appRole,
		`GRANT SELECT ON vallum_shared.currencies TO ` + appRole,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("setup %q error = %v", stmt, err)
		}
	}
}

func countVisible(t *testing.T, ctx context.Context, db *sql.DB, tc *tenancy.Context) int {
	t.Helper()
	tx, err := SessionScope(ctx, db, tc)
	if err != nil {
		t.Fatalf("SessionScope() error = %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM vallum_shared.currencies`).Scan(&n); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	return n
}

func TestRowPoliciesFilterSharedTable(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("NewPostgresContainer() error = %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	admin, err := pg.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = admin.Close() })

	setupSharedTable(t, ctx, admin)
	if err := Apply(ctx, admin, []SharedTable{
		{Schema: "vallum_shared", Name: "currencies", OrgColumn: "org_id"},
	}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	// Applying twice must succeed; policies are recreated.
	if err := Apply(ctx, admin, []SharedTable{
		{Schema: "vallum_shared", Name: "currencies", OrgColumn: "org_id"},
	}); err != nil {
		t.Fatalf("Apply() repeat error = %v", err)
	}

	app, err := sql.Open("pgx", pg.UserURL(appRole, appPassword))
	if err != nil {
		t.Fatalf("open app connection error = %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	resolver := tenancy.NewResolver(staticLookup{
		"org_acme":   "t_acme",
		"org_globex": "t_globex",
	})

	acme, err := resolver.Resolve(ctx,
		tenancy.Principal{UserID: "u1", Role: tenancy.RoleSeller, OrganizationID: "org_acme"}, "")
	if err != nil {
		t.Fatalf("Resolve(acme) error = %v", err)
	}
	if got := countVisible(t, ctx, app, acme); got != 2 {
		t.Errorf("acme sees %d rows, want 2", got)
	}

	globex, err := resolver.Resolve(ctx,
		tenancy.Principal{UserID: "u2", Role: tenancy.RoleSeller, OrganizationID: "org_globex"}, "")
	if err != nil {
		t.Fatalf("Resolve(globex) error = %v", err)
	}
	if got := countVisible(t, ctx, app, globex); got != 1 {
		t.Errorf("globex sees %d rows, want 1", got)
	}

	master, err := resolver.Resolve(ctx,
		tenancy.Principal{UserID: "u3", Role: tenancy.RoleMaster, OrganizationID: "org_acme"}, "")
	if err != nil {
		t.Fatalf("Resolve(master) error = %v", err)
	}
	if got := countVisible(t, ctx, app, master); got != 3 {
		t.Errorf("master sees %d rows, want 3", got)
	}

	// A session that asserts nothing sees nothing.
	var bare int
	if err := app.QueryRowContext(ctx,
		`SELECT count(*) FROM vallum_shared.currencies`).Scan(&bare); err != nil {
		t.Fatalf("unscoped count error = %v", err)
	}
	if bare != 0 {
		t.Errorf("unscoped session sees %d rows, want 0", bare)
	}
}
