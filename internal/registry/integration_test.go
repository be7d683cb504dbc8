// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

//go:build integration

package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/vallum-project/vallum/internal/tenancy"
	"github.com/vallum-project/vallum/internal/testinfra"
)

func TestPostgresRegistryLifecycle(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("NewPostgresContainer() error = %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	db, err := pg.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	reg := NewPostgresRegistry(db)
	if err := reg.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// Second migration must be a no-op.
	if err := reg.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() repeat error = %v", err)
	}

	if err := reg.Register(ctx, "org_acme", "t_acme"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	// Identical registration is idempotent; conflicting one is rejected.
	if err := reg.Register(ctx, "org_acme", "t_acme"); err != nil {
		t.Errorf("idempotent Register() error = %v", err)
	}
	if err := reg.Register(ctx, "org_acme", "t_other"); !errors.Is(err, ErrSchemaAlreadyExists) {
		t.Errorf("conflicting Register() error = %v, want ErrSchemaAlreadyExists", err)
	}

	schema, err := reg.SchemaFor(ctx, "org_acme")
	if err != nil || schema != "t_acme" {
		t.Errorf("SchemaFor() = %q, %v", schema, err)
	}
	if _, err := reg.SchemaFor(ctx, "org_ghost"); !errors.Is(err, tenancy.ErrUnknownOrganization) {
		t.Errorf("SchemaFor(unknown) error = %v, want ErrUnknownOrganization", err)
	}

	exists, err := reg.Exists(ctx, "org_acme")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v", exists, err)
	}

	mappings, err := reg.List(ctx)
	if err != nil || len(mappings) != 1 {
		t.Errorf("List() = %v, %v", mappings, err)
	}

	if err := reg.Deregister(ctx, "org_acme"); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}
	if _, err := reg.SchemaFor(ctx, "org_acme"); !errors.Is(err, tenancy.ErrUnknownOrganization) {
		t.Errorf("SchemaFor after Deregister error = %v", err)
	}
}

func TestProvisionerCreatesAndDropsSchemas(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("NewPostgresContainer() error = %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	db, err := pg.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	reg := NewPostgresRegistry(db)
	if err := reg.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	prov := NewProvisioner(reg, db, []string{"campaigns", "listings"})
	schema, err := prov.Provision(ctx, "org_acme")
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_schema = $1`,
		schema).Scan(&count); err != nil {
		t.Fatalf("table count query error = %v", err)
	}
	if count != 2 {
		t.Errorf("tables in %s = %d, want 2", schema, count)
	}

	// Re-provisioning returns the same schema without error.
	again, err := prov.Provision(ctx, "org_acme")
	if err != nil || again != schema {
		t.Errorf("repeat Provision() = %q, %v; want %q", again, err, schema)
	}

	if err := prov.Offboard(ctx, "org_acme"); err != nil {
		t.Fatalf("Offboard() error = %v", err)
	}
	var schemaExists bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		schema).Scan(&schemaExists); err != nil {
		t.Fatalf("schema existence query error = %v", err)
	}
	if schemaExists {
		t.Errorf("schema %s still present after offboard", schema)
	}
	// Offboarding an unknown org is a no-op.
	if err := prov.Offboard(ctx, "org_acme"); err != nil {
		t.Errorf("repeat Offboard() error = %v", err)
	}
}
