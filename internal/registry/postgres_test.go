// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vallum-project/vallum/internal/tenancy"
)

func newMockRegistry(t *testing.T) (*PostgresRegistry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRegistry(db), mock
}

func TestPostgresSchemaFor(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectQuery(`SELECT schema_name FROM vallum_admin\.organization_schemas`).
		WithArgs("org_acme").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("t_acme"))

	schema, err := reg.SchemaFor(context.Background(), "org_acme")
	if err != nil {
		t.Fatalf("SchemaFor() error = %v", err)
	}
	if schema != "t_acme" {
		t.Errorf("SchemaFor() = %q, want t_acme", schema)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresSchemaForUnknownOrganization(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectQuery(`SELECT schema_name FROM vallum_admin\.organization_schemas`).
		WithArgs("org_ghost").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}))

	_, err := reg.SchemaFor(context.Background(), "org_ghost")
	if !errors.Is(err, tenancy.ErrUnknownOrganization) {
		t.Fatalf("SchemaFor() error = %v, want ErrUnknownOrganization", err)
	}
}

func TestPostgresRegisterCreates(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectExec(`INSERT INTO vallum_admin\.organization_schemas`).
		WithArgs("org_acme", "t_acme").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := reg.Register(context.Background(), "org_acme", "t_acme"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRegisterIdempotent(t *testing.T) {
	reg, mock := newMockRegistry(t)

	// Conflict path: insert affects zero rows, follow-up read finds the
	// identical mapping already in place.
	mock.ExpectExec(`INSERT INTO vallum_admin\.organization_schemas`).
		WithArgs("org_acme", "t_acme").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT schema_name FROM vallum_admin\.organization_schemas`).
		WithArgs("org_acme").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("t_acme"))

	if err := reg.Register(context.Background(), "org_acme", "t_acme"); err != nil {
		t.Fatalf("idempotent Register() error = %v, want nil", err)
	}
}

func TestPostgresRegisterConflict(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectExec(`INSERT INTO vallum_admin\.organization_schemas`).
		WithArgs("org_acme", "t_other").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT schema_name FROM vallum_admin\.organization_schemas`).
		WithArgs("org_acme").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("t_acme"))

	err := reg.Register(context.Background(), "org_acme", "t_other")
	if !errors.Is(err, ErrSchemaAlreadyExists) {
		t.Fatalf("Register() error = %v, want ErrSchemaAlreadyExists", err)
	}
}

func TestPostgresRegisterRejectsBadNames(t *testing.T) {
	reg, _ := newMockRegistry(t)

	// Validation failures never reach the store; no expectations set.
	if err := reg.Register(context.Background(), "org_acme", `bad"schema`); err == nil {
		t.Error("Register() with malformed schema name succeeded, want error")
	}
	if err := reg.Register(context.Background(), "org with spaces", "t_ok"); err == nil {
		t.Error("Register() with malformed org id succeeded, want error")
	}
}

func TestPostgresExists(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectQuery(`SELECT 1 FROM vallum_admin\.organization_schemas`).
		WithArgs("org_acme").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := reg.Exists(context.Background(), "org_acme")
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v, want true, nil", ok, err)
	}
}

func TestPostgresDeregister(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectExec(`DELETE FROM vallum_admin\.organization_schemas`).
		WithArgs("org_acme").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := reg.Deregister(context.Background(), "org_acme"); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}
}
