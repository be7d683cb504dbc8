// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package policy

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vallum-project/vallum/internal/tenancy"
)

type staticLookup map[string]string

func (l staticLookup) SchemaFor(_ context.Context, orgID string) (string, error) {
	schema, ok := l[orgID]
	if !ok {
		return "", tenancy.ErrUnknownOrganization
	}
	return schema, nil
}

func resolveContext(t *testing.T, role tenancy.Role, homeOrg, requestedOrg string) *tenancy.Context {
	t.Helper()
	resolver := tenancy.NewResolver(staticLookup{
		"org_acme":   "t_acme",
		"org_master": "t_master",
	})
	tc, err := resolver.Resolve(context.Background(),
		tenancy.Principal{UserID: "u1", Role: role, OrganizationID: homeOrg}, requestedOrg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return tc
}

func TestSessionScopeAssertsOrganization(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT set_config\(\$1, \$2, true\)`).
		WithArgs("vallum.org_id", "org_acme").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tc := resolveContext(t, tenancy.RoleSeller, "org_acme", "")
	tx, err := SessionScope(context.Background(), db, tc)
	if err != nil {
		t.Fatalf("SessionScope() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSessionScopeMasterModeOnlyForMaster(t *testing.T) {
	tests := []struct {
		name       string
		role       tenancy.Role
		homeOrg    string
		requested  string
		wantMaster bool
	}{
		{"seller never asserts master", tenancy.RoleSeller, "org_acme", "", false},
		{"master asserts master mode", tenancy.RoleMaster, "org_master", "org_acme", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
			if err != nil {
				t.Fatalf("sqlmock.New() error = %v", err)
			}
			defer func() { _ = db.Close() }()

			mock.ExpectBegin()
			mock.ExpectExec(`SELECT set_config`).
				WithArgs("vallum.org_id", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 0))
			if tt.wantMaster {
				mock.ExpectExec(`SELECT set_config`).
					WithArgs("vallum.master").
					WillReturnResult(sqlmock.NewResult(0, 0))
			}
			mock.ExpectRollback()

			tc := resolveContext(t, tt.role, tt.homeOrg, tt.requested)
			tx, err := SessionScope(context.Background(), db, tc)
			if err != nil {
				t.Fatalf("SessionScope() error = %v", err)
			}
			_ = tx.Rollback()
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}
