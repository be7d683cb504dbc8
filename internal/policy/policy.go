// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package policy

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"

	"github.com/vallum-project/vallum/internal/logging"
	"github.com/vallum-project/vallum/internal/metrics"
	"github.com/vallum-project/vallum/internal/tenancy"
)

// Session settings the policies evaluate. Asserted per transaction via
// set_config with is_local=true.
const (
	orgSetting    = "vallum.org_id"
	masterSetting = "vallum.master"
)

// SharedTable describes one intentionally shared table and the column
// holding the owning organization id.
type SharedTable struct {
	Schema    string `json:"schema"`
	Name      string `json:"name"`
	OrgColumn string `json:"org_column"`
}

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

func (t SharedTable) validate() error {
	for _, part := range []string{t.Schema, t.Name, t.OrgColumn} {
		if !identPattern.MatchString(part) {
			return fmt.Errorf("invalid shared table identifier %q", part)
		}
	}
	return nil
}

// Apply enables and forces row-level security on every shared table and
// installs the tenant-filter policy. Idempotent: existing policies are
// dropped and recreated, so configuration changes take effect on restart.
//
// The policy admits a row when its organization column equals the asserted
// session organization, or when the session explicitly operates in master
// mode. FORCE makes the filter apply even to the table owner.
func Apply(ctx context.Context, db *sql.DB, tables []SharedTable) error {
	for _, t := range tables {
		if err := t.validate(); err != nil {
			metrics.PolicyApplicationsTotal.WithLabelValues("error").Inc()
			return err
		}
		qualified := pgx.Identifier{t.Schema, t.Name}.Sanitize()
		policyName := pgx.Identifier{"vallum_tenant_filter_" + t.Name}.Sanitize()
		orgColumn := pgx.Identifier{t.OrgColumn}.Sanitize()

		stmts := []string{
			fmt.Sprintf(`ALTER TABLE %s ENABLE ROW LEVEL SECURITY`, qualified),
			fmt.Sprintf(`ALTER TABLE %s FORCE ROW LEVEL SECURITY`, qualified),
			fmt.Sprintf(`DROP POLICY IF EXISTS %s ON %s`, policyName, qualified),
			fmt.Sprintf(`CREATE POLICY %s ON %s
				USING (
					%s = current_setting('%s', true)
					OR current_setting('%s', true) = 'on'
				)`, policyName, qualified, orgColumn, orgSetting, masterSetting),
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				metrics.PolicyApplicationsTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("apply row policy to %s: %w", qualified, err)
			}
		}

		metrics.PolicyApplicationsTotal.WithLabelValues("ok").Inc()
		logging.Info().
			Str("table", t.Schema+"."+t.Name).
			Str("org_column", t.OrgColumn).
			Msg("Row-level security policy applied")
	}
	return nil
}

// ScopedTx is a transaction whose session asserts one organization. All
// statements inside it are subject to the row policies under that identity.
type ScopedTx struct {
	*sql.Tx
}

// SessionScope opens a transaction and asserts the context's organization
// (and master mode, when applicable) for its duration. set_config with
// is_local=true scopes the assertion to the transaction, so the pooled
// connection returns clean.
func SessionScope(ctx context.Context, db *sql.DB, tc *tenancy.Context) (*ScopedTx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin scoped session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`SELECT set_config($1, $2, true)`, orgSetting, tc.OrganizationID()); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("assert session organization: %w", err)
	}
	if tc.Role().IsMaster() {
		if _, err := tx.ExecContext(ctx,
			`SELECT set_config($1, 'on', true)`, masterSetting); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("assert session master mode: %w", err)
		}
	}
	return &ScopedTx{Tx: tx}, nil
}
