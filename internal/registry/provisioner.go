// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vallum-project/vallum/internal/logging"
)

// Provisioner drives tenant onboarding and offboarding: it mints a schema
// name, records the mapping, and creates or drops the physical partition.
// It is the only component that issues schema DDL; the mediation path never
// does.
type Provisioner struct {
	registry Registry
	db       *sql.DB
	entities []string // tenant-owned entity tables created per schema
}

// NewProvisioner creates a provisioner. entities is the catalog of
// tenant-owned entity names; each gets one uniform table per tenant schema.
func NewProvisioner(reg Registry, db *sql.DB, entities []string) *Provisioner {
	return &Provisioner{registry: reg, db: db, entities: entities}
}

// Provision onboards an organization: mints a fresh schema name (never
// derived from the org id), registers the mapping, and creates the schema
// plus one table per tenant-owned entity. Returns the schema name.
//
// Registration happens before DDL so a lost race surfaces as
// ErrSchemaAlreadyExists with no stray schema left behind; the DDL itself
// is idempotent so a crash between the two steps is repaired by retrying.
func (p *Provisioner) Provision(ctx context.Context, orgID string) (string, error) {
	if existing, err := p.registry.SchemaFor(ctx, orgID); err == nil {
		// Already provisioned; make sure the physical side exists and
		// return the mapped name.
		if err := p.createSchema(ctx, existing); err != nil {
			return "", err
		}
		return existing, nil
	}

	schema := MintSchemaName()
	if err := p.registry.Register(ctx, orgID, schema); err != nil {
		return "", fmt.Errorf("provision %s: %w", orgID, err)
	}
	if err := p.createSchema(ctx, schema); err != nil {
		return "", fmt.Errorf("provision %s: %w", orgID, err)
	}

	logging.Ctx(ctx).Info().
		Str("org", orgID).
		Str("schema", schema).
		Msg("Tenant provisioned")
	return schema, nil
}

// Offboard removes an organization: drops the physical schema and then the
// mapping. Unknown organizations are a no-op so retries are safe.
func (p *Provisioner) Offboard(ctx context.Context, orgID string) error {
	schema, err := p.registry.SchemaFor(ctx, orgID)
	if err != nil {
		// No mapping means nothing to drop.
		return p.registry.Deregister(ctx, orgID)
	}

	drop := fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, pgx.Identifier{schema}.Sanitize())
	if _, err := p.db.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("offboard %s: drop schema: %w", orgID, err)
	}
	if err := p.registry.Deregister(ctx, orgID); err != nil {
		return fmt.Errorf("offboard %s: %w", orgID, err)
	}

	logging.Ctx(ctx).Info().
		Str("org", orgID).
		Str("schema", schema).
		Msg("Tenant offboarded")
	return nil
}

// createSchema creates the schema and its entity tables. All identifiers
// pass through pgx.Identifier; nothing here is string-interpolated from
// request input (schema names come from MintSchemaName or the registry).
func (p *Provisioner) createSchema(ctx context.Context, schema string) error {
	if err := ValidateSchemaName(schema); err != nil {
		return err
	}

	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{schema}.Sanitize()),
	}
	for _, entity := range p.entities {
		table := pgx.Identifier{schema, entity}.Sanitize()
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         UUID PRIMARY KEY,
			data       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, table))
	}

	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema %s: %w", schema, err)
		}
	}
	return nil
}
