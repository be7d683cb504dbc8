// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package registry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrSchemaAlreadyExists means a registration conflicts with an existing
// mapping: the organization is already mapped to a different schema, or the
// schema name is already claimed by a different organization. Registering
// the exact same (org, schema) pair again is idempotent and succeeds.
var ErrSchemaAlreadyExists = errors.New("conflicting schema mapping already exists")

// Mapping is one durable organization-to-schema record.
type Mapping struct {
	OrgID      string    `json:"org_id"`
	SchemaName string    `json:"schema_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Registry is the authoritative organization-to-schema mapping store.
//
// SchemaFor returns tenancy.ErrUnknownOrganization when no mapping exists.
// Register is idempotent for identical arguments and returns
// ErrSchemaAlreadyExists on any conflicting pair. Deregister is the
// offboarding hook; it removes the mapping only (dropping the physical
// schema is the provisioner's job).
type Registry interface {
	SchemaFor(ctx context.Context, orgID string) (string, error)
	Register(ctx context.Context, orgID, schemaName string) error
	Exists(ctx context.Context, orgID string) (bool, error)
	Deregister(ctx context.Context, orgID string) error
	List(ctx context.Context) ([]Mapping, error)
}

// schemaNamePattern constrains schema names to safe lowercase identifiers
// within Postgres' 63-byte identifier limit.
var schemaNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// orgIDPattern constrains organization ids to printable identifier-ish
// strings. Organization ids come from the authentication subsystem, but the
// registry still refuses anything that could not round-trip cleanly.
var orgIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,127}$`)

// ValidateSchemaName rejects schema names outside the allowed identifier
// shape. Called on every registration, so a malformed name can never enter
// the mapping table in the first place.
func ValidateSchemaName(name string) error {
	if !schemaNamePattern.MatchString(name) {
		return fmt.Errorf("invalid schema name %q: must match %s", name, schemaNamePattern.String())
	}
	return nil
}

// ValidateOrgID rejects organization ids the registry will not store.
func ValidateOrgID(orgID string) error {
	if !orgIDPattern.MatchString(orgID) {
		return fmt.Errorf("invalid organization id %q", orgID)
	}
	return nil
}

// MintSchemaName produces a fresh schema name for a new tenant. The name is
// a fixed prefix plus a lowercased ULID, so it is unique, sortable by
// provisioning time, and carries no information derived from the
// organization id. Callers must still Register the result; minting alone
// reserves nothing.
func MintSchemaName() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	return "tenant_" + strings.ToLower(id.String())
}
