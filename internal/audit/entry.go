// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package audit

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vallum-project/vallum/internal/tenancy"
)

// OperationKind classifies an access as reading or writing tenant data.
// The kind selects the recording path: writes are audited durably before
// the store is touched, reads asynchronously.
type OperationKind string

const (
	KindRead  OperationKind = "read"
	KindWrite OperationKind = "write"
)

// Entry is one append-only audit record of a mediated access decision.
// Entries are write-once: the application exposes no update or delete over
// them; retention is an operational concern outside this layer.
type Entry struct {
	// ID is a ULID, so entries sort by creation time and replay after a
	// store outage cannot duplicate (Save is idempotent on ID).
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// ActorUserID and ActorRole identify the acting principal.
	ActorUserID string       `json:"actor_user_id"`
	ActorRole   tenancy.Role `json:"actor_role"`

	// HomeOrgID is the principal's own organization; OrgID is the
	// organization whose schema the access touched. They differ only for
	// master cross-tenant access.
	HomeOrgID string `json:"home_org_id"`
	OrgID     string `json:"org_id"`

	// SchemaName is the physical partition addressed.
	SchemaName string `json:"schema_name"`

	// EntityType names the entity the operation addressed; Operation is the
	// concrete verb (find, list, create, update, delete).
	EntityType string        `json:"entity_type"`
	Kind       OperationKind `json:"kind"`
	Operation  string        `json:"operation"`

	// Allowed records the decision; DenialReason is set when false.
	Allowed      bool   `json:"allowed"`
	DenialReason string `json:"denial_reason,omitempty"`

	// CrossTenant marks master-role access outside the home organization.
	CrossTenant bool `json:"cross_tenant"`

	RequestID string `json:"request_id,omitempty"`
}

// NewEntry stamps id and timestamp on a partially filled entry. Existing
// values are preserved so replayed or imported entries keep their identity.
func NewEntry(e Entry) Entry {
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}

// ForContext builds the common fields of an entry from a resolved tenant
// context. The scoped handle fills in entity, kind, operation, and outcome.
func ForContext(tc *tenancy.Context, requestID string) Entry {
	return Entry{
		ActorUserID: tc.UserID(),
		ActorRole:   tc.Role(),
		HomeOrgID:   tc.HomeOrganizationID(),
		OrgID:       tc.OrganizationID(),
		SchemaName:  tc.SchemaName(),
		CrossTenant: tc.CrossTenant(),
		RequestID:   requestID,
	}
}
