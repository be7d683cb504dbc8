// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/vallum-project/vallum/internal/tenancy"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Route-group objects the policy speaks about.
const (
	ObjectEntities = "entities"
	ObjectShared   = "shared"
	ObjectAudit    = "audit"
	ObjectExport   = "export"
	ObjectTail     = "tail"
	ObjectOrgs     = "orgs"
	ObjectCatalog  = "catalog"
)

// Actions the policy speaks about.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// Config holds enforcer configuration.
type Config struct {
	// PolicyPath optionally overrides the embedded policy with a CSV file.
	PolicyPath string
}

// Enforcer evaluates role -> route-group permissions.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds the enforcer from the embedded model, loading either
// the embedded default policy or the operator-supplied file.
func NewEnforcer(cfg Config) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("load authorization model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" {
		if _, err := os.Stat(cfg.PolicyPath); err != nil {
			return nil, fmt.Errorf("policy file %s: %w", cfg.PolicyPath, err)
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
		if err != nil {
			return nil, fmt.Errorf("create enforcer: %w", err)
		}
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err != nil {
			return nil, fmt.Errorf("create enforcer: %w", err)
		}
		if err := loadEmbeddedPolicy(enforcer, embeddedPolicy); err != nil {
			return nil, err
		}
	}

	return &Enforcer{enforcer: enforcer}, nil
}

// loadEmbeddedPolicy parses the embedded policy CSV into the enforcer.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch parts[0] {
		case "p":
			if len(parts) >= 4 {
				if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
					return fmt.Errorf("add policy %v: %w", parts[1:], err)
				}
			}
		case "g":
			if len(parts) >= 3 {
				if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
					return fmt.Errorf("add grouping policy %v: %w", parts[1:], err)
				}
			}
		}
	}
	return nil
}

// Allowed reports whether the role may perform the action on the route
// group. Unknown roles and unknown objects deny.
func (e *Enforcer) Allowed(role tenancy.Role, object, action string) (bool, error) {
	ok, err := e.enforcer.Enforce(string(role), object, action)
	if err != nil {
		return false, fmt.Errorf("enforce %s %s %s: %w", role, object, action, err)
	}
	return ok, nil
}
