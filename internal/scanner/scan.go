// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package scanner

import (
	"fmt"
	"sort"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/packages"
)

// Violation is one flagged call site.
type Violation struct {
	// Position is the file:line:column of the call site.
	Position string `json:"position"`

	// Analyzer names the rule that fired.
	Analyzer string `json:"analyzer"`

	// Message explains the violation and the sanctioned alternative.
	Message string `json:"message"`
}

// Config selects what the scanner looks for.
type Config struct {
	// Dir is the working directory packages are loaded relative to.
	Dir string

	// Patterns are package patterns in go/packages syntax ("./...").
	Patterns []string

	// TenantEntities are the tenant-owned entity/table names whose raw
	// access is a violation.
	TenantEntities []string

	// ExemptPackages are package path prefixes allowed to hold raw
	// clients, which is the isolation layer itself.
	ExemptPackages []string
}

// Scan loads the packages and runs both analyzers, returning every
// violation sorted by position. Packages that fail to load are an error;
// packages that fail to type-check are scanned on a best-effort basis, in
// keeping with the scanner's advisory role.
func Scan(cfg Config) ([]Violation, error) {
	loadCfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
			packages.NeedTypes | packages.NeedTypesInfo | packages.NeedDeps |
			packages.NeedImports,
		Dir: cfg.Dir,
	}
	pkgs, err := packages.Load(loadCfg, cfg.Patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	analyzers := []*analysis.Analyzer{
		NewUnscopedAccess(cfg.TenantEntities, cfg.ExemptPackages),
		NewSchemaConcat(cfg.ExemptPackages),
	}

	var violations []Violation
	for _, pkg := range pkgs {
		if pkg.TypesInfo == nil || pkg.Types == nil {
			continue
		}
		for _, a := range analyzers {
			pass := &analysis.Pass{
				Analyzer:  a,
				Fset:      pkg.Fset,
				Files:     pkg.Syntax,
				Pkg:       pkg.Types,
				TypesInfo: pkg.TypesInfo,
				ResultOf:  map[*analysis.Analyzer]interface{}{},
				Report: func(d analysis.Diagnostic) {
					violations = append(violations, Violation{
						Position: pkg.Fset.Position(d.Pos).String(),
						Analyzer: a.Name,
						Message:  d.Message,
					})
				},
			}
			if _, err := a.Run(pass); err != nil {
				return nil, fmt.Errorf("run %s on %s: %w", a.Name, pkg.PkgPath, err)
			}
		}
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].Position != violations[j].Position {
			return violations[i].Position < violations[j].Position
		}
		return violations[i].Analyzer < violations[j].Analyzer
	})
	return violations, nil
}
