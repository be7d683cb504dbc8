// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package scanner

import (
	"go/ast"
	"go/constant"
	"go/types"
	"regexp"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// queryMethods are the raw client entry points the analyzer watches, with
// the index of the SQL string argument.
var queryMethods = map[string]int{
	"Query":           0,
	"QueryRow":        0,
	"Exec":            0,
	"QueryContext":    1,
	"QueryRowContext": 1,
	"ExecContext":     1,
	"Prepare":         0,
	"PrepareContext":  1,
}

// rawClientPackages are the import paths whose query methods count as
// unscoped access when aimed at tenant-owned tables.
var rawClientPackages = []string{
	"database/sql",
	"github.com/jackc/pgx",
}

// NewUnscopedAccess builds the analyzer for a given entity catalog and a
// set of exempt package path prefixes (the isolation layer's own packages,
// which legitimately hold raw clients).
func NewUnscopedAccess(entities, exemptPrefixes []string) *analysis.Analyzer {
	matchers := make([]*regexp.Regexp, 0, len(entities))
	for _, e := range entities {
		// Word-bounded so "users" does not match "users_archive".
		matchers = append(matchers, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(e)+`\b`))
	}

	return &analysis.Analyzer{
		Name: "unscopedaccess",
		Doc:  "reports raw store call sites touching tenant-owned entity tables outside the scoped data handle",
		Run: func(pass *analysis.Pass) (interface{}, error) {
			if exempt(pass.Pkg.Path(), exemptPrefixes) {
				return nil, nil
			}
			for _, file := range pass.Files {
				ast.Inspect(file, func(n ast.Node) bool {
					call, ok := n.(*ast.CallExpr)
					if !ok {
						return true
					}
					checkUnscopedCall(pass, call, matchers)
					return true
				})
			}
			return nil, nil
		},
	}
}

func checkUnscopedCall(pass *analysis.Pass, call *ast.CallExpr, matchers []*regexp.Regexp) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return
	}
	argIdx, watched := queryMethods[sel.Sel.Name]
	if !watched || len(call.Args) <= argIdx {
		return
	}
	if !isRawClientReceiver(pass.TypesInfo, sel.X) {
		return
	}

	sqlText, ok := constantString(pass.TypesInfo, call.Args[argIdx])
	if !ok {
		// Non-constant SQL is SchemaConcat's territory.
		return
	}
	for _, m := range matchers {
		if m.MatchString(sqlText) {
			pass.Reportf(call.Pos(),
				"tenant-owned entity accessed through a raw %s client; route this through the scoped data handle",
				sel.Sel.Name)
			return
		}
	}
}

// isRawClientReceiver reports whether the expression's type comes from one
// of the raw client packages.
func isRawClientReceiver(info *types.Info, expr ast.Expr) bool {
	tv, ok := info.Types[expr]
	if !ok || tv.Type == nil {
		return false
	}
	t := tv.Type
	if ptr, isPtr := t.(*types.Pointer); isPtr {
		t = ptr.Elem()
	}
	named, isNamed := t.(*types.Named)
	if !isNamed {
		return false
	}
	pkg := named.Obj().Pkg()
	if pkg == nil {
		return false
	}
	for _, prefix := range rawClientPackages {
		if pkg.Path() == prefix || strings.HasPrefix(pkg.Path(), prefix+"/") {
			return true
		}
	}
	return false
}

// constantString evaluates the expression to a constant string when the
// type checker can.
func constantString(info *types.Info, expr ast.Expr) (string, bool) {
	tv, ok := info.Types[expr]
	if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
		return "", false
	}
	return constant.StringVal(tv.Value), true
}

func exempt(pkgPath string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if pkgPath == prefix || strings.HasPrefix(pkgPath, prefix+"/") {
			return true
		}
	}
	return false
}
