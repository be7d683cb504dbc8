// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package scanner

import (
	"go/ast"
	"go/token"
	"go/types"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// sprintfFunctions are formatting entry points that can splice a schema
// identifier into SQL text.
var sprintfFunctions = map[string]bool{
	"Sprintf": true,
	"Sprint":  true,
	"Appendf": true,
}

// qualVerb matches a format verb adjacent to an identifier qualifier dot,
// i.e. an interpolated schema or table name: "%s.campaigns", "shows.%s".
var qualVerb = regexp.MustCompile(`%[#+\-\d.]*[sqv]\s*\.|\.\s*%[#+\-\d.]*[sqv]`)

// sqlShaped is a cheap test that a string literal is SQL at all, so the
// analyzer does not fire on log messages containing dots.
var sqlShaped = regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|FROM|INTO|CREATE|DROP|ALTER)\b`)

// NewSchemaConcat builds the analyzer that reports schema-qualified SQL
// assembled by string interpolation instead of a registry-resolved,
// sanitized identifier. exemptPrefixes lists package paths allowed to
// build identifiers (the isolation layer itself, which sanitizes through
// pgx.Identifier).
func NewSchemaConcat(exemptPrefixes []string) *analysis.Analyzer {
	return &analysis.Analyzer{
		Name: "schemaconcat",
		Doc:  "reports schema-qualified SQL built by string concatenation or fmt.Sprintf interpolation",
		Run: func(pass *analysis.Pass) (interface{}, error) {
			if exempt(pass.Pkg.Path(), exemptPrefixes) {
				return nil, nil
			}
			for _, file := range pass.Files {
				ast.Inspect(file, func(n ast.Node) bool {
					switch node := n.(type) {
					case *ast.CallExpr:
						checkSprintf(pass, node)
					case *ast.BinaryExpr:
						checkConcat(pass, node)
					}
					return true
				})
			}
			return nil, nil
		},
	}
}

// checkSprintf flags fmt.Sprintf-style calls whose format string is SQL
// with a verb in identifier-qualifier position.
func checkSprintf(pass *analysis.Pass, call *ast.CallExpr) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || !sprintfFunctions[sel.Sel.Name] || len(call.Args) == 0 {
		return
	}
	if !isFmtPackage(pass.TypesInfo, sel.X) {
		return
	}
	format, ok := constantString(pass.TypesInfo, call.Args[0])
	if !ok {
		return
	}
	if sqlShaped.MatchString(format) && qualVerb.MatchString(format) {
		pass.Reportf(call.Pos(),
			"schema-qualified SQL built with fmt.%s; resolve the identifier through the schema registry and sanitize it",
			sel.Sel.Name)
	}
}

// checkConcat flags `"... FROM " + schema + "...": a string literal that is
// SQL, concatenated with a non-constant operand in qualifier position.
func checkConcat(pass *analysis.Pass, bin *ast.BinaryExpr) {
	if bin.Op != token.ADD {
		return
	}

	lit, litIsLeft := literalSide(bin)
	if lit == nil {
		return
	}
	text, err := strconv.Unquote(lit.Value)
	if err != nil || !sqlShaped.MatchString(text) {
		return
	}

	// The non-literal operand sits where an identifier would: the literal
	// either ends just before it with whitespace/keyword or the joined
	// side starts with a dot.
	other := bin.Y
	if !litIsLeft {
		other = bin.X
	}
	if _, isConst := constantString(pass.TypesInfo, other); isConst {
		return
	}

	if litIsLeft && (strings.HasSuffix(text, " ") || strings.HasSuffix(text, ".")) ||
		!litIsLeft && strings.HasPrefix(text, ".") {
		pass.Reportf(bin.Pos(),
			"schema-qualified SQL built by string concatenation; resolve the identifier through the schema registry and sanitize it")
	}
}

// literalSide returns the basic string literal operand, if exactly one
// side is a literal.
func literalSide(bin *ast.BinaryExpr) (*ast.BasicLit, bool) {
	if lit, ok := bin.X.(*ast.BasicLit); ok && lit.Kind == token.STRING {
		return lit, true
	}
	if lit, ok := bin.Y.(*ast.BasicLit); ok && lit.Kind == token.STRING {
		return lit, false
	}
	return nil, false
}

func isFmtPackage(info *types.Info, expr ast.Expr) bool {
	ident, ok := expr.(*ast.Ident)
	if !ok {
		return false
	}
	pkgName, ok := info.Uses[ident].(*types.PkgName)
	return ok && pkgName.Imported().Path() == "fmt"
}
