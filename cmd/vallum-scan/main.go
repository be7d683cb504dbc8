// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package main is the static isolation scanner CLI.
//
// vallum-scan analyzes a Go codebase for statements that bypass the
// mediation layer: raw SQL against tenant-owned tables and schema-qualified
// identifiers spliced together from strings. It is meant to run in CI next
// to go vet:
//
//	vallum-scan -dir . -entities campaigns,listings
//
// The exit code is 0 for a clean tree, 1 when violations are found, and 2
// when the analysis itself fails.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/vallum-project/vallum/internal/scanner"
)

func main() {
	var (
		dir      = flag.String("dir", ".", "directory of the module to scan")
		patterns = flag.String("patterns", "./...", "comma-separated package patterns")
		entities = flag.String("entities", "", "comma-separated tenant entity table names")
		exempt   = flag.String("exempt", "", "comma-separated package path prefixes to skip")
	)
	flag.Parse()

	if *entities == "" {
		fmt.Fprintln(os.Stderr, "vallum-scan: -entities is required (the tenant tables to guard)")
		os.Exit(2)
	}

	violations, err := scanner.Scan(scanner.Config{
		Dir:            *dir,
		Patterns:       splitList(*patterns),
		TenantEntities: splitList(*entities),
		ExemptPackages: splitList(*exempt),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "vallum-scan: %v\n", err)
		os.Exit(2)
	}

	for _, v := range violations {
		fmt.Printf("%s: %s: %s\n", v.Position, v.Analyzer, v.Message)
	}
	if len(violations) > 0 {
		fmt.Fprintf(os.Stderr, "vallum-scan: %d violation(s) found\n", len(violations))
		os.Exit(1)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
