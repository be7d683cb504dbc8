// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package scanner

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestScanReportsBothAnalyzersSorted(t *testing.T) {
	dir, err := filepath.Abs(filepath.Join("testdata", "rawmod"))
	if err != nil {
		t.Fatal(err)
	}

	violations, err := Scan(Config{
		Dir:            dir,
		Patterns:       []string{"./..."},
		TenantEntities: []string{"campaigns", "listings"},
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(violations) != 2 {
		t.Fatalf("violations = %d, want 2: %+v", len(violations), violations)
	}

	byAnalyzer := make(map[string]int)
	for i, v := range violations {
		byAnalyzer[v.Analyzer]++
		if v.Position == "" || v.Message == "" {
			t.Errorf("violation %d missing position or message: %+v", i, v)
		}
		if !strings.Contains(v.Position, "main.go") {
			t.Errorf("violation %d position %q should be in main.go", i, v.Position)
		}
	}
	if byAnalyzer["unscopedaccess"] != 1 || byAnalyzer["schemaconcat"] != 1 {
		t.Fatalf("analyzer counts = %v, want one each", byAnalyzer)
	}

	for i := 1; i < len(violations); i++ {
		if violations[i-1].Position > violations[i].Position {
			t.Fatalf("violations not sorted by position: %q after %q",
				violations[i].Position, violations[i-1].Position)
		}
	}
}

func TestScanExemptPackagesSuppressEverything(t *testing.T) {
	dir, err := filepath.Abs(filepath.Join("testdata", "rawmod"))
	if err != nil {
		t.Fatal(err)
	}

	violations, err := Scan(Config{
		Dir:            dir,
		Patterns:       []string{"./..."},
		TenantEntities: []string{"campaigns", "listings"},
		ExemptPackages: []string{"rawmod"},
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %d, want 0: %+v", len(violations), violations)
	}
}
