// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package audit

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

// ExportJSON writes entries as a JSON array.
func ExportJSON(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("export audit entries: %w", err)
	}
	return nil
}

// ExportCEF writes entries in Common Event Format for SIEM ingestion, one
// event per line.
//
// Header: CEF:Version|Device Vendor|Device Product|Device Version|
// Signature ID|Name|Severity|Extension
func ExportCEF(w io.Writer, entries []Entry, version string) error {
	for i := range entries {
		if _, err := io.WriteString(w, cefLine(&entries[i], version)+"\n"); err != nil {
			return fmt.Errorf("export audit entries: %w", err)
		}
	}
	return nil
}

func cefLine(e *Entry, version string) string {
	sigID, name, severity := "100", "tenant-access-allowed", 3
	switch {
	case !e.Allowed:
		sigID, name, severity = "101", "tenant-access-denied", 7
	case e.CrossTenant:
		sigID, name, severity = "102", "cross-tenant-access", 5
	}

	ext := strings.Join([]string{
		"end=" + fmt.Sprint(e.Timestamp.UnixMilli()),
		"suser=" + cefEscapeExt(e.ActorUserID),
		"suid=" + cefEscapeExt(string(e.ActorRole)),
		"sourceServiceName=" + cefEscapeExt(e.HomeOrgID),
		"destinationServiceName=" + cefEscapeExt(e.OrgID),
		"cs1Label=schema cs1=" + cefEscapeExt(e.SchemaName),
		"cs2Label=entity cs2=" + cefEscapeExt(e.EntityType),
		"act=" + cefEscapeExt(e.Operation),
		"cs3Label=kind cs3=" + cefEscapeExt(string(e.Kind)),
		"outcome=" + map[bool]string{true: "allowed", false: "denied"}[e.Allowed],
		"cs4Label=crossTenant cs4=" + fmt.Sprint(e.CrossTenant),
		"requestClientApplication=" + cefEscapeExt(e.RequestID),
		"externalId=" + cefEscapeExt(e.ID),
	}, " ")

	return fmt.Sprintf("CEF:0|Vallum|vallum|%s|%s|%s|%d|%s",
		cefEscapeHeader(version), sigID, name, severity, ext)
}

// cefEscapeHeader escapes pipes and backslashes in header fields.
func cefEscapeHeader(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `|`, `\|`)
}

// cefEscapeExt escapes equals signs and newlines in extension values.
func cefEscapeExt(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `=`, `\=`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return strings.ReplaceAll(s, "\r", `\r`)
}
