// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when no explicit path is given.
var DefaultConfigPaths = []string{
	"vallum.yaml",
	"vallum.yml",
	"/etc/vallum/config.yaml",
	"/etc/vallum/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "VALLUM_CONFIG"

// envPrefix namespaces Vallum's environment variables.
const envPrefix = "VALLUM_"

// Load builds the configuration from three layers: struct defaults, the
// YAML file at path (or the first default path found when path is empty),
// and VALLUM_* environment variables, highest last. The result is
// validated before being returned.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps VALLUM_SECTION_KEY names to koanf paths. Keys with
// multi-word sections are listed explicitly; the fallback splits on the
// first underscore.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	explicit := map[string]string{
		"server_host":             "server.host",
		"server_port":             "server.port",
		"server_read_timeout":     "server.read_timeout",
		"server_write_timeout":    "server.write_timeout",
		"server_shutdown_timeout": "server.shutdown_timeout",
		"server_cors_origins":     "server.cors_origins",

		"database_url":               "database.url",
		"database_max_open_conns":    "database.max_open_conns",
		"database_max_idle_conns":    "database.max_idle_conns",
		"database_conn_max_lifetime": "database.conn_max_lifetime",

		"auth_jwt_secret":  "auth.jwt_secret",
		"auth_token_ttl":   "auth.token_ttl",
		"auth_policy_path": "auth.policy_path",

		"audit_store":                     "audit.store",
		"audit_duckdb_path":               "audit.duckdb_path",
		"audit_spool_dir":                 "audit.spool_dir",
		"audit_buffer_size":               "audit.buffer_size",
		"audit_write_retries":             "audit.write_retries",
		"audit_retry_backoff":             "audit.retry_backoff",
		"audit_fail_open":                 "audit.fail_open",
		"audit_breaker_failure_threshold": "audit.breaker_failure_threshold",
		"audit_breaker_timeout":           "audit.breaker_timeout",
		"audit_replay_per_second":         "audit.replay_per_second",
		"audit_replay_burst":              "audit.replay_burst",
		"audit_replay_interval":           "audit.replay_interval",

		"stream_enabled":        "stream.enabled",
		"stream_embedded":       "stream.embedded",
		"stream_url":            "stream.url",
		"stream_store_dir":      "stream.store_dir",
		"stream_max_reconnects": "stream.max_reconnects",
		"stream_reconnect_wait": "stream.reconnect_wait",

		"catalog_tenant_entities": "catalog.tenant_entities",
		"catalog_shared_entities": "catalog.shared_entities",

		"logging_level":  "logging.level",
		"logging_format": "logging.format",
		"logging_caller": "logging.caller",

		"rate_limit_enabled":             "rate_limit.enabled",
		"rate_limit_requests_per_minute": "rate_limit.requests_per_minute",
	}
	if path, ok := explicit[key]; ok {
		return path
	}
	return strings.Replace(key, "_", ".", 1)
}

// sliceConfigPaths are comma-separated when they arrive via environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"catalog.tenant_entities",
	"catalog.shared_entities",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		s, ok := val.(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}
