// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package config

import (
	"fmt"
	"time"

	"github.com/vallum-project/vallum/internal/validation"
)

// Config is the full server configuration tree.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Audit     AuditConfig     `koanf:"audit"`
	Stream    StreamConfig    `koanf:"stream"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Policy    PolicyConfig    `koanf:"policy"`
	Logging   LoggingConfig   `koanf:"logging"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// AuthConfig holds credential verification settings.
type AuthConfig struct {
	// JWTSecret signs and verifies HS256 bearer tokens. Minimum 32 bytes.
	JWTSecret string        `koanf:"jwt_secret" validate:"required,min=32"`
	TokenTTL  time.Duration `koanf:"token_ttl"`

	// BasicUsers are static operational identities (break-glass master
	// account, CI service users).
	BasicUsers []BasicUserConfig `koanf:"basic_users" validate:"dive"`

	// PolicyPath optionally overrides the embedded RBAC policy.
	PolicyPath string `koanf:"policy_path"`
}

// BasicUserConfig is one static HTTP Basic identity.
type BasicUserConfig struct {
	Username       string `koanf:"username" validate:"required"`
	PasswordHash   string `koanf:"password_hash" validate:"required"`
	Role           string `koanf:"role" validate:"required,tenant_role"`
	OrganizationID string `koanf:"organization_id" validate:"required,org_id"`
}

// AuditConfig holds audit pipeline settings.
type AuditConfig struct {
	// Store selects the primary audit store backend.
	Store string `koanf:"store" validate:"oneof=postgres duckdb"`

	// DuckDBPath is the database file when Store is duckdb.
	DuckDBPath string `koanf:"duckdb_path"`

	// SpoolDir is the BadgerDB directory for the degraded-mode spool.
	// Empty disables spooling, which with FailOpen=false means any primary
	// store outage blocks tenant writes outright.
	SpoolDir string `koanf:"spool_dir"`

	BufferSize   int           `koanf:"buffer_size" validate:"min=1"`
	WriteRetries int           `koanf:"write_retries" validate:"min=0"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`

	// FailOpen, when true, lets tenant writes proceed while audit entries
	// sit in the spool. Default false: no durable audit, no write.
	FailOpen bool `koanf:"fail_open"`

	BreakerFailureThreshold int           `koanf:"breaker_failure_threshold" validate:"min=1"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`

	// ReplayPerSecond paces spool replay so recovery traffic does not
	// starve live writes.
	ReplayPerSecond float64       `koanf:"replay_per_second"`
	ReplayBurst     int           `koanf:"replay_burst" validate:"min=1"`
	ReplayInterval  time.Duration `koanf:"replay_interval"`
}

// StreamConfig holds the optional audit event stream settings.
type StreamConfig struct {
	Enabled bool `koanf:"enabled"`

	// Embedded starts an in-process NATS JetStream broker instead of
	// connecting to an external one.
	Embedded bool   `koanf:"embedded"`
	URL      string `koanf:"url"`
	StoreDir string `koanf:"store_dir"`

	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// CatalogConfig names the entities the mediation layer knows about.
type CatalogConfig struct {
	TenantEntities []string `koanf:"tenant_entities" validate:"dive,entity_name"`
	SharedEntities []string `koanf:"shared_entities" validate:"dive,entity_name"`
}

// PolicyConfig lists the shared tables that get row-level security.
type PolicyConfig struct {
	SharedTables []SharedTableConfig `koanf:"shared_tables" validate:"dive"`
}

// SharedTableConfig identifies one RLS-protected shared table.
type SharedTableConfig struct {
	Schema    string `koanf:"schema" validate:"required,schema_name"`
	Name      string `koanf:"name" validate:"required,entity_name"`
	OrgColumn string `koanf:"org_column" validate:"required,entity_name"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// RateLimitConfig holds API rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `koanf:"enabled"`
	RequestsPerMinute int  `koanf:"requests_per_minute" validate:"min=1"`
}

// defaultConfig returns the built-in defaults, applied before any file or
// environment layer.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     nil,
		},
		Database: DatabaseConfig{
			URL:             "",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			JWTSecret: "",
			TokenTTL:  24 * time.Hour,
		},
		Audit: AuditConfig{
			Store:                   "postgres",
			SpoolDir:                "/data/vallum/spool",
			BufferSize:              1024,
			WriteRetries:            3,
			RetryBackoff:            100 * time.Millisecond,
			FailOpen:                false,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
			ReplayPerSecond:         100,
			ReplayBurst:             100,
			ReplayInterval:          5 * time.Second,
		},
		Stream: StreamConfig{
			Enabled:       false,
			Embedded:      false,
			URL:           "nats://127.0.0.1:4222",
			StoreDir:      "/data/vallum/jetstream",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Catalog: CatalogConfig{
			TenantEntities: nil,
			SharedEntities: nil,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
		},
	}
}

// Validate checks field shapes and cross-field constraints.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Audit.Store == "duckdb" && c.Audit.DuckDBPath == "" {
		return fmt.Errorf("audit.duckdb_path is required when audit.store is duckdb")
	}
	if c.Stream.Enabled && !c.Stream.Embedded && c.Stream.URL == "" {
		return fmt.Errorf("stream.url is required when the stream is enabled without the embedded broker")
	}
	if len(c.Catalog.TenantEntities) == 0 {
		return fmt.Errorf("catalog.tenant_entities must name at least one entity")
	}

	seen := make(map[string]bool, len(c.Catalog.TenantEntities))
	for _, e := range c.Catalog.TenantEntities {
		seen[e] = true
	}
	for _, e := range c.Catalog.SharedEntities {
		if seen[e] {
			return fmt.Errorf("entity %q is listed as both tenant-owned and shared", e)
		}
	}
	return nil
}
