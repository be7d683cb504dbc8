// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package main is the entry point for the Vallum server.
//
// Vallum mediates every data access in a multi-tenant deployment: each
// organization's data lives in its own Postgres schema, requests resolve to
// an immutable tenant context before any statement runs, and every access
// decision lands in an append-only audit trail before the data store is
// touched.
//
// # Startup Order
//
//  1. Configuration: koanf v2 layering defaults, an optional YAML file, and
//     VALLUM_-prefixed environment variables
//  2. Postgres: connection pool, registry migration, audit store migration
//  3. Row policies: row-level security on the configured shared tables
//  4. Audit pipeline: primary store, Badger spool, recorder, replayer
//  5. Authentication and authorization: JWT/basic chain, casbin enforcer
//  6. Optional audit event stream: NATS JetStream, embedded or external
//  7. HTTP server under a suture supervision tree
//
// # Build Tags
//
//	go build -tags nats ./cmd/vallum-server   # enable the audit event stream
//
// Without the tag the stream components compile to stubs and stream.enabled
// configuration is rejected at startup.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful stop: the listener drains in-flight
// requests, the supervision tree winds down its layers, and the audit
// recorder flushes its queue before the process exits.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	_ "github.com/vallum-project/vallum/docs" // generated swagger docs
	"github.com/vallum-project/vallum/internal/api"
	"github.com/vallum-project/vallum/internal/audit"
	"github.com/vallum-project/vallum/internal/authn"
	"github.com/vallum-project/vallum/internal/authz"
	"github.com/vallum-project/vallum/internal/config"
	"github.com/vallum-project/vallum/internal/logging"
	"github.com/vallum-project/vallum/internal/policy"
	"github.com/vallum-project/vallum/internal/registry"
	"github.com/vallum-project/vallum/internal/scoped"
	"github.com/vallum-project/vallum/internal/supervisor"
	"github.com/vallum-project/vallum/internal/supervisor/services"
	"github.com/vallum-project/vallum/internal/tenancy"
	ws "github.com/vallum-project/vallum/internal/websocket"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("audit_store", cfg.Audit.Store).
		Bool("fail_open", cfg.Audit.FailOpen).
		Int("tenant_entities", len(cfg.Catalog.TenantEntities)).
		Msg("Starting Vallum")

	db, err := openDatabase(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := registry.NewPostgresRegistry(db)
	if err := reg.Migrate(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to migrate schema registry")
	}

	catalog, err := scoped.NewCatalog(cfg.Catalog.TenantEntities, cfg.Catalog.SharedEntities)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid entity catalog")
	}

	if len(cfg.Policy.SharedTables) > 0 {
		if err := policy.Apply(ctx, db, sharedTables(cfg)); err != nil {
			logging.Fatal().Err(err).Msg("Failed to apply row-level security policies")
		}
	}

	store, closeStore, err := openAuditStore(ctx, cfg, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open audit store")
	}
	defer closeStore()

	var spool *audit.Spool
	if cfg.Audit.SpoolDir != "" {
		spool, err = audit.OpenSpool(cfg.Audit.SpoolDir)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open audit spool")
		}
		defer func() {
			if err := spool.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing audit spool")
			}
		}()
	} else {
		logging.Warn().Msg("Audit spool disabled; an audit store outage will block tenant writes")
	}

	recorder := audit.NewRecorder(store, spool, audit.Config{
		BufferSize:              cfg.Audit.BufferSize,
		WriteRetries:            cfg.Audit.WriteRetries,
		RetryBackoff:            cfg.Audit.RetryBackoff,
		FailOpen:                cfg.Audit.FailOpen,
		BreakerFailureThreshold: uint32(cfg.Audit.BreakerFailureThreshold),
		BreakerTimeout:          cfg.Audit.BreakerTimeout,
	})
	defer func() {
		if err := recorder.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit recorder")
		}
	}()

	auth, challenge, err := buildAuthenticator(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure authentication")
	}
	enforcer, err := authz.NewEnforcer(authz.Config{PolicyPath: cfg.Auth.PolicyPath})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load authorization policy")
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())

	hub := ws.NewHub()
	tree.AddMessagingService(hub)

	var broker *audit.EmbeddedBroker
	if cfg.Stream.Enabled {
		streamCfg := audit.StreamConfig{
			URL:           cfg.Stream.URL,
			MaxReconnects: cfg.Stream.MaxReconnects,
			ReconnectWait: cfg.Stream.ReconnectWait,
		}
		if cfg.Stream.Embedded {
			broker, err = audit.StartEmbeddedBroker(audit.BrokerConfig{
				Host:     "127.0.0.1",
				StoreDir: cfg.Stream.StoreDir,
			})
			if err != nil {
				logging.Fatal().Err(err).Msg("Failed to start embedded broker")
			}
			streamCfg.URL = broker.ClientURL()
		}

		pub, err := audit.NewStreamPublisher(streamCfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect audit stream publisher")
		}
		defer func() {
			if err := pub.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing stream publisher")
			}
		}()
		recorder.AddPublisher(pub)

		// The live tail feeds off the stream, so a multi-node deployment
		// tails entries recorded on any node.
		sub, err := ws.NewSubscriber(hub, streamCfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect audit tail subscriber")
		}
		tree.AddMessagingService(sub)
		logging.Info().Str("url", streamCfg.URL).Bool("embedded", cfg.Stream.Embedded).
			Msg("Audit event stream enabled")
	} else {
		// Single-node: recorded entries reach the tail hub directly.
		recorder.AddPublisher(hub)
	}

	if spool != nil {
		tree.AddDataService(audit.NewReplayer(store, spool,
			cfg.Audit.ReplayInterval, cfg.Audit.ReplayPerSecond, cfg.Audit.ReplayBurst))
	}

	server := api.NewServer(api.Options{
		Resolver:    tenancy.NewResolver(reg),
		Registry:    reg,
		Provisioner: registry.NewProvisioner(reg, db, cfg.Catalog.TenantEntities),
		DB:          db,
		Catalog:     catalog,
		Recorder:    recorder,
		Hub:         hub,
		Auth:        auth,
		Challenge:   challenge,
		Enforcer:    enforcer,
		Server:      cfg.Server,
		RateLimit:   cfg.RateLimit,
		Version:     version,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Server starting")
	err = tree.Serve(ctx)

	if broker != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := broker.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Error stopping embedded broker")
		}
		cancel()
	}

	if err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree failed")
		os.Exit(1)
	}
	logging.Info().Msg("Server stopped")
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// openAuditStore selects the primary audit backend. Postgres shares the
// main pool; DuckDB is the single-binary alternative.
func openAuditStore(ctx context.Context, cfg *config.Config, db *sql.DB) (audit.Store, func(), error) {
	switch cfg.Audit.Store {
	case "duckdb":
		store, err := audit.OpenDuckDBStore(cfg.Audit.DuckDBPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing duckdb audit store")
			}
		}, nil
	default:
		store := audit.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func buildAuthenticator(cfg *config.Config) (authn.Authenticator, string, error) {
	tokens, err := authn.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, "", err
	}

	authenticators := []authn.Authenticator{authn.NewJWTAuthenticator(tokens)}
	challenge := `Bearer realm="Vallum"`

	if len(cfg.Auth.BasicUsers) > 0 {
		users := make([]authn.BasicUser, 0, len(cfg.Auth.BasicUsers))
		for _, u := range cfg.Auth.BasicUsers {
			users = append(users, authn.BasicUser{
				Username:       u.Username,
				PasswordHash:   u.PasswordHash,
				Role:           tenancy.Role(u.Role),
				OrganizationID: u.OrganizationID,
			})
		}
		basic, err := authn.NewBasicAuthenticator(users)
		if err != nil {
			return nil, "", err
		}
		authenticators = append(authenticators, basic)
		challenge = basic.WWWAuthenticate()
		logging.Info().Int("users", len(users)).Msg("Basic authentication enabled")
	}

	return authn.NewChain(authenticators...), challenge, nil
}

func sharedTables(cfg *config.Config) []policy.SharedTable {
	tables := make([]policy.SharedTable, 0, len(cfg.Policy.SharedTables))
	for _, t := range cfg.Policy.SharedTables {
		tables = append(tables, policy.SharedTable{
			Schema:    t.Schema,
			Name:      t.Name,
			OrgColumn: t.OrgColumn,
		})
	}
	return tables
}
