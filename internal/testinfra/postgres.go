// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

//go:build integration

package testinfra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	// DefaultPostgresImage matches the engine version the deployment
	// manifests pin.
	DefaultPostgresImage = "postgres:16-alpine"

	postgresPort     = "5432"
	postgresUser     = "vallum"
	postgresPassword = "vallum-test"
	postgresDatabase = "vallum_test"
)

// PostgresContainer is a disposable Postgres instance for integration
// tests.
type PostgresContainer struct {
	container testcontainers.Container
	host      string
	port      string
}

// PostgresOption customizes the container request before start.
type PostgresOption func(*testcontainers.ContainerRequest)

// WithPostgresImage overrides the container image.
func WithPostgresImage(image string) PostgresOption {
	return func(req *testcontainers.ContainerRequest) {
		req.Image = image
	}
}

// WithInitSQL mounts an SQL file into the image's init directory so it
// runs before the container reports ready.
func WithInitSQL(hostPath string) PostgresOption {
	return func(req *testcontainers.ContainerRequest) {
		req.Files = append(req.Files, testcontainers.ContainerFile{
			HostFilePath:      hostPath,
			ContainerFilePath: "/docker-entrypoint-initdb.d/init.sql",
			FileMode:          0o644,
		})
	}
}

// NewPostgresContainer starts a Postgres container and waits until it
// accepts connections.
func NewPostgresContainer(ctx context.Context, opts ...PostgresOption) (*PostgresContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        DefaultPostgresImage,
		ExposedPorts: []string{postgresPort + "/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDatabase,
		},
		WaitingFor: wait.ForAll(
			// The entrypoint restarts the server once during init, so wait
			// for the second ready line.
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(postgresPort+"/tcp"),
		).WithDeadline(2 * time.Minute),
	}
	for _, opt := range opts {
		opt(&req)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("container host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, postgresPort+"/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("mapped port: %w", err)
	}

	return &PostgresContainer{
		container: container,
		host:      host,
		port:      mapped.Port(),
	}, nil
}

// URL returns a DSN for the pgx stdlib driver.
func (p *PostgresContainer) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, p.host, p.port, postgresDatabase)
}

// UserURL returns a DSN connecting as a different role, for tests that
// need a non-superuser session (the default container user bypasses row
// security).
func (p *PostgresContainer) UserURL(user, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, p.host, p.port, postgresDatabase)
}

// Open opens a database handle and verifies connectivity.
func (p *PostgresContainer) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", p.URL())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container.
func (p *PostgresContainer) Terminate(ctx context.Context) error {
	return p.container.Terminate(ctx)
}
