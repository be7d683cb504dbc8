// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

//go:build nats

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// BrokerConfig holds settings for the embedded JetStream broker.
type BrokerConfig struct {
	Host     string
	Port     int
	StoreDir string
}

// EmbeddedBroker runs an in-process NATS JetStream server for single-node
// deployments of the audit event stream, so the stream works without an
// external broker.
type EmbeddedBroker struct {
	server    *server.Server
	clientURL string
}

// StartEmbeddedBroker creates and starts the broker, waiting until it
// accepts connections.
func StartEmbeddedBroker(cfg BrokerConfig) (*EmbeddedBroker, error) {
	opts := &server.Options{
		ServerName: "vallum-audit-stream",
		Host:       cfg.Host,
		Port:       cfg.Port,
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		MaxPayload: 1 << 20,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded broker: %w", err)
	}
	ns.ConfigureLogger()

	go ns.Start()
	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded broker not ready within timeout")
	}

	return &EmbeddedBroker{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the URL publishers and subscribers connect to.
func (b *EmbeddedBroker) ClientURL() string { return b.clientURL }

// Shutdown stops the broker, waiting for completion or context expiry.
func (b *EmbeddedBroker) Shutdown(ctx context.Context) error {
	b.server.Shutdown()

	done := make(chan struct{})
	go func() {
		b.server.WaitForShutdown()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
