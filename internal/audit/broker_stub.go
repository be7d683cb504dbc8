// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

//go:build !nats

package audit

import (
	"context"
	"errors"
)

// BrokerConfig holds settings for the embedded JetStream broker.
type BrokerConfig struct {
	Host     string
	Port     int
	StoreDir string
}

// EmbeddedBroker is unavailable without the nats build tag.
type EmbeddedBroker struct{}

// StartEmbeddedBroker fails when the binary is built without NATS support.
func StartEmbeddedBroker(_ BrokerConfig) (*EmbeddedBroker, error) {
	return nil, errors.New("embedded audit stream broker requires the nats build tag")
}

// ClientURL is a no-op in the stub build.
func (b *EmbeddedBroker) ClientURL() string { return "" }

// Shutdown is a no-op in the stub build.
func (b *EmbeddedBroker) Shutdown(_ context.Context) error { return nil }
