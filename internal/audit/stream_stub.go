// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

//go:build !nats

package audit

import (
	"errors"
	"time"
)

// StreamTopic is the JetStream subject audit entries are published to.
const StreamTopic = "vallum.audit.entries"

// StreamConfig holds event stream publisher configuration.
type StreamConfig struct {
	URL           string        `json:"url"`
	MaxReconnects int           `json:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait"`
}

// StreamPublisher is unavailable without the nats build tag.
type StreamPublisher struct{}

// NewStreamPublisher fails when the binary is built without NATS support.
func NewStreamPublisher(_ StreamConfig) (*StreamPublisher, error) {
	return nil, errors.New("audit event stream requires the nats build tag")
}

// Publish is a no-op in the stub build.
func (p *StreamPublisher) Publish(_ *Entry) {}

// Close is a no-op in the stub build.
func (p *StreamPublisher) Close() error { return nil }
