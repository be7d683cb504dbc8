// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

//go:build !nats

package websocket

import (
	"context"
	"errors"

	"github.com/vallum-project/vallum/internal/audit"
)

// Subscriber is unavailable without the nats build tag.
type Subscriber struct{}

// NewSubscriber fails when the binary is built without NATS support.
func NewSubscriber(_ *Hub, _ audit.StreamConfig) (*Subscriber, error) {
	return nil, errors.New("audit tail stream bridge requires the nats build tag")
}

// Serve is a no-op in the stub build.
func (s *Subscriber) Serve(_ context.Context) error {
	return errors.New("audit tail stream bridge requires the nats build tag")
}

// String names the subscriber for supervisor logs.
func (s *Subscriber) String() string { return "audit-tail-subscriber" }

// Close is a no-op in the stub build.
func (s *Subscriber) Close() error { return nil }
