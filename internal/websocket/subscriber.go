// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

//go:build nats

package websocket

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/vallum-project/vallum/internal/audit"
	"github.com/vallum-project/vallum/internal/logging"
)

// Subscriber bridges the audit event stream back into the local tail hub.
// In a multi-replica deployment each replica publishes the entries it
// records; subscribing means every replica's tail clients see the full
// stream, not just entries recorded on the replica they happen to be
// connected to.
type Subscriber struct {
	hub        *Hub
	subscriber message.Subscriber
}

// NewSubscriber connects to NATS and prepares the bridge.
func NewSubscriber(hub *Hub, cfg audit.StreamConfig) (*Subscriber, error) {
	wmLogger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
		},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create audit tail subscriber: %w", err)
	}

	return &Subscriber{hub: hub, subscriber: sub}, nil
}

// Serve consumes stream messages until the context is canceled. It is run
// under the supervision tree alongside the hub.
func (s *Subscriber) Serve(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, audit.StreamTopic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", audit.StreamTopic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			var entry audit.Entry
			if err := json.Unmarshal(msg.Payload, &entry); err != nil {
				logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Malformed audit entry on stream")
				msg.Ack()
				continue
			}
			s.hub.Publish(&entry)
			msg.Ack()
		}
	}
}

// String names the subscriber for supervisor logs.
func (s *Subscriber) String() string { return "audit-tail-subscriber" }

// Close shuts the NATS subscription down.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}
