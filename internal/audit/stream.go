// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

//go:build nats

package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/vallum-project/vallum/internal/logging"
	"github.com/vallum-project/vallum/internal/metrics"
)

// StreamTopic is the JetStream subject audit entries are published to.
const StreamTopic = "vallum.audit.entries"

// StreamConfig holds event stream publisher configuration.
type StreamConfig struct {
	URL           string        `json:"url"`
	MaxReconnects int           `json:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait"`
}

// StreamPublisher publishes recorded entries to NATS JetStream via
// Watermill. It implements Publisher; failures are counted and logged but
// never propagate into the recording path (the stream is an observability
// surface, not the audit trail).
type StreamPublisher struct {
	publisher message.Publisher
	mu        sync.RWMutex
	closed    bool
}

// NewStreamPublisher connects to NATS and creates the publisher. The entry
// ULID doubles as the Nats-Msg-Id, so JetStream deduplicates redelivered
// entries.
func NewStreamPublisher(cfg StreamConfig) (*StreamPublisher, error) {
	wmLogger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("Audit stream NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("Audit stream NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create audit stream publisher: %w", err)
	}

	return &StreamPublisher{publisher: pub}, nil
}

// Publish sends one entry to the stream.
func (p *StreamPublisher) Publish(e *Entry) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		metrics.AuditStreamPublishedTotal.WithLabelValues("failed").Inc()
		logging.Error().Err(err).Str("entry_id", e.ID).Msg("Failed to marshal audit entry for stream")
		return
	}

	msg := message.NewMessage(e.ID, data)
	msg.Metadata.Set(natsgo.MsgIdHdr, e.ID)
	if err := p.publisher.Publish(StreamTopic, msg); err != nil {
		metrics.AuditStreamPublishedTotal.WithLabelValues("failed").Inc()
		logging.Warn().Err(err).Str("entry_id", e.ID).Msg("Failed to publish audit entry to stream")
		return
	}
	metrics.AuditStreamPublishedTotal.WithLabelValues("ok").Inc()
}

// Close shuts the publisher down.
func (p *StreamPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
