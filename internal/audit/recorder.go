// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/vallum-project/vallum/internal/logging"
	"github.com/vallum-project/vallum/internal/metrics"
	"github.com/vallum-project/vallum/internal/tenancy"
)

// Config holds recorder configuration.
type Config struct {
	// BufferSize is the async (read-path) queue capacity. A full queue
	// drops the entry with a metric rather than blocking the read.
	BufferSize int `json:"buffer_size"`

	// WriteRetries bounds the durable-path retry count against the
	// primary store before falling back to the spool.
	WriteRetries int `json:"write_retries"`

	// RetryBackoff is the delay between durable-path retries.
	RetryBackoff time.Duration `json:"retry_backoff"`

	// FailOpen decides what happens to the caller's business write when
	// the primary store is down. Fail-closed (the default) returns
	// ErrAuditDegraded unless the primary accepted the entry; fail-open
	// lets the write proceed as long as the spool holds the entry.
	// With neither primary nor spool accepting, the write is always
	// blocked regardless of this setting.
	FailOpen bool `json:"fail_open"`

	// BreakerFailureThreshold is the consecutive-failure count that opens
	// the primary-store circuit breaker.
	BreakerFailureThreshold uint32 `json:"breaker_failure_threshold"`

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration `json:"breaker_timeout"`
}

// DefaultConfig returns production defaults. Fail-closed: an unauditable
// write is a blocked write.
func DefaultConfig() Config {
	return Config{
		BufferSize:              1024,
		WriteRetries:            2,
		RetryBackoff:            50 * time.Millisecond,
		FailOpen:                false,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
	}
}

// Publisher receives every successfully recorded entry, for the optional
// event stream. Implementations must not block the recording path.
type Publisher interface {
	Publish(e *Entry)
}

// Recorder is the access auditor. Record is the async read path;
// RecordDurable is the write path with the durable-before-store ordering
// guarantee.
type Recorder struct {
	cfg     Config
	store   Store
	spool   *Spool
	breaker *gobreaker.CircuitBreaker[any]

	publishers []Publisher

	queue    chan *Entry
	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewRecorder creates a recorder over the primary store. spool may be nil,
// in which case degraded mode has no fallback and durable recording fails
// hard once the primary is down.
func NewRecorder(store Store, spool *Spool, cfg Config) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = DefaultConfig().BreakerFailureThreshold
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = DefaultConfig().BreakerTimeout
	}

	r := &Recorder{
		cfg:   cfg,
		store: store,
		spool: spool,
		queue: make(chan *Entry, cfg.BufferSize),
		stop:  make(chan struct{}),
	}

	r.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "audit_primary_store",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerTransition(name, from.String(), to.String(), breakerStateValue(to))
			metrics.SetAuditDegraded(to == gobreaker.StateOpen)
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Audit store circuit breaker state change")
		},
	})

	r.wg.Add(1)
	go r.asyncWriter()
	return r
}

// AddPublisher registers a stream publisher. Not safe to call after the
// recorder is in use.
func (r *Recorder) AddPublisher(p Publisher) {
	r.publishers = append(r.publishers, p)
}

// Record enqueues a read-path entry. Never blocks: on a full queue the
// entry is dropped and counted, which is acceptable for reads (a
// visibility gap, not an integrity gap).
func (r *Recorder) Record(_ context.Context, e Entry) {
	stamped := NewEntry(e)
	select {
	case r.queue <- &stamped:
		metrics.AuditQueueDepth.Set(float64(len(r.queue)))
	default:
		metrics.RecordAuditEntry("async", "dropped")
		logging.Warn().Str("entry_id", stamped.ID).Msg("Audit queue full, dropping read-path entry")
	}
}

// RecordDurable records a write-path entry with the ordering guarantee:
// when it returns nil, the entry is held durably (primary store, or spool
// under fail-open) and the caller may proceed to the underlying store.
//
// ErrAuditDegraded means the caller must not proceed: either nothing
// accepted the entry, or only the spool did and the policy is fail-closed.
func (r *Recorder) RecordDurable(ctx context.Context, e Entry) error {
	stamped := NewEntry(e)

	err := r.saveWithRetry(ctx, &stamped)
	if err == nil {
		metrics.RecordAuditEntry("durable", "stored")
		r.publish(&stamped)
		return nil
	}

	logging.Ctx(ctx).Error().Err(err).
		Str("entry_id", stamped.ID).
		Msg("Primary audit store rejected write-path entry")

	if r.spool == nil {
		metrics.RecordAuditEntry("durable", "failed")
		return fmt.Errorf("audit entry %s: %w", stamped.ID, tenancy.ErrAuditDegraded)
	}

	if spoolErr := r.spool.Append(&stamped); spoolErr != nil {
		metrics.RecordAuditEntry("durable", "failed")
		logging.Ctx(ctx).Error().Err(spoolErr).
			Str("entry_id", stamped.ID).
			Msg("Audit spool rejected entry; audit trail lost for this access")
		return fmt.Errorf("audit entry %s: %w", stamped.ID, tenancy.ErrAuditDegraded)
	}

	metrics.RecordAuditEntry("durable", "spooled")
	r.publish(&stamped)

	if !r.cfg.FailOpen {
		// The entry is durable in the spool, but policy says a business
		// write may not proceed until the primary log has it.
		return fmt.Errorf("audit entry %s spooled, fail-closed policy: %w", stamped.ID, tenancy.ErrAuditDegraded)
	}
	return nil
}

// saveWithRetry pushes one entry through the breaker with bounded retries.
func (r *Recorder) saveWithRetry(ctx context.Context, e *Entry) error {
	var lastErr error
	attempts := r.cfg.WriteRetries + 1
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.RetryBackoff):
			}
		}
		_, lastErr = r.breaker.Execute(func() (any, error) {
			return nil, r.store.Save(ctx, e)
		})
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, gobreaker.ErrOpenState) || errors.Is(lastErr, gobreaker.ErrTooManyRequests) {
			// Breaker is shedding load; retrying immediately cannot help.
			return lastErr
		}
	}
	return lastErr
}

// publish fans the entry out to registered stream publishers.
func (r *Recorder) publish(e *Entry) {
	for _, p := range r.publishers {
		p.Publish(e)
	}
}

// asyncWriter drains the read-path queue.
func (r *Recorder) asyncWriter() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stop:
			for {
				select {
				case e := <-r.queue:
					r.writeAsync(e)
				default:
					return
				}
			}
		case e := <-r.queue:
			r.writeAsync(e)
			metrics.AuditQueueDepth.Set(float64(len(r.queue)))
		}
	}
}

func (r *Recorder) writeAsync(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.store.Save(ctx, e)
	})
	if err == nil {
		metrics.RecordAuditEntry("async", "stored")
		r.publish(e)
		return
	}

	if r.spool != nil {
		if spoolErr := r.spool.Append(e); spoolErr == nil {
			metrics.RecordAuditEntry("async", "spooled")
			r.publish(e)
			return
		}
	}
	metrics.RecordAuditEntry("async", "failed")
	logging.Error().Err(err).Str("entry_id", e.ID).Msg("Failed to save read-path audit entry")
}

// Close stops the async writer after draining the queue.
func (r *Recorder) Close() error {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
	return nil
}

// Query exposes the review surface of the primary store.
func (r *Recorder) Query(ctx context.Context, f QueryFilter) ([]Entry, error) {
	return r.store.Query(ctx, f)
}

// Get retrieves one entry by id.
func (r *Recorder) Get(ctx context.Context, id string) (*Entry, error) {
	return r.store.Get(ctx, id)
}

// Count counts entries matching the filter.
func (r *Recorder) Count(ctx context.Context, f QueryFilter) (int64, error) {
	return r.store.Count(ctx, f)
}

// Stats aggregates entries matching the filter.
func (r *Recorder) Stats(ctx context.Context, f QueryFilter) (*Stats, error) {
	return r.store.Stats(ctx, f)
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
