// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package audit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/vallum-project/vallum/internal/logging"
	"github.com/vallum-project/vallum/internal/metrics"
)

// Replayer drains the degraded-mode spool back into the primary store once
// it recovers. It implements suture.Service and runs under the data-layer
// supervisor. Replay is paced by a rate limiter so a recovering store is
// not flattened by the backlog, and Save's idempotence on entry id makes a
// crash mid-replay harmless.
type Replayer struct {
	store    Store
	spool    *Spool
	interval time.Duration
	batch    int
	limiter  *rate.Limiter
}

// NewReplayer creates a replay loop checking the spool every interval,
// replaying at most ratePerSec entries per second in batches of batch.
func NewReplayer(store Store, spool *Spool, interval time.Duration, ratePerSec float64, batch int) *Replayer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if ratePerSec <= 0 {
		ratePerSec = 100
	}
	if batch <= 0 {
		batch = 100
	}
	return &Replayer{
		store:    store,
		spool:    spool,
		interval: interval,
		batch:    batch,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), batch),
	}
}

// Serve runs the replay loop until ctx is cancelled.
func (r *Replayer) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.drainOnce(ctx)
		}
	}
}

// String names the service in supervisor logs.
func (r *Replayer) String() string {
	return "audit-spool-replayer"
}

// drainOnce replays one batch. On the first store failure it gives up until
// the next tick; the store is evidently still unhealthy.
func (r *Replayer) drainOnce(ctx context.Context) {
	entries, err := r.spool.Oldest(r.batch)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to read audit spool")
		return
	}
	if len(entries) == 0 {
		return
	}

	replayed := 0
	for i := range entries {
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		e := entries[i]
		if err := r.store.Save(ctx, &e); err != nil {
			metrics.AuditReplayTotal.WithLabelValues("failed").Inc()
			logging.Warn().Err(err).
				Str("entry_id", e.ID).
				Msg("Primary audit store still unavailable, stopping replay batch")
			return
		}
		if err := r.spool.Remove(e.ID); err != nil {
			logging.Error().Err(err).Str("entry_id", e.ID).Msg("Failed to remove replayed spool entry")
			return
		}
		metrics.AuditReplayTotal.WithLabelValues("ok").Inc()
		replayed++
	}

	if replayed > 0 {
		logging.Info().Int("count", replayed).Msg("Replayed spooled audit entries to primary store")
	}
}
