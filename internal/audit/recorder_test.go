// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vallum-project/vallum/internal/tenancy"
)

// failingStore wraps MemoryStore with a switchable failure mode.
type failingStore struct {
	*MemoryStore
	mu   sync.Mutex
	fail bool
}

func newFailingStore() *failingStore {
	return &failingStore{MemoryStore: NewMemoryStore(1000)}
}

func (s *failingStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *failingStore) Save(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return errors.New("store unavailable")
	}
	return s.MemoryStore.Save(ctx, e)
}

func quickConfig(failOpen bool) Config {
	cfg := DefaultConfig()
	cfg.WriteRetries = 0
	cfg.RetryBackoff = time.Millisecond
	cfg.FailOpen = failOpen
	return cfg
}

func TestRecordDurableStoresEntry(t *testing.T) {
	store := newFailingStore()
	rec := NewRecorder(store, nil, quickConfig(false))
	defer func() { _ = rec.Close() }()

	err := rec.RecordDurable(context.Background(), Entry{
		ActorUserID: "u1",
		OrgID:       "org_acme",
		EntityType:  "campaigns",
		Kind:        KindWrite,
		Operation:   "create",
		Allowed:     true,
	})
	if err != nil {
		t.Fatalf("RecordDurable() error = %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("store holds %d entries, want exactly 1", store.Len())
	}
}

func TestRecordDurableFailClosedWithoutSpool(t *testing.T) {
	store := newFailingStore()
	store.setFail(true)
	rec := NewRecorder(store, nil, quickConfig(false))
	defer func() { _ = rec.Close() }()

	err := rec.RecordDurable(context.Background(), Entry{Kind: KindWrite, Operation: "create"})
	if !errors.Is(err, tenancy.ErrAuditDegraded) {
		t.Fatalf("RecordDurable() error = %v, want ErrAuditDegraded", err)
	}
}

func TestRecordDurableSpoolPolicies(t *testing.T) {
	tests := []struct {
		name     string
		failOpen bool
		wantErr  bool
	}{
		{"fail-closed blocks the write even though the spool holds the entry", false, true},
		{"fail-open lets the write proceed once the spool holds the entry", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFailingStore()
			store.setFail(true)
			spool := NewSpool(openTestBadger(t))
			rec := NewRecorder(store, spool, quickConfig(tt.failOpen))
			defer func() { _ = rec.Close() }()

			err := rec.RecordDurable(context.Background(), Entry{
				Kind: KindWrite, Operation: "create", OrgID: "org_acme",
			})
			if tt.wantErr {
				if !errors.Is(err, tenancy.ErrAuditDegraded) {
					t.Fatalf("RecordDurable() error = %v, want ErrAuditDegraded", err)
				}
			} else if err != nil {
				t.Fatalf("RecordDurable() error = %v, want nil", err)
			}

			// Either way the entry must be durable in the spool.
			depth, err := spool.Depth()
			if err != nil {
				t.Fatalf("Depth() error = %v", err)
			}
			if depth != 1 {
				t.Errorf("spool depth = %d, want 1", depth)
			}
		})
	}
}

func TestRecordAsyncEventuallyStored(t *testing.T) {
	store := newFailingStore()
	rec := NewRecorder(store, nil, quickConfig(false))

	rec.Record(context.Background(), Entry{
		ActorUserID: "u1",
		Kind:        KindRead,
		Operation:   "find",
		Allowed:     true,
	})

	// Close drains the queue before returning.
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("store holds %d entries after drain, want 1", store.Len())
	}
}

func TestRecordDurableExactlyOneEntryPerWrite(t *testing.T) {
	store := newFailingStore()
	rec := NewRecorder(store, nil, quickConfig(false))
	defer func() { _ = rec.Close() }()

	const writes = 25
	for i := 0; i < writes; i++ {
		if err := rec.RecordDurable(context.Background(), Entry{
			Kind: KindWrite, Operation: "update", OrgID: "org_acme", Allowed: true,
		}); err != nil {
			t.Fatalf("RecordDurable() error = %v", err)
		}
	}
	if store.Len() != writes {
		t.Fatalf("store holds %d entries after %d writes, want exactly %d", store.Len(), writes, writes)
	}
}

func TestRecorderPublishesToStream(t *testing.T) {
	store := newFailingStore()
	rec := NewRecorder(store, nil, quickConfig(false))
	defer func() { _ = rec.Close() }()

	var mu sync.Mutex
	var published []string
	rec.AddPublisher(publisherFunc(func(e *Entry) {
		mu.Lock()
		published = append(published, e.ID)
		mu.Unlock()
	}))

	if err := rec.RecordDurable(context.Background(), Entry{Kind: KindWrite, Operation: "create"}); err != nil {
		t.Fatalf("RecordDurable() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(published) != 1 {
		t.Errorf("published %d entries, want 1", len(published))
	}
}

type publisherFunc func(*Entry)

func (f publisherFunc) Publish(e *Entry) { f(e) }

func TestRecorderReviewSurface(t *testing.T) {
	store := newFailingStore()
	rec := NewRecorder(store, nil, quickConfig(false))
	defer func() { _ = rec.Close() }()

	if err := rec.RecordDurable(context.Background(), Entry{
		Kind: KindWrite, Operation: "delete", OrgID: "org_acme", Allowed: false, DenialReason: "shared entity",
	}); err != nil {
		t.Fatalf("RecordDurable() error = %v", err)
	}

	entries, err := rec.Query(context.Background(), QueryFilter{Allowed: boolPtr(false)})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(entries) != 1 || entries[0].DenialReason != "shared entity" {
		t.Errorf("Query() = %+v, want the denied entry", entries)
	}

	n, err := rec.Count(context.Background(), QueryFilter{})
	if err != nil || n != 1 {
		t.Errorf("Count() = %d, %v, want 1, nil", n, err)
	}
}
