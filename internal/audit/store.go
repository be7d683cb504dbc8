// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package audit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrEntryNotFound is returned by Get for an unknown entry id.
var ErrEntryNotFound = errors.New("audit entry not found")

// QueryFilter selects entries for the review surface. Zero values mean
// "no constraint"; pointer fields distinguish "unset" from "false".
type QueryFilter struct {
	From        time.Time
	To          time.Time
	ActorUserID string
	OrgID       string
	EntityType  string
	Kind        OperationKind
	Allowed     *bool
	CrossTenant *bool
	Limit       int
	Offset      int
}

// Stats summarizes the log for the review surface.
type Stats struct {
	Total       int64            `json:"total"`
	Allowed     int64            `json:"allowed"`
	Denied      int64            `json:"denied"`
	CrossTenant int64            `json:"cross_tenant"`
	ByEntity    map[string]int64 `json:"by_entity"`
	ByOrg       map[string]int64 `json:"by_org"`
}

// Store persists audit entries. Save must be idempotent on entry id so the
// spool replay loop cannot create duplicates. Implementations must support
// concurrent Save calls; entries are independent, so this is plain
// concurrent insert with no cross-entry ordering requirement.
type Store interface {
	Save(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	Query(ctx context.Context, f QueryFilter) ([]Entry, error)
	Count(ctx context.Context, f QueryFilter) (int64, error)
	Stats(ctx context.Context, f QueryFilter) (*Stats, error)
}

// MemoryStore implements Store in memory. For tests and development; data
// is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	byID    map[string]int
	maxLen  int
}

// NewMemoryStore creates an in-memory store holding at most maxLen entries;
// the oldest tenth is evicted when the cap is reached.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		entries: make([]Entry, 0, maxLen),
		byID:    make(map[string]int),
		maxLen:  maxLen,
	}
}

// Save appends the entry. Saving an id already present is a no-op.
func (s *MemoryStore) Save(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[e.ID]; exists {
		return nil
	}
	if len(s.entries) >= s.maxLen {
		drop := s.maxLen / 10
		if drop == 0 {
			drop = 1
		}
		for i := 0; i < drop; i++ {
			delete(s.byID, s.entries[i].ID)
		}
		s.entries = s.entries[drop:]
		for i := range s.entries {
			s.byID[s.entries[i].ID] = i
		}
	}
	s.byID[e.ID] = len(s.entries)
	s.entries = append(s.entries, *e)
	return nil
}

// Get retrieves an entry by id.
func (s *MemoryStore) Get(_ context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	e := s.entries[i]
	return &e, nil
}

// Query returns matching entries, newest first.
func (s *MemoryStore) Query(_ context.Context, f QueryFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Entry
	skipped := 0
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !matches(&e, &f) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		results = append(results, e)
		if f.Limit > 0 && len(results) >= f.Limit {
			break
		}
	}
	return results, nil
}

// Count returns the number of matching entries.
func (s *MemoryStore) Count(_ context.Context, f QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for i := range s.entries {
		if matches(&s.entries[i], &f) {
			n++
		}
	}
	return n, nil
}

// Stats aggregates matching entries.
func (s *MemoryStore) Stats(_ context.Context, f QueryFilter) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{ByEntity: make(map[string]int64), ByOrg: make(map[string]int64)}
	for i := range s.entries {
		e := &s.entries[i]
		if !matches(e, &f) {
			continue
		}
		st.Total++
		if e.Allowed {
			st.Allowed++
		} else {
			st.Denied++
		}
		if e.CrossTenant {
			st.CrossTenant++
		}
		st.ByEntity[e.EntityType]++
		st.ByOrg[e.OrgID]++
	}
	return st, nil
}

// Len reports the current number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// matches reports whether the entry satisfies every set filter criterion.
func matches(e *Entry, f *QueryFilter) bool {
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	if f.ActorUserID != "" && e.ActorUserID != f.ActorUserID {
		return false
	}
	if f.OrgID != "" && e.OrgID != f.OrgID {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Allowed != nil && e.Allowed != *f.Allowed {
		return false
	}
	if f.CrossTenant != nil && e.CrossTenant != *f.CrossTenant {
		return false
	}
	return true
}
