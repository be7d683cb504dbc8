// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package audit

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/vallum-project/vallum/internal/metrics"
)

// spoolKeyPrefix namespaces spooled entries inside the BadgerDB.
const spoolKeyPrefix = "audit_spool:"

// Spool is the degraded-mode fallback for durable audit recording: when the
// primary store is unavailable, write-path entries land here and the replay
// loop drains them back once the store recovers. Keys embed the entry's
// ULID, so iteration yields entries in creation order.
type Spool struct {
	db *badger.DB
}

// OpenSpool opens (or creates) a spool at dir.
func OpenSpool(dir string) (*Spool, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open audit spool: %w", err)
	}
	s := &Spool{db: db}
	metrics.AuditSpoolDepth.Set(float64(s.mustDepth()))
	return s, nil
}

// NewSpool wraps an already-open BadgerDB, for tests and for deployments
// that share one database across components.
func NewSpool(db *badger.DB) *Spool {
	return &Spool{db: db}
}

// Close releases the underlying database.
func (s *Spool) Close() error {
	return s.db.Close()
}

// Append durably stores the entry in the spool.
func (s *Spool) Append(e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal spooled entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(spoolKeyPrefix+e.ID), data)
	})
	if err != nil {
		return fmt.Errorf("spool audit entry %s: %w", e.ID, err)
	}
	metrics.AuditSpoolDepth.Set(float64(s.mustDepth()))
	return nil
}

// Oldest returns up to limit entries in creation order without removing
// them. The replay loop removes each entry only after the primary store has
// accepted it.
func (s *Spool) Oldest(limit int) ([]Entry, error) {
	var out []Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(spoolKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(out) < limit; it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decode spooled entry: %w", err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes a replayed entry from the spool.
func (s *Spool) Remove(id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(spoolKeyPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("remove spooled entry %s: %w", id, err)
	}
	metrics.AuditSpoolDepth.Set(float64(s.mustDepth()))
	return nil
}

// Depth counts entries currently held in the spool.
func (s *Spool) Depth() (int, error) {
	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(spoolKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *Spool) mustDepth() int {
	n, _ := s.Depth()
	return n
}
