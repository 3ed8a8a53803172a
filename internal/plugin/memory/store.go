// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

// Package memory provides an in-memory plugin record store, used by
// tests and by testing-mode hosts running without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/stockroom/stockroom/internal/plugin"
)

// Store implements plugin.RecordStore in memory.
type Store struct {
	mu      sync.Mutex
	records map[string]*plugin.Record

	// NotReady simulates an unprovisioned backing store: while set,
	// every operation fails with ErrStoreNotReady.
	NotReady bool
}

// NewStore creates an empty in-memory record store.
func NewStore() *Store {
	return &Store{records: make(map[string]*plugin.Record)}
}

func (s *Store) checkReady() error {
	if s.NotReady {
		return oops.With("store", "memory").Wrap(plugin.ErrStoreNotReady)
	}
	return nil
}

// GetOrCreate returns the record for slug, creating it inactive when
// absent.
func (s *Store) GetOrCreate(_ context.Context, slug, name string) (*plugin.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return nil, false, err
	}

	if rec, ok := s.records[slug]; ok {
		return cloneRecord(rec), false, nil
	}

	now := time.Now().UTC()
	rec := &plugin.Record{
		Slug:      slug,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.records[slug] = rec
	return cloneRecord(rec), true, nil
}

// SetActive toggles the persisted active flag.
func (s *Store) SetActive(_ context.Context, slug string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return err
	}

	rec, ok := s.records[slug]
	if !ok {
		return oops.With("slug", slug).Wrap(plugin.ErrRecordNotFound)
	}
	rec.Active = active
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// SetFault records a fault against the slug's record.
func (s *Store) SetFault(_ context.Context, slug, faultID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return err
	}

	rec, ok := s.records[slug]
	if !ok {
		return oops.With("slug", slug).Wrap(plugin.ErrRecordNotFound)
	}
	rec.FaultID = faultID
	rec.FaultMessage = message
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// List returns all records ordered by slug.
func (s *Store) List(_ context.Context) ([]*plugin.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return nil, err
	}

	out := make([]*plugin.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func cloneRecord(rec *plugin.Record) *plugin.Record {
	clone := *rec
	return &clone
}
