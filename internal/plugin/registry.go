// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin

import (
	"sort"
	"sync"

	"github.com/samber/oops"
)

// Active is an instantiated plugin bound to a slug for one load cycle.
// Destroyed and recreated on every reload.
type Active struct {
	Slug string
	Name string
	// Origin, Dir and Package carry the descriptor's identity through
	// to the binders.
	Origin  Origin
	Dir     string
	Package string
	// Capabilities are the descriptor's declared capability patterns.
	Capabilities []string
	// Instance is the live plugin object.
	Instance Plugin
	// Record is the persisted record, nil when the store was optional
	// under the testing override.
	Record *Record
}

// Registry holds the process-wide plugin state: the active set (live
// instances) and the inactive set (persisted records of plugins that
// were discovered but not activated). A slug appears in at most one of
// the two sets.
//
// The maps guard themselves for read-side observers (status queries,
// metrics); load/unload/reload callers must still serialize.
type Registry struct {
	mu       sync.RWMutex
	active   map[string]*Active
	inactive map[string]*Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active:   make(map[string]*Active),
		inactive: make(map[string]*Record),
	}
}

// Reset empties both sets. Runs at the start of every load cycle and on
// blacklist recovery.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = make(map[string]*Active)
	r.inactive = make(map[string]*Record)
}

// Insert places a plugin in the active set. Inserting a slug already
// present in either set is a slug conflict.
func (r *Registry) Insert(a *Active) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[a.Slug]; ok {
		return oops.With("slug", a.Slug).Wrap(ErrSlugConflict)
	}
	if _, ok := r.inactive[a.Slug]; ok {
		return oops.With("slug", a.Slug).Wrap(ErrSlugConflict)
	}
	r.active[a.Slug] = a
	return nil
}

// MarkInactive places a slug's record in the inactive set so observers
// can see the plugin was discovered but not activated. The record may
// be nil when the store was optional. A slug already active is a
// conflict.
func (r *Registry) MarkInactive(slug string, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[slug]; ok {
		return oops.With("slug", slug).Wrap(ErrSlugConflict)
	}
	r.inactive[slug] = rec
	return nil
}

// Get returns the active plugin for a slug.
func (r *Registry) Get(slug string) (*Active, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.active[slug]
	return a, ok
}

// Active returns the active plugins ordered by slug.
func (r *Registry) Active() []*Active {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Active, 0, len(r.active))
	for _, a := range r.active {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Inactive returns a copy of the inactive set.
func (r *Registry) Inactive() map[string]*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Record, len(r.inactive))
	for slug, rec := range r.inactive {
		out[slug] = rec
	}
	return out
}

// Counts returns the sizes of the active and inactive sets.
func (r *Registry) Counts() (active, inactive int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active), len(r.inactive)
}
