// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin

import (
	"context"
	"time"
)

// Record is the persisted per-plugin state. Records are created on
// first discovery of a slug and only ever toggled afterwards, never
// deleted by the loader.
type Record struct {
	Slug   string
	Name   string
	Active bool

	// FaultID and FaultMessage hold the last recorded fault for this
	// plugin, if any. FaultID is an opaque ULID.
	FaultID      string
	FaultMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordStore persists plugin records.
//
// Implementations return ErrStoreNotReady (wrapped) when the backing
// store exists but has not been provisioned yet; the loader propagates
// that condition instead of treating it as a plugin fault.
type RecordStore interface {
	// GetOrCreate returns the record for slug, creating it inactive
	// with the given display name when absent. Reports whether a new
	// record was created. Idempotent across repeated discovery.
	GetOrCreate(ctx context.Context, slug, name string) (*Record, bool, error)

	// SetActive toggles the persisted active flag.
	SetActive(ctx context.Context, slug string, active bool) error

	// SetFault records a fault against the slug's record.
	SetFault(ctx context.Context, slug, faultID, message string) error

	// List returns all records ordered by slug.
	List(ctx context.Context) ([]*Record, error)
}
