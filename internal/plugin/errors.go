// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin

import (
	"fmt"

	"github.com/samber/oops"
)

// Sentinel errors recognized by the loader and its callers.
var (
	// ErrStoreNotReady marks a record-store failure caused by a backing
	// store that has not been provisioned yet. Load propagates it to
	// the caller, who is expected to retry after migration.
	ErrStoreNotReady = oops.Code("STORE_NOT_READY").Errorf("plugin record store not ready")

	// ErrRecordNotFound is returned for lookups of unknown slugs.
	ErrRecordNotFound = oops.Code("RECORD_NOT_FOUND").Errorf("plugin record not found")

	// ErrSlugConflict marks two descriptors colliding on a slug. This
	// is a configuration error and fatal to the load.
	ErrSlugConflict = oops.Code("SLUG_CONFLICT").Errorf("duplicate plugin slug")
)

// LoadError is a plugin fault: an unrecoverable error during
// instantiation, capability binding or registry hot-swap that is
// attributable to one plugin. The loader reacts by blacklisting the
// offending distribution package for the remainder of the load call.
type LoadError struct {
	// Package identifies the distribution package the fault originated
	// from.
	Package string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("plugin %s: %v", e.Package, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError builds a LoadError for the given distribution package.
func NewLoadError(pkg string, err error) *LoadError {
	return &LoadError{Package: pkg, Err: err}
}
