// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package host

import "sync/atomic"

// Maintenance is the process-wide maintenance-mode flag. While set, the
// host rejects or defers external requests; the loader raises it around
// registry mutations so no request observes a half-populated registry.
//
// The flag does not serialize loader calls; callers must still
// serialize load/unload/reload themselves.
type Maintenance struct {
	on atomic.Bool
}

// NewMaintenance creates a maintenance gate, initially off.
func NewMaintenance() *Maintenance {
	return &Maintenance{}
}

// Enabled reports whether maintenance mode is on.
func (m *Maintenance) Enabled() bool {
	return m.on.Load()
}

// Set sets maintenance mode.
func (m *Maintenance) Set(on bool) {
	m.on.Store(on)
}

// Scope forces maintenance mode on and returns a restore func that puts
// the flag back to its prior value. A caller already in maintenance
// stays in maintenance after restore.
func (m *Maintenance) Scope() func() {
	prior := m.on.Swap(true)
	return func() { m.on.Store(prior) }
}
