// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin

import (
	"sort"
	"sync"
)

// Compile-time registration tables. Factories back manifest-declared
// plugins found in search directories; entry points are the package
// analogue of the "stockroom_plugins" distribution tag: packages
// register a full descriptor from an init function.
var (
	registryMu  sync.RWMutex
	factories   = make(map[string]func() Plugin)
	entryPoints []Descriptor
)

// RegisterFactory makes a plugin constructor available to manifests
// under the given factory name. Intended to be called from init.
// Registering a duplicate or nil factory panics, mirroring driver
// registration semantics.
func RegisterFactory(name string, fn func() Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if fn == nil {
		panic("plugin: RegisterFactory with nil factory")
	}
	if _, dup := factories[name]; dup {
		panic("plugin: RegisterFactory called twice for " + name)
	}
	factories[name] = fn
}

// Factory returns the registered constructor for a factory name.
func Factory(name string) (func() Plugin, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := factories[name]
	return fn, ok
}

// RegisterEntryPoint registers a package-origin plugin descriptor.
// Intended to be called from the plugin package's init. The descriptor
// is tagged as package-origin regardless of what the caller set.
func RegisterEntryPoint(d Descriptor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if d.New == nil {
		panic("plugin: RegisterEntryPoint with nil factory")
	}
	d.Origin = OriginPackage
	entryPoints = append(entryPoints, d)
}

// EntryPointDescriptors returns a snapshot of the registered package
// descriptors, ordered by name for deterministic discovery.
func EntryPointDescriptors() []Descriptor {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Descriptor, len(entryPoints))
	copy(out, entryPoints)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// resetRegistrationTables clears both tables. Test hook.
func resetRegistrationTables() {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories = make(map[string]func() Plugin)
	entryPoints = nil
}
