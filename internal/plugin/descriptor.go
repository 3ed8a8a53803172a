// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin

import (
	"path/filepath"
)

// Origin distinguishes where a descriptor was discovered from. It
// affects how the app binder derives the plugin's dotted module path.
type Origin int

// Descriptor origins.
const (
	// OriginPath marks a plugin discovered from a configured search
	// directory.
	OriginPath Origin = iota
	// OriginPackage marks a plugin loaded from a registered package
	// entry point.
	OriginPackage
)

// Descriptor is an uninstantiated plugin: static identity and a
// factory. Everything the loader needs for eligibility decisions lives
// here, so no plugin code runs before an admin-enabled plugin is
// actually instantiated.
type Descriptor struct {
	// Name is the declared display name.
	Name string
	// Slug is the normalized registry key, derived from Name unless the
	// plugin declares an explicit override.
	Slug string
	// Origin records the discovery mechanism.
	Origin Origin
	// Dir is the plugin's filesystem location for path-origin plugins.
	Dir string
	// Package is the distribution package for package-origin plugins.
	Package string
	// Capabilities are the statically declared capability patterns.
	Capabilities []string
	// MinHost is an optional semver constraint on the host version.
	MinHost string
	// New constructs the plugin instance.
	New func() Plugin
}

// PackageID returns the descriptor's distribution identity, used for
// blacklisting: the declared package for package-origin plugins, the
// plugin directory name otherwise.
func (d *Descriptor) PackageID() string {
	if d.Origin == OriginPackage {
		if d.Package != "" {
			return d.Package
		}
		return d.Name
	}
	return filepath.Base(d.Dir)
}
