// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

// Package plugin provides plugin discovery, activation and lifecycle
// supervision for the host's extension modules.
package plugin

import (
	"github.com/gobwas/glob"

	"github.com/stockroom/stockroom/internal/host"
)

// Capability names plugins may declare. Declared capabilities use
// glob patterns with '.' as the segment separator, matching the
// grant syntax used elsewhere in the host.
const (
	// CapApp marks a plugin that contributes an app module.
	CapApp = "app"
	// CapSettings marks a plugin that contributes global settings.
	CapSettings = "globalsettings"
)

// Meta describes a plugin instance's identity.
type Meta struct {
	Name        string
	Version     string
	Description string
	Author      string
}

// Plugin is the contract an instantiated extension module fulfils.
// Optional behaviors are declared on the Descriptor and exposed via the
// SettingsProvider and AppProvider interfaces.
type Plugin interface {
	Meta() Meta
}

// SettingsProvider is implemented by plugins declaring the
// globalsettings capability. The returned option set is merged into the
// host's settings catalog, keyed by setting name.
type SettingsProvider interface {
	Plugin
	SettingsOptions() map[string]host.Option
}

// AppProvider is implemented by plugins declaring the app capability.
// The returned config describes the sub-application the plugin mounts
// into the host's module registry.
type AppProvider interface {
	Plugin
	App() *host.AppConfig
}

// HasCapability reports whether a declared capability set covers the
// wanted capability. Declared entries are glob patterns ('.'-separated),
// so "app" matches "app" and "**" matches everything.
func HasCapability(declared []string, want string) bool {
	for _, pattern := range declared {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			// Invalid patterns are rejected at manifest validation;
			// anything that slips through cannot match.
			continue
		}
		if g.Match(want) {
			return true
		}
	}
	return false
}
