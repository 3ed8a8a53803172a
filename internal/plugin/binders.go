// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin

import (
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/stockroom/stockroom/internal/host"
)

// settingsBinder merges plugin-declared option sets into the global
// settings catalog and removes them on deactivation.
type settingsBinder struct {
	catalog *host.SettingsCatalog
	enabled bool
}

// activate merges option sets for every active plugin declaring the
// globalsettings capability. A merge failure is a fault of the
// contributing plugin's package.
func (b *settingsBinder) activate(plugins []*Active) error {
	if !b.enabled {
		return nil
	}
	slog.Info("registering plugin global settings")
	for _, a := range plugins {
		if !HasCapability(a.Capabilities, CapSettings) {
			continue
		}
		provider, ok := a.Instance.(SettingsProvider)
		if !ok {
			continue
		}
		if err := b.catalog.MergeOptions(a.Slug, provider.SettingsOptions()); err != nil {
			return NewLoadError(a.Package, err)
		}
	}
	return nil
}

// deactivate removes exactly the option keys the binder added.
func (b *settingsBinder) deactivate() {
	b.catalog.RemoveTracked()
}

// appBinder adds plugin-declared app modules to the host's installed
// list and tracks them for later removal.
type appBinder struct {
	apps    *host.AppRegistry
	baseDir string
	enabled bool

	tracked   []string          // dotted paths added this cycle
	pkgByPath map[string]string // dotted path -> distribution package
}

func newAppBinder(apps *host.AppRegistry, baseDir string, enabled bool) *appBinder {
	return &appBinder{
		apps:      apps,
		baseDir:   baseDir,
		enabled:   enabled,
		pkgByPath: make(map[string]string),
	}
}

// modulePath computes the dotted module path for an active plugin: a
// filesystem location relative to the host base dir joined with '.',
// or the declared name for package-origin plugins. A location outside
// the base dir is treated as shipped-as-package.
func (b *appBinder) modulePath(a *Active) string {
	if a.Origin == OriginPackage {
		return a.Name
	}
	rel, err := filepath.Rel(b.baseDir, a.Dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return a.Name
	}
	return strings.Join(strings.Split(filepath.ToSlash(rel), "/"), ".")
}

// activate installs app modules for every active plugin declaring the
// app capability. Re-adding an already-present path is a no-op.
// Reports whether the installed list changed.
func (b *appBinder) activate(plugins []*Active) bool {
	if !b.enabled {
		return false
	}
	slog.Info("registering plugin apps")
	changed := false
	for _, a := range plugins {
		if !HasCapability(a.Capabilities, CapApp) {
			continue
		}
		provider, ok := a.Instance.(AppProvider)
		if !ok {
			continue
		}
		path := b.modulePath(a)
		b.apps.RegisterProvider(path, provider.App)
		b.pkgByPath[path] = a.Package
		if b.apps.Append(path) {
			if !slices.Contains(b.tracked, path) {
				b.tracked = append(b.tracked, path)
			}
			changed = true
		}
	}
	return changed
}

// packageFor maps a dotted module path back to its distribution
// package, falling back to the app name for untracked paths.
func (b *appBinder) packageFor(path string) string {
	if pkg, ok := b.pkgByPath[path]; ok {
		return pkg
	}
	return host.AppName(path)
}

// clean removes every tracked path from the installed list and drops
// the tracking state. Run on blacklist recovery and on unload.
func (b *appBinder) clean() {
	for _, path := range b.tracked {
		b.apps.Remove(path)
		b.apps.UnregisterProvider(path)
	}
	b.tracked = nil
	b.pkgByPath = make(map[string]string)
}
