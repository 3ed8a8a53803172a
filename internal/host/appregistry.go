// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

// Package host holds the host-side collaborators the plugin loader
// drives: the app/model registry, the settings catalog, the admin
// binding site, the route table and the maintenance gate.
package host

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
)

// ErrAppNotFound is returned by GetAppConfig for unknown app names.
var ErrAppNotFound = oops.Code("APP_NOT_FOUND").Errorf("app config not found")

// InstallError identifies the module path whose installation failed
// during Populate or SetInstalled. The loader maps the path back to the
// owning distribution package when deciding what to blacklist.
type InstallError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	return "install " + e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// AppConfig describes one installed app module.
//
// Model registration is two-phase: LoadModels returns the model names the
// app defines, and LoadAdmin binds them to the admin site. Both are
// re-executable so the registry can reconcile state after a hot swap.
type AppConfig struct {
	// Name is the short app name, the last element of Path. The
	// registry sets it on install; a provider-declared value is
	// overwritten.
	Name string
	// Path is the dotted module path the app is installed under.
	Path string
	// Models holds the currently registered model names. Reset on a
	// full reload and refilled by LoadModels.
	Models []string

	// LoadModels returns the app's model names. May be nil for apps
	// without models.
	LoadModels func() []string
	// LoadAdmin registers the app's models with the admin site. May be
	// nil for apps without an admin submodule.
	LoadAdmin func(*AdminSite)
}

// AppProvider resolves a dotted module path to its app configuration.
// Providers stand in for module importability: a path without a provider
// cannot be installed.
type AppProvider func() *AppConfig

// AppRegistry is the host's internal module-configuration registry.
//
// The registry mirrors a framework app cache: an ordered installed list,
// a name-keyed config map, and a global model table. It supports two
// reload depths - Populate after a destructive wipe, and SetInstalled as
// the non-destructive hot-swap primitive.
type AppRegistry struct {
	mu        sync.RWMutex
	providers map[string]AppProvider // dotted path -> provider
	installed []string               // ordered dotted paths
	configs   map[string]*AppConfig  // app name -> config
	allModels map[string][]string    // dotted path -> model names
	ready     bool

	// reloading is tested before taking mu so a provider that triggers
	// a nested reload during an in-flight swap is ignored rather than
	// deadlocking on the lock.
	reloading atomic.Bool
}

// NewAppRegistry creates an empty registry with the given built-in app
// providers, keyed by dotted path. The built-ins are installed in the
// order given.
func NewAppRegistry(builtins []string, providers map[string]AppProvider) *AppRegistry {
	reg := &AppRegistry{
		providers: make(map[string]AppProvider, len(providers)),
		configs:   make(map[string]*AppConfig),
		allModels: make(map[string][]string),
		installed: slices.Clone(builtins),
	}
	for path, p := range providers {
		reg.providers[path] = p
	}
	return reg
}

// RegisterProvider makes a dotted path installable. Called by the app
// binder for each plugin-contributed module before installing it.
func (r *AppRegistry) RegisterProvider(path string, p AppProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[path] = p
}

// UnregisterProvider removes a provider registration.
func (r *AppRegistry) UnregisterProvider(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, path)
}

// Installed returns a copy of the ordered installed-module list.
func (r *AppRegistry) Installed() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.installed)
}

// Append adds a dotted path to the installed list if absent. Reports
// whether the list changed.
func (r *AppRegistry) Append(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.installed, path) {
		return false
	}
	r.installed = append(r.installed, path)
	return true
}

// Remove drops a dotted path from the installed list.
func (r *AppRegistry) Remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.Index(r.installed, path); i >= 0 {
		r.installed = slices.Delete(r.installed, i, i+1)
	}
}

// Ready reports whether the registry has been populated at least once
// since the last wipe.
func (r *AppRegistry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

// ClearCache wipes all cached app and model state and resets the
// readiness flag. Required before Populate: the hot-swap primitive
// assumes a never-populated registry.
func (r *AppRegistry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = make(map[string]*AppConfig)
	r.allModels = make(map[string][]string)
	r.ready = false
}

// Populate loads every app in the installed list from scratch. The
// registry must have been wiped first (ClearCache); populating a
// registry that still holds prior state corrupts later lookups.
func (r *AppRegistry) Populate(paths []string) error {
	if !r.reloading.CompareAndSwap(false, true) {
		return nil
	}
	defer r.reloading.Store(false)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		return oops.Code("APP_REGISTRY_POPULATED").Errorf("registry already populated, wipe before repopulating")
	}
	for _, path := range paths {
		if err := r.installLocked(path); err != nil {
			return err
		}
	}
	r.ready = true
	return nil
}

// SetInstalled hot-swaps the registry to match the given module list
// without a destructive wipe: apps no longer listed are dropped, new
// ones are installed, existing ones are kept as-is. Nested invocations
// during an in-flight swap are ignored.
func (r *AppRegistry) SetInstalled(paths []string) error {
	if !r.reloading.CompareAndSwap(false, true) {
		return nil
	}
	defer r.reloading.Store(false)

	r.mu.Lock()
	defer r.mu.Unlock()

	keep := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		keep[path] = struct{}{}
	}
	for path := range r.allModels {
		if _, ok := keep[path]; !ok {
			r.dropLocked(path)
		}
	}
	for _, path := range paths {
		if _, ok := r.allModels[path]; ok {
			continue
		}
		if err := r.installLocked(path); err != nil {
			return err
		}
	}
	return nil
}

// installLocked resolves a path via its provider and registers its
// models. Provider panics are translated into errors so a faulting
// module surfaces as a load failure rather than killing the process.
func (r *AppRegistry) installLocked(path string) (err error) {
	provider, ok := r.providers[path]
	if !ok {
		return &InstallError{Path: path, Err: oops.Code("APP_UNRESOLVABLE").Errorf("no provider registered for module path %q", path)}
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = &InstallError{Path: path, Err: oops.Code("APP_INSTALL_PANIC").Errorf("app install panicked: %v", rec)}
		}
	}()

	cfg := provider()
	if cfg == nil {
		return &InstallError{Path: path, Err: oops.Code("APP_UNRESOLVABLE").Errorf("provider returned no config for %q", path)}
	}
	// The name is derived from the path, never provider-declared: Sync,
	// deactivation and route rebuilds all look configs up by AppName.
	cfg.Path = path
	cfg.Name = AppName(path)
	if cfg.LoadModels != nil {
		cfg.Models = cfg.LoadModels()
	}
	r.configs[cfg.Name] = cfg
	r.allModels[path] = slices.Clone(cfg.Models)
	return nil
}

// dropLocked removes an app and its model registrations.
func (r *AppRegistry) dropLocked(path string) {
	name := AppName(path)
	delete(r.configs, name)
	delete(r.allModels, path)
}

// GetAppConfig returns the config for an app name.
func (r *AppRegistry) GetAppConfig(name string) (*AppConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	if !ok {
		return nil, oops.With("app", name).Wrap(ErrAppNotFound)
	}
	return cfg, nil
}

// Models returns the model names registered under a dotted path.
func (r *AppRegistry) Models(path string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.allModels[path])
}

// UnregisterModel removes one model from the global model table.
func (r *AppRegistry) UnregisterModel(path, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	models := r.allModels[path]
	if i := slices.Index(models, model); i >= 0 {
		r.allModels[path] = slices.Delete(models, i, i+1)
	}
}

// DropApp clears the registry state for a dotted path entirely so the
// same module can be reinstalled cleanly on a later load.
func (r *AppRegistry) DropApp(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(path)
}

// Sync reconciles reflection artifacts a hot swap can desync, for the
// given plugin-contributed paths: re-runs a model loader whose app
// reports zero models despite having one, and re-runs the admin loader
// when any model is missing from the admin site.
func (r *AppRegistry) Sync(admin *AdminSite, paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, path := range paths {
		cfg, ok := r.configs[AppName(path)]
		if !ok {
			// The app was never loaded correctly.
			slog.Debug("app not found during resync", "path", path)
			continue
		}

		if cfg.LoadModels != nil && len(cfg.Models) == 0 {
			cfg.Models = cfg.LoadModels()
			r.allModels[path] = slices.Clone(cfg.Models)
		}

		missing := false
		for _, model := range cfg.Models {
			if !admin.IsRegistered(cfg.Name, model) {
				missing = true
				break
			}
		}
		if missing && cfg.LoadAdmin != nil {
			cfg.LoadAdmin(admin)
		}
	}
}

// AppName returns the short app name for a dotted module path.
func AppName(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}
