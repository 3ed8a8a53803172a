// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin

import (
	"errors"
	"log/slog"

	"github.com/stockroom/stockroom/internal/host"
)

// reloadSupervisor performs the host registry hot-swap and the
// post-swap reconciliation: model/admin resync and route rebuild.
type reloadSupervisor struct {
	apps   *host.AppRegistry
	admin  *host.AdminSite
	routes *host.RouteTable

	// loaded flips after the first populate; until then every reload
	// must be full because the hot-swap primitive assumes a populated
	// registry.
	loaded bool
}

// reload applies the current installed list to the app registry.
// A full reload wipes the registry before repopulating; the incremental
// path uses the hot-swap primitive only. Install failures are
// translated into load errors attributed to the failing package.
func (s *reloadSupervisor) reload(binder *appBinder, full bool) error {
	installed := s.apps.Installed()

	if full {
		s.apps.ClearCache()
		if err := s.apps.Populate(installed); err != nil {
			return s.asLoadError(binder, err)
		}
		s.loaded = true
	}

	if err := s.apps.SetInstalled(installed); err != nil {
		return s.asLoadError(binder, err)
	}
	return nil
}

// activate runs the reload sequence after the app binder: reload when
// something changed, a reload is forced or the registry was never
// populated, then resync models/admin, then rebuild the route table.
// Route rebuild must come last so admin routes see the re-registered
// models.
func (s *reloadSupervisor) activate(binder *appBinder, changed, force bool) error {
	if !changed && !force && s.loaded {
		return nil
	}

	if !s.loaded || force {
		if err := s.reload(binder, true); err != nil {
			return err
		}
	}
	if err := s.reload(binder, false); err != nil {
		return err
	}

	s.apps.Sync(s.admin, binder.tracked)
	s.rebuildRoutes(binder)
	return nil
}

// deactivate undoes the app binder's work: unregisters every tracked
// module's models from the admin site and the global model table,
// removes the paths from the installed list, reloads without the
// destructive wipe, and rebuilds routes.
func (s *reloadSupervisor) deactivate(binder *appBinder) {
	for _, path := range binder.tracked {
		name := host.AppName(path)
		if _, err := s.apps.GetAppConfig(name); err != nil {
			// The app was never loaded right, nothing to undo.
			slog.Debug("app not found during deactivation", "path", path)
			continue
		}
		for _, model := range s.apps.Models(path) {
			s.admin.Unregister(name, model)
			s.apps.UnregisterModel(path, model)
		}
		s.apps.DropApp(path)
	}

	binder.clean()
	s.loaded = false

	if err := s.reload(binder, false); err != nil {
		// Deactivation reloads only remove modules; a failure here
		// means a built-in is broken and there is nothing to degrade to.
		slog.Error("reload during deactivation failed", "error", err)
	}
	s.rebuildRoutes(binder)
}

// recover restores the host registry to the built-in module set after a
// blacklist event. The binder's tracked modules are removed first, then
// a forced full reload repopulates from built-ins only.
func (s *reloadSupervisor) recover(binder *appBinder) error {
	binder.clean()
	return s.activate(binder, false, true)
}

// rebuildRoutes replaces the sentinel subrouters from live state.
func (s *reloadSupervisor) rebuildRoutes(binder *appBinder) {
	if s.routes == nil {
		return
	}
	apps := make([]*host.AppConfig, 0, len(binder.tracked))
	for _, path := range binder.tracked {
		if cfg, err := s.apps.GetAppConfig(host.AppName(path)); err == nil {
			apps = append(apps, cfg)
		}
	}
	s.routes.Rebuild(s.admin, apps)
}

// asLoadError converts an app install failure into a LoadError naming
// the owning distribution package.
func (s *reloadSupervisor) asLoadError(binder *appBinder, err error) error {
	var ie *host.InstallError
	if errors.As(err, &ie) {
		return NewLoadError(binder.packageFor(ie.Path), err)
	}
	return err
}
