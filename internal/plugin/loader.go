// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/stockroom/stockroom/internal/host"
	"github.com/stockroom/stockroom/internal/observability"
)

// LoaderConfig wires the loader to its collaborators.
type LoaderConfig struct {
	Discovery   *Discovery
	Registry    *Registry
	Records     RecordStore
	Apps        *host.AppRegistry
	Admin       *host.AdminSite
	Settings    *host.SettingsCatalog
	Routes      *host.RouteTable
	Maintenance *host.Maintenance

	// BaseDir is the host's base directory, used to relativize
	// path-origin plugin locations into dotted module paths.
	BaseDir string
	// HostVersion is checked against descriptor min-host constraints.
	HostVersion string

	// Testing forces every discovered plugin active, makes the record
	// store optional, and skips persisting the disabled flag on fault.
	Testing bool
	// EnableSettings and EnableApps gate the two capability binders.
	// Both are treated as on under Testing.
	EnableSettings bool
	EnableApps     bool

	// Metrics is optional.
	Metrics *observability.LoaderMetrics
}

// Loader orchestrates plugin activation: it resolves persisted flags,
// instantiates enabled plugins, binds their capabilities into the host
// and supervises the registry hot-reload. One misbehaving plugin is
// blacklisted and retried around, never allowed to block the rest.
//
// Load, Unload and Reload must be serialized by the caller.
type Loader struct {
	discovery *Discovery
	registry  *Registry
	records   RecordStore
	settings  *settingsBinder
	apps      *appBinder
	super     *reloadSupervisor
	maint     *host.Maintenance
	metrics   *observability.LoaderMetrics

	testing     bool
	hostVersion *semver.Version
}

// NewLoader creates a loader from its collaborators.
func NewLoader(cfg LoaderConfig) (*Loader, error) {
	hostVersion, err := semver.NewVersion(cfg.HostVersion)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("host_version", cfg.HostVersion).Wrap(err)
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Loader{
		discovery: cfg.Discovery,
		registry:  registry,
		records:   cfg.Records,
		settings: &settingsBinder{
			catalog: cfg.Settings,
			enabled: cfg.EnableSettings || cfg.Testing,
		},
		apps: newAppBinder(cfg.Apps, cfg.BaseDir, cfg.EnableApps || cfg.Testing),
		super: &reloadSupervisor{
			apps:   cfg.Apps,
			admin:  cfg.Admin,
			routes: cfg.Routes,
		},
		maint:       cfg.Maintenance,
		metrics:     cfg.Metrics,
		testing:     cfg.Testing,
		hostVersion: hostVersion,
	}, nil
}

// Registry exposes the plugin registry for read-side observers.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// Load discovers, initializes and activates all plugins.
//
// The whole multi-pass loop runs under maintenance mode, restored to
// its prior value on exit. A store that is not provisioned yet aborts
// the attempt with ErrStoreNotReady for the caller to retry later; a
// plugin fault blacklists the offending package and restarts the loop,
// so each failure strictly shrinks the candidate set.
func (l *Loader) Load(ctx context.Context) error {
	slog.InfoContext(ctx, "start loading plugins")
	start := time.Now()
	restore := l.maint.Scope()
	defer restore()
	defer func() { l.metrics.ObserveReload(time.Since(start)) }()

	descriptors, err := l.discovery.Discover(ctx)
	if err != nil {
		return err
	}

	excluded := make(map[string]struct{})
	// Each fault removes at least one package, so N+1 passes always
	// suffice for N descriptors.
	maxPasses := len(descriptors) + 1

	for pass := 0; pass < maxPasses; pass++ {
		l.metrics.RecordPass()

		err := l.initPlugins(ctx, descriptors, excluded)
		if err == nil {
			err = l.activate(ctx)
		}
		if err == nil {
			break
		}

		if errors.Is(err, ErrStoreNotReady) {
			slog.InfoContext(ctx, "record store not accessible while loading plugins")
			return err
		}
		var le *LoadError
		if !errors.As(err, &le) {
			return err
		}
		if recoverErr := l.blacklist(ctx, descriptors, le, excluded); recoverErr != nil {
			return recoverErr
		}
	}

	active, inactive := l.registry.Counts()
	l.metrics.SetPluginCounts(active, inactive)
	slog.InfoContext(ctx, "finished loading plugins", "active", active, "inactive", inactive)
	return nil
}

// Unload deactivates all plugins and clears the registry, leaving only
// the built-in module set live.
func (l *Loader) Unload(ctx context.Context) error {
	slog.InfoContext(ctx, "start unloading plugins")
	restore := l.maint.Scope()
	defer restore()

	l.registry.Reset()
	l.super.deactivate(l.apps)
	l.settings.deactivate()

	l.metrics.SetPluginCounts(l.registry.Counts())
	slog.InfoContext(ctx, "finished unloading plugins")
	return nil
}

// Reload unloads and loads again under a single maintenance scope.
func (l *Loader) Reload(ctx context.Context) error {
	slog.InfoContext(ctx, "start reloading plugins")
	restore := l.maint.Scope()
	defer restore()

	if err := l.Unload(ctx); err != nil {
		return err
	}
	if err := l.Load(ctx); err != nil {
		return err
	}
	slog.InfoContext(ctx, "finished reloading plugins")
	return nil
}

// initPlugins runs one INIT pass: resolve records, decide eligibility,
// instantiate eligible plugins and populate the registry.
func (l *Loader) initPlugins(ctx context.Context, descriptors []Descriptor, excluded map[string]struct{}) error {
	l.registry.Reset()

	for i := range descriptors {
		d := &descriptors[i]

		rec, created, err := l.records.GetOrCreate(ctx, d.Slug, d.Name)
		if err != nil {
			if errors.Is(err, ErrStoreNotReady) && l.testing {
				// Persistence is optional under test configuration.
				rec = nil
			} else {
				return err
			}
		}
		if created {
			slog.DebugContext(ctx, "created plugin record", "slug", d.Slug)
		}

		eligible := l.testing || (rec != nil && rec.Active)
		if !eligible {
			if err := l.registry.MarkInactive(d.Slug, rec); err != nil {
				return err
			}
			continue
		}

		if _, blocked := excluded[d.PackageID()]; blocked {
			// The plugin faulted earlier in this load call. Persist the
			// disabled flag so an admin has to re-enable it explicitly,
			// except under test configuration.
			if !l.testing && rec != nil {
				rec.Active = false
				if err := l.records.SetActive(ctx, d.Slug, false); err != nil {
					slog.ErrorContext(ctx, "failed to persist disabled flag", "slug", d.Slug, "error", err)
				}
			}
			if err := l.registry.MarkInactive(d.Slug, rec); err != nil {
				return err
			}
			continue
		}

		active, err := l.instantiate(d)
		if err != nil {
			return err
		}
		active.Record = rec
		if err := l.registry.Insert(active); err != nil {
			return err
		}
		slog.InfoContext(ctx, "loaded plugin", "slug", d.Slug, "name", d.Name)
	}

	return nil
}

// instantiate constructs the plugin object, guarding against constructor
// panics and host-version mismatches. Both are faults of the
// descriptor's package.
func (l *Loader) instantiate(d *Descriptor) (active *Active, err error) {
	if d.MinHost != "" {
		constraint, cerr := semver.NewConstraint(d.MinHost)
		if cerr != nil {
			return nil, NewLoadError(d.PackageID(), cerr)
		}
		if !constraint.Check(l.hostVersion) {
			return nil, NewLoadError(d.PackageID(),
				oops.Code("HOST_VERSION_MISMATCH").
					With("constraint", d.MinHost).
					With("host", l.hostVersion.String()).
					Errorf("host version %s does not satisfy %s", l.hostVersion, d.MinHost))
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			active = nil
			err = NewLoadError(d.PackageID(), oops.Errorf("plugin constructor panicked: %v", rec))
		}
	}()

	instance := d.New()
	if instance == nil {
		return nil, NewLoadError(d.PackageID(), oops.Errorf("plugin factory returned nil"))
	}

	return &Active{
		Slug:         d.Slug,
		Name:         d.Name,
		Origin:       d.Origin,
		Dir:          d.Dir,
		Package:      d.PackageID(),
		Capabilities: d.Capabilities,
		Instance:     instance,
	}, nil
}

// activate runs the capability binders and the reload supervisor for
// the current active set.
func (l *Loader) activate(ctx context.Context) error {
	plugins := l.registry.Active()
	slog.InfoContext(ctx, "activating plugins", "count", len(plugins))

	if err := l.settings.activate(plugins); err != nil {
		return err
	}
	changed := l.apps.activate(plugins)
	return l.super.activate(l.apps, changed, false)
}

// blacklist handles a plugin fault: record it, restore the host to the
// built-in module set and exclude the offending package for the rest of
// this load call.
func (l *Loader) blacklist(ctx context.Context, descriptors []Descriptor, le *LoadError, excluded map[string]struct{}) error {
	slog.ErrorContext(ctx, "plugin fault", "package", le.Package, "error", le.Err)
	l.metrics.RecordFault(le.Package)

	if !l.testing {
		faultID := ulid.Make().String()
		for i := range descriptors {
			if descriptors[i].PackageID() != le.Package {
				continue
			}
			if err := l.records.SetFault(ctx, descriptors[i].Slug, faultID, le.Err.Error()); err != nil {
				slog.ErrorContext(ctx, "failed to record plugin fault", "slug", descriptors[i].Slug, "error", err)
			}
		}
	}

	l.registry.Reset()
	l.settings.deactivate()
	if err := l.super.recover(l.apps); err != nil {
		// Recovery reloads only built-ins; failure here is fatal.
		return err
	}

	excluded[le.Package] = struct{}{}
	return nil
}
