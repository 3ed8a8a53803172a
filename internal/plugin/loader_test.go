// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockroom/stockroom/internal/host"
	"github.com/stockroom/stockroom/internal/plugin"
	"github.com/stockroom/stockroom/internal/plugin/memory"
)

// fakePlugin satisfies every capability interface; the declared
// capability patterns on the descriptor decide which binders run.
type fakePlugin struct {
	meta     plugin.Meta
	settings map[string]host.Option
	app      *host.AppConfig
}

func (p *fakePlugin) Meta() plugin.Meta { return p.meta }

func (p *fakePlugin) SettingsOptions() map[string]host.Option { return p.settings }

func (p *fakePlugin) App() *host.AppConfig { return p.app }

// testHost bundles a loader with its collaborators.
type testHost struct {
	loader   *plugin.Loader
	records  *memory.Store
	apps     *host.AppRegistry
	admin    *host.AdminSite
	settings *host.SettingsCatalog
	routes   *host.RouteTable
	maint    *host.Maintenance
}

func newTestHost(t *testing.T, testing bool) *testHost {
	t.Helper()

	apps := host.NewAppRegistry([]string{"core"}, map[string]host.AppProvider{
		"core": func() *host.AppConfig {
			return &host.AppConfig{
				Name:       "core",
				LoadModels: func() []string { return []string{"item"} },
			}
		},
	})

	h := &testHost{
		records:  memory.NewStore(),
		apps:     apps,
		admin:    host.NewAdminSite(),
		settings: host.NewSettingsCatalog(map[string]host.Option{"HOST_NAME": {Default: "stockroom"}}),
		routes:   host.NewRouteTable(nil),
		maint:    host.NewMaintenance(),
	}

	loader, err := plugin.NewLoader(plugin.LoaderConfig{
		Discovery:      plugin.NewDiscovery(nil, testing, testing),
		Records:        h.records,
		Apps:           h.apps,
		Admin:          h.admin,
		Settings:       h.settings,
		Routes:         h.routes,
		Maintenance:    h.maint,
		BaseDir:        t.TempDir(),
		HostVersion:    "1.0.0",
		Testing:        testing,
		EnableSettings: true,
		EnableApps:     true,
	})
	require.NoError(t, err)
	h.loader = loader
	return h
}

// enable persists the active flag for a slug, the way an admin would.
func (h *testHost) enable(t *testing.T, slug, name string) {
	t.Helper()
	_, _, err := h.records.GetOrCreate(context.Background(), slug, name)
	require.NoError(t, err)
	require.NoError(t, h.records.SetActive(context.Background(), slug, true))
}

func registerAppPlugin(name, pkg string, models ...string) {
	plugin.RegisterEntryPoint(plugin.Descriptor{
		Name:         name,
		Package:      pkg,
		Capabilities: []string{"app"},
		New: func() plugin.Plugin {
			return &fakePlugin{
				meta: plugin.Meta{Name: name},
				app: &host.AppConfig{
					LoadModels: func() []string { return models },
					LoadAdmin: func(admin *host.AdminSite) {
						for _, m := range models {
							admin.Register(name, m)
						}
					},
				},
			}
		},
	})
}

func TestLoader_Load_InactiveByDefault(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	registerAppPlugin("extras", "stockroom-extras", "widget")

	h := newTestHost(t, false)
	require.NoError(t, h.loader.Load(context.Background()))

	// Discovery creates the record, but new plugins start disabled.
	active, inactive := h.loader.Registry().Counts()
	assert.Zero(t, active)
	assert.Equal(t, 1, inactive)

	records, err := h.records.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "extras", records[0].Slug)
	assert.False(t, records[0].Active)
}

func TestLoader_Load_ActivatesEnabled(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	registerAppPlugin("extras", "stockroom-extras", "widget")

	h := newTestHost(t, false)
	h.enable(t, "extras", "extras")

	require.NoError(t, h.loader.Load(context.Background()))

	a, ok := h.loader.Registry().Get("extras")
	require.True(t, ok)
	assert.Equal(t, "stockroom-extras", a.Package)
	require.NotNil(t, a.Record)

	// The app module is installed and its models reach the admin site.
	assert.Contains(t, h.apps.Installed(), "extras")
	assert.Equal(t, []string{"widget"}, h.apps.Models("extras"))
	assert.True(t, h.admin.IsRegistered("extras", "widget"))

	// Route table exposes the plugin subtree after rebuild.
	_, ok = h.routes.Resolve("plugin-extras")
	assert.True(t, ok)
}

func TestLoader_Load_TestingForcesActive(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	registerAppPlugin("extras", "stockroom-extras", "widget")

	h := newTestHost(t, true)
	require.NoError(t, h.loader.Load(context.Background()))

	_, ok := h.loader.Registry().Get("extras")
	assert.True(t, ok, "testing mode activates without a persisted flag")
}

func TestLoader_Load_TestingToleratesNotReadyStore(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	registerAppPlugin("extras", "stockroom-extras", "widget")

	h := newTestHost(t, true)
	h.records.NotReady = true

	require.NoError(t, h.loader.Load(context.Background()))

	a, ok := h.loader.Registry().Get("extras")
	require.True(t, ok)
	assert.Nil(t, a.Record, "no record when the store is unavailable under testing")
}

func TestLoader_Load_StoreNotReady(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	registerAppPlugin("extras", "stockroom-extras", "widget")

	h := newTestHost(t, false)
	h.records.NotReady = true

	err := h.loader.Load(context.Background())
	assert.ErrorIs(t, err, plugin.ErrStoreNotReady,
		"an unprovisioned store aborts the load for the caller to retry")
}

func TestLoader_Load_MaintenanceRestored(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()

	h := newTestHost(t, false)
	require.NoError(t, h.loader.Load(context.Background()))
	assert.False(t, h.maint.Enabled(), "maintenance off afterwards when it was off before")

	h.maint.Set(true)
	require.NoError(t, h.loader.Load(context.Background()))
	assert.True(t, h.maint.Enabled(), "a pre-existing maintenance window is preserved")
}

func TestLoader_Load_FaultIsolation(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	registerAppPlugin("extras", "stockroom-extras", "widget")
	plugin.RegisterEntryPoint(plugin.Descriptor{
		Name:    "broken",
		Package: "stockroom-broken",
		New:     func() plugin.Plugin { panic("constructor exploded") },
	})

	h := newTestHost(t, false)
	h.enable(t, "extras", "extras")
	h.enable(t, "broken", "broken")

	require.NoError(t, h.loader.Load(context.Background()),
		"one faulting plugin must not fail the load")

	_, ok := h.loader.Registry().Get("extras")
	assert.True(t, ok, "healthy plugin survives the fault")
	_, ok = h.loader.Registry().Get("broken")
	assert.False(t, ok)

	// The fault is persisted and the plugin disabled for the next boot.
	records, err := h.records.List(context.Background())
	require.NoError(t, err)
	for _, rec := range records {
		if rec.Slug != "broken" {
			continue
		}
		assert.False(t, rec.Active)
		assert.NotEmpty(t, rec.FaultID)
		assert.Contains(t, rec.FaultMessage, "constructor exploded")
	}

	// Core built-in is intact after the recovery reload.
	_, err = h.apps.GetAppConfig("core")
	assert.NoError(t, err)
}

func TestLoader_Load_BinderFaultIsolation(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	registerAppPlugin("extras", "stockroom-extras", "widget")
	plugin.RegisterEntryPoint(plugin.Descriptor{
		Name:         "flaky",
		Package:      "stockroom-flaky",
		Capabilities: []string{"app"},
		New: func() plugin.Plugin {
			return &fakePlugin{
				meta: plugin.Meta{Name: "flaky"},
				app: &host.AppConfig{
					LoadModels: func() []string { panic("model table exploded") },
				},
			}
		},
	})

	h := newTestHost(t, false)
	h.enable(t, "extras", "extras")
	h.enable(t, "flaky", "flaky")

	require.NoError(t, h.loader.Load(context.Background()),
		"a fault during app install must not fail the load")

	_, ok := h.loader.Registry().Get("extras")
	assert.True(t, ok, "healthy plugin survives the install fault")
	_, ok = h.loader.Registry().Get("flaky")
	assert.False(t, ok, "plugin faulting past instantiation still ends up inactive")

	records, err := h.records.List(context.Background())
	require.NoError(t, err)
	for _, rec := range records {
		if rec.Slug != "flaky" {
			continue
		}
		assert.False(t, rec.Active)
		assert.Contains(t, rec.FaultMessage, "model table exploded")
	}
}

func TestLoader_Load_DeclaredAppNameOverridden(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	plugin.RegisterEntryPoint(plugin.Descriptor{
		Name:         "extras",
		Package:      "stockroom-extras",
		Capabilities: []string{"app"},
		New: func() plugin.Plugin {
			return &fakePlugin{
				meta: plugin.Meta{Name: "extras"},
				app: &host.AppConfig{
					Name:       "Fancy",
					LoadModels: func() []string { return []string{"widget"} },
					LoadAdmin: func(admin *host.AdminSite) {
						admin.Register("extras", "widget")
					},
				},
			}
		},
	})

	h := newTestHost(t, false)
	h.enable(t, "extras", "extras")

	require.NoError(t, h.loader.Load(context.Background()))

	cfg, err := h.apps.GetAppConfig("extras")
	require.NoError(t, err, "configs are keyed by the path-derived name, not the declared one")
	assert.Equal(t, "extras", cfg.Name)
	assert.True(t, h.admin.IsRegistered("extras", "widget"),
		"admin bindings must be present even when the app declares its own name")
}

func TestLoader_Load_TwoFaultsWithinPassBound(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()

	// The healthy plugin is reinstantiated on every pass, so its
	// constructor count is the number of passes taken.
	passes := 0
	plugin.RegisterEntryPoint(plugin.Descriptor{
		Name:    "alpha",
		Package: "stockroom-alpha",
		New: func() plugin.Plugin {
			passes++
			return &fakePlugin{meta: plugin.Meta{Name: "alpha"}}
		},
	})
	plugin.RegisterEntryPoint(plugin.Descriptor{
		Name:    "bravo",
		Package: "stockroom-bravo",
		New:     func() plugin.Plugin { panic("bravo exploded") },
	})
	plugin.RegisterEntryPoint(plugin.Descriptor{
		Name:    "charlie",
		Package: "stockroom-charlie",
		New:     func() plugin.Plugin { panic("charlie exploded") },
	})

	h := newTestHost(t, false)
	h.enable(t, "alpha", "alpha")
	h.enable(t, "bravo", "bravo")
	h.enable(t, "charlie", "charlie")

	require.NoError(t, h.loader.Load(context.Background()),
		"two faulting plugins must still converge")

	assert.LessOrEqual(t, passes, 4, "three descriptors allow at most four passes")
	assert.Equal(t, 3, passes, "each fault costs exactly one extra pass")

	_, ok := h.loader.Registry().Get("alpha")
	assert.True(t, ok)
	_, ok = h.loader.Registry().Get("bravo")
	assert.False(t, ok)
	_, ok = h.loader.Registry().Get("charlie")
	assert.False(t, ok)
}

func TestLoader_Load_FaultInTestingSkipsPersistence(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	plugin.RegisterEntryPoint(plugin.Descriptor{
		Name:    "broken",
		Package: "stockroom-broken",
		New:     func() plugin.Plugin { panic("constructor exploded") },
	})

	h := newTestHost(t, true)
	require.NoError(t, h.loader.Load(context.Background()))

	records, err := h.records.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].FaultID, "faults are not persisted under testing")
}

func TestLoader_Load_MinHostGate(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	plugin.RegisterEntryPoint(plugin.Descriptor{
		Name:    "future",
		Package: "stockroom-future",
		MinHost: ">= 99.0.0",
		New:     func() plugin.Plugin { return &fakePlugin{meta: plugin.Meta{Name: "future"}} },
	})

	h := newTestHost(t, false)
	h.enable(t, "future", "future")

	require.NoError(t, h.loader.Load(context.Background()))

	_, ok := h.loader.Registry().Get("future")
	assert.False(t, ok, "host version 1.0.0 cannot satisfy >= 99.0.0")
}

func TestLoader_Load_NilFactoryResult(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	plugin.RegisterEntryPoint(plugin.Descriptor{
		Name:    "hollow",
		Package: "stockroom-hollow",
		New:     func() plugin.Plugin { return nil },
	})

	h := newTestHost(t, false)
	h.enable(t, "hollow", "hollow")

	require.NoError(t, h.loader.Load(context.Background()))
	_, ok := h.loader.Registry().Get("hollow")
	assert.False(t, ok)
}

func TestLoader_SettingsBinding(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	plugin.RegisterEntryPoint(plugin.Descriptor{
		Name:         "labeler",
		Package:      "stockroom-labeler",
		Capabilities: []string{"globalsettings"},
		New: func() plugin.Plugin {
			return &fakePlugin{
				meta: plugin.Meta{Name: "labeler"},
				settings: map[string]host.Option{
					"LABEL_DPI": {Default: 300, Description: "print resolution"},
				},
			}
		},
	})

	h := newTestHost(t, false)
	h.enable(t, "labeler", "labeler")

	require.NoError(t, h.loader.Load(context.Background()))

	opt, ok := h.settings.Get("LABEL_DPI")
	require.True(t, ok)
	assert.Equal(t, 300, opt.Default)

	require.NoError(t, h.loader.Unload(context.Background()))

	_, ok = h.settings.Get("LABEL_DPI")
	assert.False(t, ok, "unload removes exactly the contributed options")
	_, ok = h.settings.Get("HOST_NAME")
	assert.True(t, ok, "built-in options survive")
}

func TestLoader_UnloadRoundTrip(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	registerAppPlugin("extras", "stockroom-extras", "widget")

	h := newTestHost(t, false)
	h.enable(t, "extras", "extras")
	ctx := context.Background()

	require.NoError(t, h.loader.Load(ctx))
	require.NoError(t, h.loader.Unload(ctx))

	active, inactive := h.loader.Registry().Counts()
	assert.Zero(t, active)
	assert.Zero(t, inactive)
	assert.NotContains(t, h.apps.Installed(), "extras")
	assert.False(t, h.admin.IsRegistered("extras", "widget"))
	_, err := h.apps.GetAppConfig("core")
	assert.NoError(t, err, "built-ins survive unload")

	// Loading again restores the full state.
	require.NoError(t, h.loader.Load(ctx))
	_, ok := h.loader.Registry().Get("extras")
	assert.True(t, ok)
	assert.True(t, h.admin.IsRegistered("extras", "widget"))
}

func TestLoader_Reload_Idempotent(t *testing.T) {
	t.Cleanup(plugin.ResetRegistrationTables)
	plugin.ResetRegistrationTables()
	registerAppPlugin("extras", "stockroom-extras", "widget")

	h := newTestHost(t, false)
	h.enable(t, "extras", "extras")
	ctx := context.Background()

	require.NoError(t, h.loader.Load(ctx))
	require.NoError(t, h.loader.Reload(ctx))
	require.NoError(t, h.loader.Reload(ctx))

	_, ok := h.loader.Registry().Get("extras")
	assert.True(t, ok)
	assert.Equal(t, []string{"core", "extras"}, h.apps.Installed(),
		"repeated reloads must not duplicate installed modules")
}

func TestNewLoader_InvalidHostVersion(t *testing.T) {
	_, err := plugin.NewLoader(plugin.LoaderConfig{HostVersion: "not-semver"})
	require.Error(t, err)
}
