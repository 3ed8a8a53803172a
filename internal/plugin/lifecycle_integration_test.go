//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/stockroom/stockroom/internal/host"
	"github.com/stockroom/stockroom/internal/plugin"
	"github.com/stockroom/stockroom/internal/plugin/memory"
)

var _ = Describe("plugin lifecycle", func() {
	var (
		ctx      context.Context
		records  *memory.Store
		apps     *host.AppRegistry
		admin    *host.AdminSite
		settings *host.SettingsCatalog
		routes   *host.RouteTable
		maint    *host.Maintenance
		loader   *plugin.Loader
	)

	BeforeEach(func() {
		ctx = context.Background()
		plugin.ResetRegistrationTables()

		plugin.RegisterEntryPoint(plugin.Descriptor{
			Name:         "extras",
			Package:      "stockroom-extras",
			Capabilities: []string{"app", "globalsettings"},
			New: func() plugin.Plugin {
				return newLifecyclePlugin("extras", []string{"widget"})
			},
		})

		records = memory.NewStore()
		apps = host.NewAppRegistry([]string{"core"}, map[string]host.AppProvider{
			"core": func() *host.AppConfig { return &host.AppConfig{Name: "core"} },
		})
		admin = host.NewAdminSite()
		settings = host.NewSettingsCatalog(nil)
		routes = host.NewRouteTable(nil)
		maint = host.NewMaintenance()

		var err error
		loader, err = plugin.NewLoader(plugin.LoaderConfig{
			Discovery:      plugin.NewDiscovery(nil, false, false),
			Records:        records,
			Apps:           apps,
			Admin:          admin,
			Settings:       settings,
			Routes:         routes,
			Maintenance:    maint,
			BaseDir:        GinkgoT().TempDir(),
			HostVersion:    "1.0.0",
			EnableSettings: true,
			EnableApps:     true,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		plugin.ResetRegistrationTables()
	})

	enable := func(slug string) {
		_, _, err := records.GetOrCreate(ctx, slug, slug)
		Expect(err).NotTo(HaveOccurred())
		Expect(records.SetActive(ctx, slug, true)).To(Succeed())
	}

	It("keeps new plugins inactive until enabled", func() {
		Expect(loader.Load(ctx)).To(Succeed())
		active, inactive := loader.Registry().Counts()
		Expect(active).To(BeZero())
		Expect(inactive).To(Equal(1))
	})

	It("activates, reloads and unloads an enabled plugin", func() {
		enable("extras")

		Expect(loader.Load(ctx)).To(Succeed())
		Expect(apps.Installed()).To(ContainElement("extras"))
		Expect(admin.IsRegistered("extras", "widget")).To(BeTrue())

		Expect(loader.Reload(ctx)).To(Succeed())
		Expect(apps.Installed()).To(Equal([]string{"core", "extras"}))

		Expect(loader.Unload(ctx)).To(Succeed())
		Expect(apps.Installed()).To(Equal([]string{"core"}))
		Expect(admin.IsRegistered("extras", "widget")).To(BeFalse())
		Expect(maint.Enabled()).To(BeFalse())
	})
})

type lifecyclePlugin struct {
	name   string
	models []string
}

func newLifecyclePlugin(name string, models []string) *lifecyclePlugin {
	return &lifecyclePlugin{name: name, models: models}
}

func (p *lifecyclePlugin) Meta() plugin.Meta {
	return plugin.Meta{Name: p.name, Version: "1.0.0"}
}

func (p *lifecyclePlugin) SettingsOptions() map[string]host.Option {
	return map[string]host.Option{"EXTRAS_ENABLED": {Default: true}}
}

func (p *lifecyclePlugin) App() *host.AppConfig {
	return &host.AppConfig{
		LoadModels: func() []string { return p.models },
		LoadAdmin: func(admin *host.AdminSite) {
			for _, m := range p.models {
				admin.Register(p.name, m)
			}
		},
	}
}
