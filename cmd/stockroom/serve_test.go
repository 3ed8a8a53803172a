// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockroom/stockroom/internal/host"
	"github.com/stockroom/stockroom/internal/plugin"
	"github.com/stockroom/stockroom/internal/plugin/memory"
)

func newServeHost(t *testing.T) (http.Handler, *host.Maintenance) {
	t.Helper()

	apps := host.NewAppRegistry(builtinPaths(), builtinProviders())
	admin := host.NewAdminSite()
	settings := host.NewSettingsCatalog(builtinOptions())
	routes := host.NewRouteTable(nil)
	maint := host.NewMaintenance()

	loader, err := plugin.NewLoader(plugin.LoaderConfig{
		Discovery:      plugin.NewDiscovery(nil, true, false),
		Records:        memory.NewStore(),
		Apps:           apps,
		Admin:          admin,
		Settings:       settings,
		Routes:         routes,
		Maintenance:    maint,
		BaseDir:        t.TempDir(),
		HostVersion:    "1.0.0",
		Testing:        true,
		EnableSettings: true,
		EnableApps:     true,
	})
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	return hostHandler(routes, maint, loader), maint
}

func TestHostHandler_ServesRoutes(t *testing.T) {
	handler, _ := newServeHost(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHostHandler_MaintenanceGate(t *testing.T) {
	handler, maint := newServeHost(t)
	maint.Set(true)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHostHandler_AdminReload(t *testing.T) {
	handler, maint := newServeHost(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, maint.Enabled())
}
