// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package host

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
)

// Route table mount names. The admin and plugin mounts are sentinels:
// Rebuild replaces their subrouters wholesale on every reload.
const (
	MountAdmin   = "admin"
	MountPlugins = "plugins"
)

// RouteTable is the host's top-level route list. It keeps an ordered
// set of mounts, two of which (admin, plugins) are rebuilt from live
// registry state whenever the loader changes the module set.
type RouteTable struct {
	mu       sync.RWMutex
	root     *mux.Router
	static   map[string]http.Handler // fixed mounts: prefix -> handler
	order    []string                // mount order: static prefixes + sentinels
	urlCache map[string]string       // route name -> resolved path
}

// NewRouteTable creates a route table with the given fixed mounts,
// followed by the admin and plugin sentinel mounts.
func NewRouteTable(static map[string]http.Handler) *RouteTable {
	t := &RouteTable{
		static:   make(map[string]http.Handler, len(static)),
		urlCache: make(map[string]string),
	}
	for prefix, h := range static {
		t.static[prefix] = h
		t.order = append(t.order, prefix)
	}
	t.order = append(t.order, MountAdmin, MountPlugins)
	t.rebuildLocked(nil, nil)
	return t
}

// Rebuild replaces the admin and plugin sentinel subrouters with
// freshly constructed ones and clears the URL resolution cache.
//
// The admin subrouter exposes one route per admin binding; the plugin
// subrouter one subtree per plugin app. Must run after models are
// registered, or admin routes for them are silently absent.
func (t *RouteTable) Rebuild(admin *AdminSite, apps []*AppConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rebuildLocked(admin, apps)
}

func (t *RouteTable) rebuildLocked(admin *AdminSite, apps []*AppConfig) {
	root := mux.NewRouter()

	for _, prefix := range t.order {
		switch prefix {
		case MountAdmin:
			sub := root.PathPrefix("/admin").Subrouter()
			sub.HandleFunc("", adminIndex).Name("admin-index")
			if admin != nil {
				for _, app := range admin.Apps() {
					for _, model := range admin.AppModels(app) {
						sub.HandleFunc("/"+app+"/"+model, adminIndex).
							Name("admin-" + app + "-" + model)
					}
				}
			}
		case MountPlugins:
			sub := root.PathPrefix("/plugin").Subrouter()
			for _, app := range apps {
				sub.PathPrefix("/" + app.Name).HandlerFunc(pluginIndex).
					Name("plugin-" + app.Name)
			}
		default:
			root.PathPrefix(prefix).Handler(t.static[prefix])
		}
	}

	t.root = root
	t.urlCache = make(map[string]string)
}

// Router returns the current root router.
func (t *RouteTable) Router() *mux.Router {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Resolve returns the path for a named route, caching resolutions until
// the next rebuild.
func (t *RouteTable) Resolve(name string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if path, ok := t.urlCache[name]; ok {
		return path, true
	}
	route := t.root.Get(name)
	if route == nil {
		return "", false
	}
	url, err := route.URLPath()
	if err != nil {
		return "", false
	}
	t.urlCache[name] = url.Path
	return url.Path, true
}

func adminIndex(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("admin\n")) //nolint:errcheck // client may disconnect
}

func pluginIndex(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("plugin\n")) //nolint:errcheck // client may disconnect
}
