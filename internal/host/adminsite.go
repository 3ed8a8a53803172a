// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package host

import (
	"sort"
	"sync"
)

// AdminSite is the admin-binding catalog: it tracks which models have an
// admin binding. Bindings are registered explicitly by app admin
// loaders, never as an import side effect, so the loader can diff the
// model table against this catalog after a hot swap.
type AdminSite struct {
	mu       sync.RWMutex
	bindings map[string]map[string]struct{} // app name -> model names
}

// NewAdminSite creates an empty admin site.
func NewAdminSite() *AdminSite {
	return &AdminSite{bindings: make(map[string]map[string]struct{})}
}

// Register binds a model to the admin site.
func (s *AdminSite) Register(app, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bindings[app] == nil {
		s.bindings[app] = make(map[string]struct{})
	}
	s.bindings[app][model] = struct{}{}
}

// Unregister removes a model binding. Unknown bindings are a no-op.
func (s *AdminSite) Unregister(app, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if models, ok := s.bindings[app]; ok {
		delete(models, model)
		if len(models) == 0 {
			delete(s.bindings, app)
		}
	}
}

// IsRegistered reports whether a model has an admin binding.
func (s *AdminSite) IsRegistered(app, model string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bindings[app][model]
	return ok
}

// AppModels returns the sorted model names bound for an app.
func (s *AdminSite) AppModels(app string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	models := make([]string, 0, len(s.bindings[app]))
	for model := range s.bindings[app] {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// Apps returns the sorted app names with at least one binding.
func (s *AdminSite) Apps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	apps := make([]string, 0, len(s.bindings))
	for app := range s.bindings {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}
