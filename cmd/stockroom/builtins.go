// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package main

import (
	"github.com/stockroom/stockroom/internal/host"
)

// builtinPaths returns the module paths installed before any plugin, in
// install order.
func builtinPaths() []string {
	return []string{"inventory", "orders"}
}

// builtinProviders returns the app providers for the built-in modules.
// Built-ins survive every plugin reload; a full reload reinstalls them
// from these providers.
func builtinProviders() map[string]host.AppProvider {
	return map[string]host.AppProvider{
		"inventory": func() *host.AppConfig {
			return &host.AppConfig{
				Name: "inventory",
				LoadModels: func() []string {
					return []string{"part", "stockitem", "stocklocation"}
				},
				LoadAdmin: func(admin *host.AdminSite) {
					admin.Register("inventory", "part")
					admin.Register("inventory", "stockitem")
					admin.Register("inventory", "stocklocation")
				},
			}
		},
		"orders": func() *host.AppConfig {
			return &host.AppConfig{
				Name: "orders",
				LoadModels: func() []string {
					return []string{"purchaseorder", "salesorder"}
				},
				LoadAdmin: func(admin *host.AdminSite) {
					admin.Register("orders", "purchaseorder")
					admin.Register("orders", "salesorder")
				},
			}
		},
	}
}

// builtinOptions seeds the global settings catalog.
func builtinOptions() map[string]host.Option {
	return map[string]host.Option{
		"INSTANCE_NAME": {
			Default:     "Stockroom",
			Description: "Display name for this instance",
		},
		"DEFAULT_CURRENCY": {
			Default:     "USD",
			Description: "Currency used when none is specified",
			Validator:   map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
		},
	}
}
