// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

// Package labels is the bundled label-printing plugin. It doubles as a
// working example of the plugin contract: a factory registered for the
// on-disk manifest in this directory, settings options and an app
// module with admin bindings.
package labels

import (
	"github.com/stockroom/stockroom/internal/host"
	"github.com/stockroom/stockroom/internal/plugin"
)

func init() {
	plugin.RegisterFactory("labels.New", New)
}

// Labels renders printable labels for parts and stock items.
type Labels struct{}

// New constructs the plugin instance.
func New() plugin.Plugin {
	return &Labels{}
}

// Meta implements plugin.Plugin.
func (l *Labels) Meta() plugin.Meta {
	return plugin.Meta{
		Name:        "Labels",
		Version:     "1.0.0",
		Description: "Printable labels for parts and stock items",
		Author:      "Stockroom Contributors",
	}
}

// SettingsOptions implements plugin.SettingsProvider.
func (l *Labels) SettingsOptions() map[string]host.Option {
	return map[string]host.Option{
		"LABEL_DPI": {
			Default:     300,
			Description: "Print resolution in dots per inch",
			Validator:   map[string]any{"type": "integer", "minimum": 72},
		},
		"LABEL_PAPER": {
			Default:     "A4",
			Description: "Paper size label sheets are laid out for",
		},
	}
}

// App implements plugin.AppProvider.
func (l *Labels) App() *host.AppConfig {
	return &host.AppConfig{
		LoadModels: func() []string {
			return []string{"labeltemplate", "labeljob"}
		},
		LoadAdmin: func(admin *host.AdminSite) {
			admin.Register("labels", "labeltemplate")
			admin.Register("labels", "labeljob")
		},
	}
}
