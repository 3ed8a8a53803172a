// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package host

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"

	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Option is one configurable setting contributed to the global catalog.
type Option struct {
	Default     any            `json:"default,omitempty"`
	Description string         `json:"description,omitempty"`
	// Validator is an optional JSON Schema constraining the option's
	// value. When present, the default must satisfy it.
	Validator map[string]any `json:"validator,omitempty"`
}

// SettingsCatalog is the global settings catalog. Plugin-contributed
// option sets are tracked per slug so deactivation can remove exactly
// the keys it added.
type SettingsCatalog struct {
	mu      sync.RWMutex
	options map[string]Option            // setting name -> option
	tracked map[string]map[string]Option // slug -> contributed set
}

// NewSettingsCatalog creates a catalog seeded with the host's built-in
// options.
func NewSettingsCatalog(builtin map[string]Option) *SettingsCatalog {
	c := &SettingsCatalog{
		options: make(map[string]Option, len(builtin)),
		tracked: make(map[string]map[string]Option),
	}
	for name, opt := range builtin {
		c.options[name] = opt
	}
	return c
}

// MergeOptions merges a plugin's option set into the catalog, keyed by
// slug for later removal. Every option's validator schema is compiled
// and checked against the option default before anything is merged.
func (c *SettingsCatalog) MergeOptions(slug string, opts map[string]Option) error {
	for name, opt := range opts {
		if err := validateOption(name, opt); err != nil {
			return oops.Code("SETTINGS_OPTION_INVALID").With("slug", slug).With("option", name).Wrap(err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	set := make(map[string]Option, len(opts))
	for name, opt := range opts {
		set[name] = opt
		c.options[name] = opt
	}
	c.tracked[slug] = set
	return nil
}

// RemoveTracked pops the union of all tracked plugin option sets from
// the catalog and clears the tracking map.
func (c *SettingsCatalog) RemoveTracked() {
	c.mu.Lock()
	defer c.mu.Unlock()

	union := make(map[string]struct{})
	for _, set := range c.tracked {
		for name := range set {
			union[name] = struct{}{}
		}
	}
	for name := range union {
		delete(c.options, name)
	}
	c.tracked = make(map[string]map[string]Option)
}

// Get returns an option by setting name.
func (c *SettingsCatalog) Get(name string) (Option, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	opt, ok := c.options[name]
	return opt, ok
}

// Names returns the sorted setting names currently in the catalog.
func (c *SettingsCatalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.options))
	for name := range c.options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TrackedSlugs returns the sorted slugs with tracked option sets.
func (c *SettingsCatalog) TrackedSlugs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slugs := make([]string, 0, len(c.tracked))
	for slug := range c.tracked {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// validateOption compiles the option's validator schema and checks the
// default value against it.
func validateOption(name string, opt Option) error {
	if opt.Validator == nil {
		return nil
	}

	// Round-trip through JSON so YAML-typed values validate cleanly.
	raw, err := json.Marshal(opt.Validator)
	if err != nil {
		return oops.With("option", name).Wrap(err)
	}
	schemaData, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return oops.With("option", name).Wrap(err)
	}

	compiler := jschema.NewCompiler()
	if err := compiler.AddResource("option.json", schemaData); err != nil {
		return oops.With("option", name).Wrap(err)
	}
	sch, err := compiler.Compile("option.json")
	if err != nil {
		return oops.With("option", name).Wrap(err)
	}

	if opt.Default == nil {
		return nil
	}
	defaultRaw, err := json.Marshal(opt.Default)
	if err != nil {
		return oops.With("option", name).Wrap(err)
	}
	defaultData, err := jschema.UnmarshalJSON(bytes.NewReader(defaultRaw))
	if err != nil {
		return oops.With("option", name).Wrap(err)
	}
	if err := sch.Validate(defaultData); err != nil {
		return oops.With("option", name).Wrap(err)
	}
	return nil
}
