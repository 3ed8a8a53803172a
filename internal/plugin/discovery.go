// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
)

// Discovery enumerates candidate plugins from configured search
// directories and from the package entry-point table.
//
// Discovery assumes its inputs are loadable: an unreadable search
// directory or an invalid manifest is a hard error, not skipped.
// Runtime failures of plugin construction are handled later by the
// loader.
type Discovery struct {
	dirs         []string
	testing      bool
	testingSetup bool
}

// NewDiscovery creates a Discovery over the given search directories.
// Under testing (without testingSetup) entry-point plugins are
// suppressed so test runs only see the plugins they stage on disk.
func NewDiscovery(dirs []string, testing, testingSetup bool) *Discovery {
	return &Discovery{dirs: dirs, testing: testing, testingSetup: testingSetup}
}

// Discover returns the ordered plugin descriptors: search-directory
// plugins in directory order, then registered entry points. Duplicate
// slugs across the whole sequence are a configuration error.
func (d *Discovery) Discover(ctx context.Context) ([]Descriptor, error) {
	var descriptors []Descriptor

	for _, dir := range d.dirs {
		found, err := d.scanDir(dir)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, found...)
	}

	if !d.testing || d.testingSetup {
		for _, ep := range EntryPointDescriptors() {
			if ep.Slug == "" {
				ep.Slug = Slugify(ep.Name)
			}
			descriptors = append(descriptors, ep)
		}
	}

	seen := make(map[string]string, len(descriptors))
	for _, desc := range descriptors {
		if prev, ok := seen[desc.Slug]; ok {
			return nil, oops.With("slug", desc.Slug).
				With("first", prev).
				With("second", desc.Name).
				Wrap(ErrSlugConflict)
		}
		seen[desc.Slug] = desc.Name
	}

	names := make([]string, len(descriptors))
	for i, desc := range descriptors {
		names[i] = desc.Slug
	}
	slog.InfoContext(ctx, "discovered plugins",
		"count", len(descriptors),
		"plugins", strings.Join(names, ", "))

	return descriptors, nil
}

// scanDir reads one search directory. Each subdirectory holding a
// plugin.yaml is a candidate; subdirectories without one are not plugin
// candidates and are skipped.
func (d *Discovery) scanDir(dir string) ([]Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, oops.Code("DISCOVERY_DIR_FAILED").With("dir", dir).Wrap(err)
	}

	var found []Descriptor
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginDir := filepath.Join(dir, entry.Name())
		manifestPath := filepath.Join(pluginDir, "plugin.yaml")

		data, err := os.ReadFile(manifestPath) //nolint:gosec // manifestPath is constructed from ReadDir entries
		if err != nil {
			if os.IsNotExist(err) {
				slog.Debug("directory without manifest skipped", "dir", pluginDir)
				continue
			}
			return nil, oops.Code("DISCOVERY_MANIFEST_FAILED").With("path", manifestPath).Wrap(err)
		}

		manifest, err := ParseManifest(data)
		if err != nil {
			return nil, oops.Code("DISCOVERY_MANIFEST_INVALID").With("path", manifestPath).Wrap(err)
		}

		factory, ok := Factory(manifest.Factory)
		if !ok {
			return nil, oops.Code("DISCOVERY_FACTORY_UNKNOWN").
				With("path", manifestPath).
				With("factory", manifest.Factory).
				Errorf("manifest names unregistered factory %q", manifest.Factory)
		}

		found = append(found, Descriptor{
			Name:         manifest.Name,
			Slug:         manifest.EffectiveSlug(),
			Origin:       OriginPath,
			Dir:          pluginDir,
			Capabilities: manifest.Capabilities,
			MinHost:      manifest.MinHost,
			New:          factory,
		})
	}

	return found, nil
}
