// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Manifest represents a plugin.yaml file in a plugin search directory.
// It declares everything the loader needs before instantiation; the
// factory name resolves to a constructor registered at compile time.
type Manifest struct {
	Name         string   `yaml:"name" json:"name"`
	Slug         string   `yaml:"slug,omitempty" json:"slug,omitempty"`
	Version      string   `yaml:"version" json:"version"`
	Factory      string   `yaml:"factory" json:"factory"`
	Capabilities []string `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	MinHost      string   `yaml:"min-host,omitempty" json:"min-host,omitempty"`
}

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern validates declared names: must start with a letter,
// may contain letters, digits, spaces and hyphens, and must not end
// with a space or hyphen.
var namePattern = regexp.MustCompile(`^[A-Za-z]([A-Za-z0-9 -]*[A-Za-z0-9])?$`)

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return fmt.Errorf("name %q must start with a letter, contain only letters, digits, spaces, hyphens, and not end with a space or hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("version %q is not valid semver: %w", m.Version, err)
	}

	if m.MinHost != "" {
		if _, err := semver.NewConstraint(m.MinHost); err != nil {
			return fmt.Errorf("min-host %q is not a valid constraint: %w", m.MinHost, err)
		}
	}

	if m.Factory == "" {
		return fmt.Errorf("factory is required")
	}

	for i, pattern := range m.Capabilities {
		if pattern == "" {
			return fmt.Errorf("capability %d: empty capability pattern", i)
		}
		if _, err := glob.Compile(pattern, '.'); err != nil {
			return fmt.Errorf("capability %d (%q): %w", i, pattern, err)
		}
	}

	if m.Slug != "" && Slugify(m.Slug) != m.Slug {
		return fmt.Errorf("slug %q is not normalized, want %q", m.Slug, Slugify(m.Slug))
	}

	return nil
}

// EffectiveSlug returns the explicit slug override when present,
// otherwise the slugified name.
func (m *Manifest) EffectiveSlug() string {
	if m.Slug != "" {
		return m.Slug
	}
	return Slugify(m.Name)
}
