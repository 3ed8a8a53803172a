// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin

import (
	"regexp"
	"strings"
)

// nonSlugChars matches every run of characters that cannot appear in a
// slug.
var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify normalizes a plugin name or explicit slug override into the
// registry key space: lowercase, URL-safe, hyphen-separated. Distinct
// names can collide ("Foo Bar" and "foo-bar" both map to "foo-bar");
// collisions are detected at registration, not here.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = nonSlugChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
