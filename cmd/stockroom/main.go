// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

// Package main is the entry point for the stockroom host.
package main

import (
	"fmt"
	"os"

	// Bundled plugins register their factories from init.
	_ "github.com/stockroom/stockroom/plugins/labels"
)

// Version information set at build time.
var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
