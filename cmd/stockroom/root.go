// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the stockroom CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stockroom",
		Short: "Stockroom - a modular inventory host",
		Long: `Stockroom is an inventory management host whose functionality is
extended by plugins: discovered from search directories or compiled-in
entry points, persisted per-plugin activation state, and hot-reloaded
without restarting the process.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPluginsCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
