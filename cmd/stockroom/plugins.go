// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package main

import (
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stockroom/stockroom/internal/config"
	"github.com/stockroom/stockroom/internal/plugin"
	pluginpg "github.com/stockroom/stockroom/internal/plugin/postgres"
	"github.com/stockroom/stockroom/internal/store"
)

// NewPluginsCmd creates the plugins subcommand for inspecting and
// toggling persisted plugin records. A running host picks toggles up on
// its next reload.
func NewPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect and toggle plugin records",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List plugin records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRecordStore(cmd, func(records plugin.RecordStore) error {
				list, err := records.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(list) == 0 {
					cmd.Println("No plugin records")
					return nil
				}

				var sb strings.Builder
				w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
				_, _ = w.Write([]byte("SLUG\tNAME\tACTIVE\tFAULT\n"))
				for _, rec := range list {
					fault := "-"
					if rec.FaultID != "" {
						fault = rec.FaultID
					}
					active := "no"
					if rec.Active {
						active = "yes"
					}
					_, _ = w.Write([]byte(rec.Slug + "\t" + rec.Name + "\t" + active + "\t" + fault + "\n"))
				}
				_ = w.Flush()
				cmd.Print(sb.String())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "enable <slug>",
		Short: "Mark a plugin active for the next load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecordStore(cmd, func(records plugin.RecordStore) error {
				if err := records.SetActive(cmd.Context(), args[0], true); err != nil {
					return err
				}
				cmd.Printf("Plugin %q enabled\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable <slug>",
		Short: "Mark a plugin inactive for the next load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecordStore(cmd, func(records plugin.RecordStore) error {
				if err := records.SetActive(cmd.Context(), args[0], false); err != nil {
					return err
				}
				cmd.Printf("Plugin %q disabled\n", args[0])
				return nil
			})
		},
	})

	return cmd
}

// withRecordStore opens a database-backed record store and closes the
// pool after fn runs.
func withRecordStore(cmd *cobra.Command, fn func(plugin.RecordStore) error) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url (or DATABASE_URL) is required")
	}

	pool, err := store.NewPool(cmd.Context(), cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(pluginpg.NewStore(pool))
}
