// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockroom/stockroom/internal/config"
)

// HostStatus holds the probed state of a running host.
type HostStatus struct {
	Addr  string `json:"addr"`
	Live  bool   `json:"live"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of the running stockroom host",
		Long:  `Probe the host's health endpoints and report liveness and readiness.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	conf, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if conf.Observability.Addr == "" {
		return fmt.Errorf("observability.addr is not configured, nothing to probe")
	}

	status := probeHost(conf.Observability.Addr)

	if cfg.jsonOutput {
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("Host:  %s\n", status.Addr)
	cmd.Printf("Live:  %v\n", status.Live)
	cmd.Printf("Ready: %v\n", status.Ready)
	if status.Error != "" {
		cmd.Printf("Error: %s\n", status.Error)
	}
	return nil
}

// probeHost queries the liveness and readiness endpoints.
func probeHost(addr string) HostStatus {
	status := HostStatus{Addr: addr}
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get("http://" + addr + "/healthz/liveness")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	_ = resp.Body.Close()
	status.Live = resp.StatusCode == http.StatusOK

	resp, err = client.Get("http://" + addr + "/healthz/readiness")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	_ = resp.Body.Close()
	status.Ready = resp.StatusCode == http.StatusOK

	return status
}
