// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommand_Properties(t *testing.T) {
	cmd := NewStatusCmd()
	assert.Equal(t, "status", cmd.Use)
	assert.Contains(t, cmd.Long, "health")
}

func TestProbeHost_UpAndReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	status := probeHost(addr)

	assert.Equal(t, addr, status.Addr)
	assert.True(t, status.Live)
	assert.True(t, status.Ready)
	assert.Empty(t, status.Error)
}

func TestProbeHost_NotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/readiness") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	status := probeHost(strings.TrimPrefix(srv.URL, "http://"))
	assert.True(t, status.Live)
	assert.False(t, status.Ready)
}

func TestProbeHost_Unreachable(t *testing.T) {
	status := probeHost("127.0.0.1:1")
	require.NotEmpty(t, status.Error)
	assert.False(t, status.Live)
}
