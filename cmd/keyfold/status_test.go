// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Properties(t *testing.T) {
	cmd := NewStatusCmd()

	assert.Equal(t, "status", cmd.Use)
	assert.Contains(t, strings.ToLower(cmd.Short), "health")
	assert.Contains(t, cmd.Long, "health")
}

func TestStatus_Flags(t *testing.T) {
	cmd := NewStatusCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "--url")
	assert.Contains(t, output, "--timeout")
}

func TestStatus_HealthyInstance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","timestamp":"2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	cmd := NewStatusCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--url", srv.URL})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "healthy")
}

func TestStatus_UnhealthyInstance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy","timestamp":"2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	cmd := NewStatusCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--url", srv.URL})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unhealthy")
}

func TestStatus_UnreachableInstance(t *testing.T) {
	cmd := NewStatusCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--url", "http://127.0.0.1:1", "--timeout", "500ms"})

	require.Error(t, cmd.Execute())
}
