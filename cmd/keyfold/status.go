// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// statusConfig holds configuration for the status command.
type statusConfig struct {
	url     string
	timeout time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running Keyfold instance",
		Long:  `Probe the /health endpoint of a running instance and report the result.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.url, "url", "http://localhost:8080", "base URL of the running instance")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 5*time.Second, "probe timeout")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	client := &http.Client{Timeout: cfg.timeout}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, cfg.url+"/health", nil)
	if err != nil {
		return oops.Code("STATUS_FAILED").With("url", cfg.url).Wrap(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return oops.Code("STATUS_FAILED").With("url", cfg.url).Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only response body

	var body struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return oops.Code("STATUS_FAILED").With("url", cfg.url).Wrap(err)
	}

	cmd.Printf("%s (checked at %s)\n", body.Status, body.Timestamp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("instance unhealthy: %s", body.Status)
	}
	return nil
}
