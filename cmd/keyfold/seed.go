// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keyfold/keyfold/internal/auth"
	authpg "github.com/keyfold/keyfold/internal/auth/postgres"
	"github.com/keyfold/keyfold/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
}

// seedFile is the YAML shape of the seed definition.
type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed initial user accounts",
		Long: `Creates user accounts from a YAML definition file.
This command is idempotent - accounts whose email already exists are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.file, "file", "seed.yaml", "seed definition file")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	raw, err := os.ReadFile(cfg.file)
	if err != nil {
		return oops.Code("SEED_FILE_FAILED").With("file", cfg.file).Wrap(err)
	}

	var seeds seedFile
	if err := yaml.Unmarshal(raw, &seeds); err != nil {
		return oops.Code("SEED_FILE_FAILED").With("file", cfg.file).Wrap(err)
	}
	if len(seeds.Users) == 0 {
		return oops.Code("SEED_FILE_FAILED").With("file", cfg.file).Errorf("seed file defines no users")
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals.
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	db, err := store.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.WaitReady(ctx); err != nil {
		return err
	}

	users := authpg.NewUserRepository(db.Pool())
	hasher := auth.NewBcryptHasher()

	created, skipped := 0, 0
	for _, s := range seeds.Users {
		if !auth.ValidateEmail(s.Email) {
			return oops.Code("SEED_INVALID").With("email", s.Email).Errorf("seed user has invalid email")
		}
		if !auth.ValidatePassword(s.Password) {
			return oops.Code("SEED_INVALID").With("email", s.Email).Errorf("seed user has weak password")
		}

		hash, err := hasher.Hash(s.Password)
		if err != nil {
			return oops.Code("SEED_FAILED").With("email", s.Email).Wrap(err)
		}

		user := &auth.User{
			ID:           ulid.Make(),
			Email:        s.Email,
			Name:         s.Name,
			PasswordHash: hash,
			CreatedAt:    time.Now().UTC(),
		}

		if err := users.Create(ctx, user); err != nil {
			if errors.Is(err, auth.ErrDuplicateEmail) {
				cmd.Printf("User %s already exists, skipping\n", s.Email)
				skipped++
				continue
			}
			return oops.Code("SEED_FAILED").With("email", s.Email).Wrap(err)
		}
		created++
	}

	cmd.Printf("Seed completed: %d created, %d skipped\n", created, skipped)
	return nil
}
