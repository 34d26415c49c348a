// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package store provides the PostgreSQL connection pool and schema
// migrations backing the auth repositories.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Readiness probe backoff parameters.
const (
	readyBackoffInitial = 500 * time.Millisecond
	readyMaxRetries     = 6
)

// Store owns the PostgreSQL connection pool shared by the repositories.
type Store struct {
	pool *pgxpool.Pool
}

// Open creates a connection pool for the given DSN. The pool connects
// lazily; call WaitReady to verify the database is reachable.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	return &Store{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// WaitReady pings the database with exponential backoff until it
// responds or the retry budget is exhausted.
func (s *Store) WaitReady(ctx context.Context) error {
	backoff := retry.WithMaxRetries(readyMaxRetries, retry.NewExponential(readyBackoffInitial))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := s.pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_NOT_READY").With("operation", "ping database").Wrap(err)
	}
	return nil
}
