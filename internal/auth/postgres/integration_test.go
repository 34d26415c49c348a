// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/keyfold/keyfold/internal/auth"
	"github.com/keyfold/keyfold/internal/auth/postgres"
	"github.com/keyfold/keyfold/internal/store"
)

// testPool is the shared database pool for integration tests.
var testPool *pgxpool.Pool

// TestMain sets up a PostgreSQL testcontainer and applies migrations.
func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := pgcontainer.Run(ctx,
		"postgres:16-alpine",
		pgcontainer.WithDatabase("keyfold_test"),
		pgcontainer.WithUsername("keyfold"),
		pgcontainer.WithPassword("keyfold"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create migrator: " + err.Error())
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create pool: " + err.Error())
	}
	testPool = pool

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)

	os.Exit(code)
}

func createTestUser(t *testing.T, repo *postgres.UserRepository, email string) *auth.User {
	t.Helper()

	user := &auth.User{
		ID:           ulid.Make(),
		Email:        email,
		Name:         "Alice",
		PasswordHash: "$2a$10$stored",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(context.Background(), user))
	t.Cleanup(func() {
		_, _ = testPool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, user.ID.String())
	})
	return user
}

func TestUserRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	t.Run("create and fetch round trip", func(t *testing.T) {
		user := createTestUser(t, repo, "roundtrip@example.com")

		byEmail, err := repo.GetByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)
		assert.Equal(t, user.PasswordHash, byEmail.PasswordHash)
		assert.Nil(t, byEmail.LastLogin)

		byID, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, byID.Email)
	})

	t.Run("email lookup is exact match", func(t *testing.T) {
		user := createTestUser(t, repo, "exact@example.com")

		_, err := repo.GetByEmail(ctx, "EXACT@example.com")
		assert.ErrorIs(t, err, auth.ErrNotFound)

		_, err = repo.GetByEmail(ctx, user.Email)
		require.NoError(t, err)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		user := createTestUser(t, repo, "dup@example.com")

		clone := &auth.User{
			ID:           ulid.Make(),
			Email:        user.Email,
			Name:         "Other",
			PasswordHash: "$2a$10$other",
			CreatedAt:    time.Now().UTC(),
		}
		err := repo.Create(ctx, clone)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("update last login", func(t *testing.T) {
		user := createTestUser(t, repo, "lastlogin@example.com")
		at := time.Now().UTC().Truncate(time.Microsecond)

		require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))

		stored, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.LastLogin)
		assert.Equal(t, at, stored.LastLogin.UTC())
	})

	t.Run("update password", func(t *testing.T) {
		user := createTestUser(t, repo, "rotate@example.com")

		require.NoError(t, repo.UpdatePassword(ctx, user.ID, "$2a$10$rotated"))

		stored, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "$2a$10$rotated", stored.PasswordHash)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := repo.GetByID(ctx, ulid.Make())
		assert.ErrorIs(t, err, auth.ErrNotFound)

		err = repo.UpdateLastLogin(ctx, ulid.Make(), time.Now())
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, repo.Ping(ctx))
	})
}

func TestResetRepository_Integration(t *testing.T) {
	ctx := context.Background()
	users := postgres.NewUserRepository(testPool)
	resets := postgres.NewResetRepository(testPool)

	newReset := func(t *testing.T, user *auth.User, expiresAt time.Time) *auth.PasswordReset {
		t.Helper()
		_, hash, err := auth.GenerateResetToken()
		require.NoError(t, err)

		reset := &auth.PasswordReset{
			ID:        ulid.Make(),
			UserID:    user.ID,
			TokenHash: hash,
			ExpiresAt: expiresAt.UTC().Truncate(time.Microsecond),
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
		require.NoError(t, resets.Create(ctx, reset))
		return reset
	}

	t.Run("create and fetch by token hash", func(t *testing.T) {
		user := createTestUser(t, users, "reset@example.com")
		reset := newReset(t, user, time.Now().Add(time.Hour))

		stored, err := resets.GetByTokenHash(ctx, reset.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, reset.ID, stored.ID)
		assert.Equal(t, user.ID, stored.UserID)
	})

	t.Run("delete by user removes all requests", func(t *testing.T) {
		user := createTestUser(t, users, "resetdel@example.com")
		first := newReset(t, user, time.Now().Add(time.Hour))
		second := newReset(t, user, time.Now().Add(time.Hour))

		require.NoError(t, resets.DeleteByUser(ctx, user.ID))

		_, err := resets.GetByTokenHash(ctx, first.TokenHash)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		_, err = resets.GetByTokenHash(ctx, second.TokenHash)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("delete expired sweeps old requests only", func(t *testing.T) {
		user := createTestUser(t, users, "resetexp@example.com")
		expired := newReset(t, user, time.Now().Add(-time.Hour))
		live := newReset(t, user, time.Now().Add(time.Hour))

		deleted, err := resets.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, deleted, int64(1))

		_, err = resets.GetByTokenHash(ctx, expired.TokenHash)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		_, err = resets.GetByTokenHash(ctx, live.TokenHash)
		require.NoError(t, err)
	})

	t.Run("cascade on user delete", func(t *testing.T) {
		user := createTestUser(t, users, "resetcascade@example.com")
		reset := newReset(t, user, time.Now().Add(time.Hour))

		_, err := testPool.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID.String())
		require.NoError(t, err)

		_, err = resets.GetByTokenHash(ctx, reset.TokenHash)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
