// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package postgres implements the auth repositories using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyfold/keyfold/internal/auth"
)

// defaultCallTimeout bounds every store call so a wedged connection
// surfaces as a retryable failure instead of hanging the request.
const defaultCallTimeout = 5 * time.Second

// DB is the subset of pgxpool.Pool the repositories use. pgxmock
// satisfies it for unit tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db      DB
	timeout time.Duration
}

// UserRepositoryOption configures a UserRepository.
type UserRepositoryOption func(*UserRepository)

// WithCallTimeout overrides the per-call deadline.
func WithCallTimeout(d time.Duration) UserRepositoryOption {
	return func(r *UserRepository) {
		r.timeout = d
	}
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(db DB, opts ...UserRepositoryOption) *UserRepository {
	r := &UserRepository{db: db, timeout: defaultCallTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create stores a new user. The unique index on email is the
// authoritative guard against concurrent signups; losing that race is
// reported as auth.ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		user.ID.String(),
		user.Email,
		user.Name,
		user.PasswordHash,
		user.CreatedAt,
		user.LastLogin,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_DUPLICATE_EMAIL").
				With("email", user.Email).
				Wrap(auth.ErrDuplicateEmail)
		}
		return unavailable("insert user", err)
	}
	return nil
}

// GetByEmail retrieves a user by exact email match.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at, last_login
		FROM users
		WHERE email = $1
	`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get user by email", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at, last_login
		FROM users
		WHERE id = $1
	`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get user by id", err)
	}
	return user, nil
}

// UpdateLastLogin sets the last-login instant for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.Exec(ctx, `
		UPDATE users SET last_login = $2 WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return unavailable("update last login", err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces the password hash for a user.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2 WHERE id = $1
	`, id.String(), passwordHash)
	if err != nil {
		return unavailable("update password", err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Ping reports whether the store is reachable.
func (r *UserRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.db.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// scanUser scans a single row into a User. Callers are responsible for
// handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr        string
		email        string
		name         string
		passwordHash string
		createdAt    time.Time
		lastLogin    *time.Time
	)

	err := row.Scan(&idStr, &email, &name, &passwordHash, &createdAt, &lastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.User{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
		LastLogin:    lastLogin,
	}, nil
}

// unavailable wraps an infrastructure failure as auth.ErrStoreUnavailable.
// The driver error stays attached for internal logging; the boundary
// never echoes it to clients.
func unavailable(operation string, err error) error {
	return oops.Code("STORE_UNAVAILABLE").
		With("operation", operation).
		Join(auth.ErrStoreUnavailable, err)
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
