// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// User represents a registered account. Email is unique across all
// users and compared exactly as stored. CreatedAt is immutable once
// set; LastLogin is nil until the first successful login.
type User struct {
	ID           ulid.ULID
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// View returns the sanitized projection of the user that is safe to
// serialize to clients. The password hash never leaves the process.
func (u *User) View() UserView {
	return UserView{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

// UserView is the client-facing shape of a user record.
type UserView struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// UserRepository persists user records. The store is the source of
// truth; it enforces the unique-email invariant and reports a lost
// uniqueness race as ErrDuplicateEmail.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicateEmail when the
	// email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByEmail retrieves a user by exact email match.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// UpdateLastLogin sets the last-login instant for a user.
	UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// UpdatePassword replaces the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
