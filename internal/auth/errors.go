// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import "errors"

// Store-level sentinel errors. Repository implementations translate
// driver errors into these so the flows never see raw driver text.
var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned by the store when an insert loses
	// the unique-email race.
	ErrDuplicateEmail = errors.New("duplicate email")

	// ErrStoreUnavailable is returned when the store cannot be reached
	// or a call exceeds its deadline. Safe to retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Flow-level sentinel errors. The transport boundary maps these to
// status codes; messages shown to clients are deliberately generic.
var (
	// ErrMissingFields is returned when a required signup/login field
	// is absent.
	ErrMissingFields = errors.New("missing required fields")

	// ErrInvalidEmail is returned when an email fails shape validation.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword is returned when a password fails strength rules.
	ErrWeakPassword = errors.New("password does not meet strength requirements")

	// ErrEmailTaken is returned when a signup email is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password
	// so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserNotFound is returned when a verified token references a
	// user that no longer exists.
	ErrUserNotFound = errors.New("user not found")
)

// Token verification errors. All map to authentication failures at the
// boundary; they are distinct so callers can log the precise cause.
var (
	// ErrTokenMalformed is returned for a missing token or one that is
	// not a well-formed compact JWT.
	ErrTokenMalformed = errors.New("malformed token")

	// ErrTokenExpired is returned when the signature is valid but the
	// expiry instant is in the past.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenSignature is returned when the signature check fails.
	ErrTokenSignature = errors.New("invalid token signature")
)
