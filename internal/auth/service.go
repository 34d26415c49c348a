// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyfold/keyfold/pkg/errutil"
)

// dummyPasswordHash is verified when a login references an unknown
// email so the response time matches the known-email path. It is a
// syntactically valid bcrypt hash that matches no password in practice.
//
//nolint:gosec // G101: intentionally fake hash for timing uniformity, not a credential.
const dummyPasswordHash = "$2a$10$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Metric outcome labels.
const (
	outcomeSuccess  = "success"
	outcomeInvalid  = "invalid"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

// Service orchestrates the signup and login flows: validation, hashing,
// store writes, cache maintenance, and token issuance.
type Service struct {
	users  UserRepository
	cache  *UserCache
	hasher PasswordHasher
	tokens *TokenService
	now    func() time.Time
	logger *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceClock overrides the clock used for timestamps. Intended
// for tests.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithServiceLogger sets the logger used for internal failure detail.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service. All dependencies are required.
func NewService(users UserRepository, cache *UserCache, hasher PasswordHasher, tokens *TokenService, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("user repository is required")
	}
	if cache == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("user cache is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("token service is required")
	}

	s := &Service{
		users:  users,
		cache:  cache,
		hasher: hasher,
		tokens: tokens,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Signup registers a new account and returns the created user together
// with a freshly issued bearer token. The store's unique-email
// constraint is the authoritative guard: losing the race between the
// existence check and the insert surfaces as ErrEmailTaken, never as a
// generic failure.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*User, string, error) {
	if email == "" || password == "" || name == "" {
		AuthAttempts.WithLabelValues("signup", outcomeInvalid).Inc()
		return nil, "", oops.Code("AUTH_MISSING_FIELDS").Wrap(ErrMissingFields)
	}
	if !ValidateEmail(email) {
		AuthAttempts.WithLabelValues("signup", outcomeInvalid).Inc()
		return nil, "", oops.Code("AUTH_INVALID_FORMAT").With("field", "email").Wrap(ErrInvalidEmail)
	}
	if !ValidatePassword(password) {
		AuthAttempts.WithLabelValues("signup", outcomeInvalid).Inc()
		return nil, "", oops.Code("AUTH_INVALID_FORMAT").With("field", "password").Wrap(ErrWeakPassword)
	}

	// Fast-path existence check. The insert below still owns the
	// uniqueness guarantee under concurrent signups.
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		AuthAttempts.WithLabelValues("signup", outcomeConflict).Inc()
		return nil, "", oops.Code("AUTH_EMAIL_TAKEN").Wrap(ErrEmailTaken)
	case !errors.Is(err, ErrNotFound):
		AuthAttempts.WithLabelValues("signup", outcomeError).Inc()
		return nil, "", err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		AuthAttempts.WithLabelValues("signup", outcomeError).Inc()
		return nil, "", oops.Code("AUTH_SIGNUP_FAILED").With("operation", "hash password").Wrap(err)
	}

	user := &User{
		ID:           ulid.Make(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			AuthAttempts.WithLabelValues("signup", outcomeConflict).Inc()
			return nil, "", oops.Code("AUTH_EMAIL_TAKEN").Wrap(ErrEmailTaken)
		}
		AuthAttempts.WithLabelValues("signup", outcomeError).Inc()
		return nil, "", err
	}

	s.cache.Put(user)

	token, err := s.tokens.Issue(user.ID.String(), user.Email)
	if err != nil {
		AuthAttempts.WithLabelValues("signup", outcomeError).Inc()
		return nil, "", oops.Code("AUTH_SIGNUP_FAILED").With("operation", "issue token").Wrap(err)
	}

	AuthAttempts.WithLabelValues("signup", outcomeSuccess).Inc()
	return user, token, nil
}

// Login authenticates a credential pair and returns the user with a
// fresh bearer token. Unknown email and wrong password yield the same
// ErrInvalidCredentials, and the dummy-hash verification keeps the two
// paths close in timing.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	if email == "" || password == "" {
		AuthAttempts.WithLabelValues("login", outcomeInvalid).Inc()
		return nil, "", oops.Code("AUTH_MISSING_FIELDS").Wrap(ErrMissingFields)
	}

	user, lookupErr := s.cache.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		// Verify against the dummy hash below to keep timing uniform.
	default:
		AuthAttempts.WithLabelValues("login", outcomeError).Inc()
		return nil, "", lookupErr
	}

	if !s.hasher.Verify(password, targetHash) || !userExists {
		AuthAttempts.WithLabelValues("login", outcomeInvalid).Inc()
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	// Record the login instant. Best effort: the login still succeeds
	// if the write fails, and the cache keeps the pre-update snapshot
	// so it never runs ahead of the store.
	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		errutil.LogError(s.logger, "last-login update failed", err)
	} else {
		user.LastLogin = &now
		s.cache.Put(user)
	}

	token, err := s.tokens.Issue(user.ID.String(), user.Email)
	if err != nil {
		AuthAttempts.WithLabelValues("login", outcomeError).Inc()
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").With("operation", "issue token").Wrap(err)
	}

	AuthAttempts.WithLabelValues("login", outcomeSuccess).Inc()
	return user, token, nil
}
