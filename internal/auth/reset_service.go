// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ErrResetInvalid is returned when a reset token is unknown or expired.
// The two cases are deliberately indistinguishable to the caller.
var ErrResetInvalid = errors.New("invalid or expired reset token")

// PasswordResetService handles the forgot-password flow. Issued bearer
// tokens are stateless, so completing a reset changes the credential
// without revoking tokens minted before it.
type PasswordResetService struct {
	users  UserRepository
	cache  *UserCache
	resets PasswordResetRepository
	hasher PasswordHasher
	now    func() time.Time
}

// NewPasswordResetService creates a PasswordResetService.
func NewPasswordResetService(users UserRepository, cache *UserCache, resets PasswordResetRepository, hasher PasswordHasher, opts ...ResetOption) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("user repository is required")
	}
	if cache == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("user cache is required")
	}
	if resets == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("reset repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("password hasher is required")
	}

	s := &PasswordResetService{
		users:  users,
		cache:  cache,
		resets: resets,
		hasher: hasher,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ResetOption configures a PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithResetClock overrides the clock used for expiry. Intended for tests.
func WithResetClock(now func() time.Time) ResetOption {
	return func(s *PasswordResetService) {
		s.now = now
	}
}

// RequestReset starts a reset for the account with the given email and
// returns the plaintext token for out-of-band delivery. If no such
// account exists it returns an empty token and no error, so responses
// cannot be used to enumerate registered emails.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").With("operation", "get user by email").Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").With("operation", "generate reset token").Wrap(err)
	}

	now := s.now().UTC()
	reset := &PasswordReset{
		ID:        ulid.Make(),
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: now.Add(ResetTokenExpiry),
		CreatedAt: now,
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").With("operation", "persist reset").Wrap(err)
	}

	return token, nil
}

// ConfirmReset completes a reset: the token must match a stored,
// unexpired request and the new password must meet the strength rules.
// On success the old credential stops working immediately; the user's
// cache entries are dropped so the stale hash cannot be served.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return oops.Code("RESET_INVALID").Wrap(ErrResetInvalid)
	}
	if !ValidatePassword(newPassword) {
		return oops.Code("AUTH_INVALID_FORMAT").With("field", "password").Wrap(ErrWeakPassword)
	}

	reset, err := s.resets.GetByTokenHash(ctx, hashResetToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_INVALID").Wrap(ErrResetInvalid)
		}
		return oops.Code("RESET_CONFIRM_FAILED").With("operation", "get reset by token hash").Wrap(err)
	}

	if reset.IsExpiredAt(s.now()) {
		return oops.Code("RESET_INVALID").Wrap(ErrResetInvalid)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").With("operation", "hash password").Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, reset.UserID, hash); err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").With("operation", "update password").Wrap(err)
	}

	s.cache.Invalidate(reset.UserID)

	// A confirmed token is single use. Clearing every pending request
	// for the user also voids older unconfirmed tokens.
	if err := s.resets.DeleteByUser(ctx, reset.UserID); err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").With("operation", "delete reset requests").Wrap(err)
	}

	return nil
}
