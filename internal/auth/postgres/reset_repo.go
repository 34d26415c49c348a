// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyfold/keyfold/internal/auth"
)

// ResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type ResetRepository struct {
	db      DB
	timeout time.Duration
}

// NewResetRepository creates a ResetRepository.
func NewResetRepository(db DB) *ResetRepository {
	return &ResetRepository{db: db, timeout: defaultCallTimeout}
}

// Create stores a new password reset request.
func (r *ResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO password_resets (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		reset.ID.String(),
		reset.UserID.String(),
		reset.TokenHash,
		reset.ExpiresAt,
		reset.CreatedAt,
	)
	if err != nil {
		return unavailable("insert password reset", err)
	}
	return nil
}

// GetByTokenHash retrieves a reset request by its token hash.
func (r *ResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM password_resets
		WHERE token_hash = $1
	`, tokenHash)

	var (
		idStr     string
		userIDStr string
		hash      string
		expiresAt time.Time
		createdAt time.Time
	)
	err := row.Scan(&idStr, &userIDStr, &hash, &expiresAt, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get password reset by token hash", err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").With("id", idStr).Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_USER_ID").With("user_id", userIDStr).Wrap(err)
	}

	return &auth.PasswordReset{
		ID:        id,
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// DeleteByUser removes all reset requests for a user.
func (r *ResetRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		DELETE FROM password_resets WHERE user_id = $1
	`, userID.String())
	if err != nil {
		return unavailable("delete password resets by user", err)
	}
	return nil
}

// DeleteExpired removes all expired reset requests.
func (r *ResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.Exec(ctx, `
		DELETE FROM password_resets WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, unavailable("delete expired password resets", err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.PasswordResetRepository = (*ResetRepository)(nil)
