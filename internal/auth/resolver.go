// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// bearerPrefix is the Authorization header scheme for bearer tokens.
const bearerPrefix = "Bearer "

// SessionResolver turns a raw Authorization header into an
// authenticated user: token verification first, then user lookup
// through the cache. A missing user behind a valid token is reported as
// ErrUserNotFound, distinct from the token errors.
type SessionResolver struct {
	tokens *TokenService
	users  *UserCache
}

// NewSessionResolver creates a SessionResolver.
func NewSessionResolver(tokens *TokenService, users *UserCache) (*SessionResolver, error) {
	if tokens == nil {
		return nil, oops.Code("RESOLVER_INVALID").Errorf("token service is required")
	}
	if users == nil {
		return nil, oops.Code("RESOLVER_INVALID").Errorf("user cache is required")
	}
	return &SessionResolver{tokens: tokens, users: users}, nil
}

// Resolve authenticates the request carrying the given Authorization
// header value. An absent header is itself a malformed-token failure.
func (r *SessionResolver) Resolve(ctx context.Context, authorization string) (*User, error) {
	if authorization == "" {
		TokenVerifications.WithLabelValues("missing").Inc()
		return nil, oops.Code("TOKEN_MISSING").Wrap(ErrTokenMalformed)
	}

	tokenString := strings.TrimPrefix(authorization, bearerPrefix)

	claims, err := r.tokens.Verify(tokenString)
	if err != nil {
		TokenVerifications.WithLabelValues(verifyOutcome(err)).Inc()
		return nil, err
	}
	TokenVerifications.WithLabelValues("valid").Inc()

	id, err := ulid.Parse(claims.UserID)
	if err != nil {
		return nil, oops.Code("TOKEN_BAD_SUBJECT").With("user_id", claims.UserID).Wrap(ErrTokenMalformed)
	}

	user, err := r.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_USER_NOT_FOUND").With("user_id", claims.UserID).Wrap(ErrUserNotFound)
		}
		return nil, err
	}

	return user, nil
}

// verifyOutcome maps a token error to its metric label.
func verifyOutcome(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenSignature):
		return "bad_signature"
	default:
		return "malformed"
	}
}
