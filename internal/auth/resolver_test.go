// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/internal/auth"
	"github.com/keyfold/keyfold/internal/auth/mocks"
)

func TestNewSessionResolver_NilDependencies(t *testing.T) {
	repo := mocks.NewMockUserRepository(t)
	cache := auth.NewUserCache(repo)
	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	resolver, err := auth.NewSessionResolver(nil, cache)
	require.Error(t, err)
	assert.Nil(t, resolver)

	resolver, err = auth.NewSessionResolver(tokens, nil)
	require.Error(t, err)
	assert.Nil(t, resolver)
}

func TestSessionResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*auth.SessionResolver, *auth.TokenService, *mocks.MockUserRepository, *auth.UserCache) {
		t.Helper()
		repo := mocks.NewMockUserRepository(t)
		cache := auth.NewUserCache(repo)
		tokens, err := auth.NewTokenService(testSecret)
		require.NoError(t, err)
		resolver, err := auth.NewSessionResolver(tokens, cache)
		require.NoError(t, err)
		return resolver, tokens, repo, cache
	}

	t.Run("valid bearer token resolves to user", func(t *testing.T) {
		resolver, tokens, _, cache := setup(t)
		user := newTestUser()
		cache.Put(user)

		token, err := tokens.Issue(user.ID.String(), user.Email)
		require.NoError(t, err)

		got, err := resolver.Resolve(ctx, "Bearer "+token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, user.Email, got.Email)
	})

	t.Run("raw token without scheme is accepted", func(t *testing.T) {
		resolver, tokens, _, cache := setup(t)
		user := newTestUser()
		cache.Put(user)

		token, err := tokens.Issue(user.ID.String(), user.Email)
		require.NoError(t, err)

		got, err := resolver.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("missing header", func(t *testing.T) {
		resolver, _, _, _ := setup(t)

		got, err := resolver.Resolve(ctx, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
		assert.Nil(t, got)
	})

	t.Run("garbage token", func(t *testing.T) {
		resolver, _, _, _ := setup(t)

		got, err := resolver.Resolve(ctx, "Bearer not-a-token")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
		assert.Nil(t, got)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		resolver, _, _, _ := setup(t)
		other, err := auth.NewTokenService([]byte("a-different-secret"))
		require.NoError(t, err)

		token, err := other.Issue(newTestUser().ID.String(), "alice@example.com")
		require.NoError(t, err)

		got, err := resolver.Resolve(ctx, "Bearer "+token)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrTokenSignature)
		assert.Nil(t, got)
	})

	t.Run("valid token for deleted user", func(t *testing.T) {
		resolver, tokens, repo, _ := setup(t)
		user := newTestUser()

		token, err := tokens.Issue(user.ID.String(), user.Email)
		require.NoError(t, err)

		repo.On("GetByID", ctx, user.ID).Return(nil, auth.ErrNotFound).Once()

		got, err := resolver.Resolve(ctx, "Bearer "+token)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
		assert.Nil(t, got)
	})

	t.Run("claims with malformed user id", func(t *testing.T) {
		resolver, tokens, _, _ := setup(t)

		token, err := tokens.Issue("not-a-ulid", "alice@example.com")
		require.NoError(t, err)

		got, err := resolver.Resolve(ctx, "Bearer "+token)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
		assert.Nil(t, got)
	})
}
