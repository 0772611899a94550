package usecase

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/testutil"
	"github.com/fekuna/omnipos-sync/internal/user"
	"github.com/fekuna/omnipos-sync/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRemote_MatchesNormalizedUsername(t *testing.T) {
	uc := NewUserUseCase(repository.NewSQLiteRepository(testutil.NewDB(t)), logger.NewNop())
	ctx := context.Background()

	created, err := uc.ApplyRemote(ctx, &model.User{Username: "Jean  Pierre", IsActive: true, IsSeller: true})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = uc.ApplyRemote(ctx, &model.User{UUID: "u-1", Username: "JEAN PIERRE", IsActive: true, IsAdmin: true})
	require.NoError(t, err)
	assert.False(t, created)

	users, err := uc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "jean pierre", users[0].Username)
	assert.Equal(t, "u-1", users[0].UUID)
	assert.True(t, users[0].IsAdmin)

	_, err = uc.ApplyRemote(ctx, &model.User{Username: "   "})
	assert.ErrorIs(t, err, user.ErrEmptyUsername)
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "admin", user.NormalizeUsername(" Admin "))
	assert.Equal(t, "jean pierre", user.NormalizeUsername("jean\tPierre"))
}
