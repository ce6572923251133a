package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/lumora-app/lumora-api/internal/models"
	"github.com/lumora-app/lumora-api/internal/repository"
)

func TestRemovePushTokensDropsOnlyStale(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewUserRepository(db)
	ctx := context.Background()

	user := models.User{
		Name:       "Ana",
		Role:       models.RoleUser,
		PushTokens: datatypes.NewJSONSlice([]string{"keep", "stale-1", "stale-2"}),
	}
	require.NoError(t, db.Create(&user).Error)

	require.NoError(t, repo.RemovePushTokens(ctx, user.ID, []string{"stale-1", "stale-2", "never-existed"}))

	tokens, err := repo.PushTokens(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"keep"}, tokens)
}

func TestRemovePushTokensNoopWhenNothingMatches(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewUserRepository(db)
	ctx := context.Background()

	user := models.User{
		Name:       "Ana",
		Role:       models.RoleUser,
		PushTokens: datatypes.NewJSONSlice([]string{"keep"}),
	}
	require.NoError(t, db.Create(&user).Error)

	require.NoError(t, repo.RemovePushTokens(ctx, user.ID, []string{"other"}))

	tokens, err := repo.PushTokens(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"keep"}, tokens)
}
