package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/models"
)

func TestPlayChannelRepository_KeyDerivation(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewPlayChannelRepository(db)
	ctx := context.Background()

	channel := &models.PlayChannel{GuildID: "g1", ChannelID: "c1"}
	require.NoError(t, repo.Create(ctx, channel))
	assert.Equal(t, "g1-c1", channel.GCKey)

	found, err := repo.FindByKey(ctx, models.ChannelKey("g1", "c1"))
	require.NoError(t, err)
	assert.Equal(t, "c1", found.ChannelID)
}

func TestPlayChannelRepository_NotEnabled(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewPlayChannelRepository(db)

	_, err := repo.FindByKey(context.Background(), "g9-c9")
	assert.True(t, apperrors.Is(err, apperrors.ErrChannelNotEnabled))
}

func TestPlayChannelRepository_SessionBinding(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewPlayChannelRepository(db)
	ctx := context.Background()

	channel := &models.PlayChannel{GuildID: "g1", ChannelID: "c1"}
	require.NoError(t, repo.Create(ctx, channel))

	// 未绑定时按会话查不到，返回(nil,nil)
	found, err := repo.FindBySession(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, found)

	id := uint(42)
	require.NoError(t, repo.SetActiveSession(ctx, channel.GCKey, &id))

	found, err = repo.FindBySession(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, channel.GCKey, found.GCKey)

	// 解绑
	require.NoError(t, repo.SetActiveSession(ctx, channel.GCKey, nil))
	found, err = repo.FindBySession(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestPlayChannelRepository_ClearSession(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewPlayChannelRepository(db)
	ctx := context.Background()

	a := &models.PlayChannel{GuildID: "g1", ChannelID: "c1"}
	b := &models.PlayChannel{GuildID: "g1", ChannelID: "c2"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	id := uint(7)
	require.NoError(t, repo.SetActiveSession(ctx, a.GCKey, &id))

	require.NoError(t, repo.ClearSession(ctx, 7))

	found, err := repo.FindBySession(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestPlayChannelRepository_Delete(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewPlayChannelRepository(db)
	ctx := context.Background()

	channel := &models.PlayChannel{GuildID: "g1", ChannelID: "c1"}
	require.NoError(t, repo.Create(ctx, channel))
	require.NoError(t, repo.Delete(ctx, channel.GCKey))

	_, err := repo.FindByKey(ctx, channel.GCKey)
	assert.True(t, apperrors.Is(err, apperrors.ErrChannelNotEnabled))
}
