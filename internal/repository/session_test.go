package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/models"
)

func TestSessionRepository_CreateAndFind(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	sess := &models.Session{GuildID: "g1", GameHash: "hash1"}
	require.NoError(t, repo.Create(ctx, sess))
	assert.NotZero(t, sess.ID)
	assert.False(t, sess.LastUpdate.IsZero())

	found, err := repo.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "g1", found.GuildID)
	assert.Equal(t, fmt.Sprintf("sess-%d", sess.ID), found.DirName())
}

func TestSessionRepository_UnknownID(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewSessionRepository(db)

	_, err := repo.FindByID(context.Background(), 9999)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnknownSession))
}

func TestSessionRepository_FindByGameOrder(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	old := &models.Session{GuildID: "g1", GameHash: "hash1",
		LastUpdate: time.Now().Add(-time.Hour)}
	recent := &models.Session{GuildID: "g1", GameHash: "hash1",
		LastUpdate: time.Now()}
	other := &models.Session{GuildID: "g2", GameHash: "hash1",
		LastUpdate: time.Now()}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, recent))
	require.NoError(t, repo.Create(ctx, other))

	// 只含本服务器的会话，最近的在前
	sessions, err := repo.FindByGame(ctx, "g1", "hash1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, recent.ID, sessions[0].ID)
	assert.Equal(t, old.ID, sessions[1].ID)
}

func TestSessionRepository_CountByGame(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Session{GuildID: "g1", GameHash: "h1"}))
	require.NoError(t, repo.Create(ctx, &models.Session{GuildID: "g2", GameHash: "h1"}))

	// 引用计数跨服务器
	count, err := repo.CountByGame(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSessionRepository_BumpMove(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	sess := &models.Session{GuildID: "g1", GameHash: "h1",
		LastUpdate: time.Now().Add(-time.Hour)}
	require.NoError(t, repo.Create(ctx, sess))

	require.NoError(t, repo.BumpMove(ctx, sess.ID))
	require.NoError(t, repo.BumpMove(ctx, sess.ID))

	found, err := repo.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.MoveCount)
	assert.WithinDuration(t, time.Now(), found.LastUpdate, time.Minute)
}
