package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/models"
)

func TestGameFileRepository_CreateAndFind(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewGameFileRepository(db)
	ctx := context.Background()

	game := &models.GameFile{
		Hash:     "0123456789abcdef0123456789abcdef",
		Filename: "advent.z5",
		Format:   models.FormatZcode,
		Size:     131072,
	}
	require.NoError(t, repo.Create(ctx, game))
	assert.NotZero(t, game.ID)

	found, err := repo.FindByHash(ctx, game.Hash)
	require.NoError(t, err)
	assert.Equal(t, "advent.z5", found.Filename)

	found, err = repo.FindByFilename(ctx, "advent.z5")
	require.NoError(t, err)
	assert.Equal(t, game.Hash, found.Hash)
}

func TestGameFileRepository_NotFound(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewGameFileRepository(db)
	ctx := context.Background()

	_, err := repo.FindByHash(ctx, "ffffffffffffffffffffffffffffffff")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = repo.FindByFilename(ctx, "nothing.ulx")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestGameFileRepository_Exists(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewGameFileRepository(db)
	ctx := context.Background()

	ok, err := repo.Exists(ctx, "aaaa")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Create(ctx, &models.GameFile{
		Hash: "aaaa", Filename: "x.ulx", Format: models.FormatGlulx,
	}))

	ok, err = repo.Exists(ctx, "aaaa")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGameFileRepository_Delete(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewGameFileRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.GameFile{
		Hash: "bbbb", Filename: "y.ulx", Format: models.FormatGlulx,
	}))
	require.NoError(t, repo.Delete(ctx, "bbbb"))

	_, err := repo.FindByHash(ctx, "bbbb")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
