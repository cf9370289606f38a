package game

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wfunc/if-gateway/internal/config"
	"github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/models"
	"github.com/wfunc/if-gateway/internal/repository"
)

// testEnv 测试用注册处及其依赖
type testEnv struct {
	registry *Registry
	paths    *Paths
	sessions repository.SessionRepository
	channels repository.PlayChannelRepository
	games    repository.GameFileRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := repository.SetupTestDB()
	t.Cleanup(func() { repository.CleanupTestDB(db) })

	root := t.TempDir()
	paths := NewPaths(&config.StorageConfig{
		GamesDir:    filepath.Join(root, "games"),
		AutoSaveDir: filepath.Join(root, "autosave"),
		SaveDir:     filepath.Join(root, "saves"),
	})
	require.NoError(t, os.MkdirAll(paths.GamesDir, 0755))

	sessions := repository.NewSessionRepository(db)
	channels := repository.NewPlayChannelRepository(db)
	games := repository.NewGameFileRepository(db)

	return &testEnv{
		registry: NewRegistry(sessions, channels, games, paths, zap.NewNop()),
		paths:    paths,
		sessions: sessions,
		channels: channels,
		games:    games,
	}
}

// enableChannel 启用一个频道并返回它
func (e *testEnv) enableChannel(t *testing.T, guildID, channelID string) *models.PlayChannel {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.registry.EnableChannel(ctx, guildID, channelID))
	channel, err := e.registry.ValidPlayChannel(ctx, guildID, channelID)
	require.NoError(t, err)
	require.NotNil(t, channel)
	return channel
}

// installGame 登记一个游戏并放置空文件
func (e *testEnv) installGame(t *testing.T, hash, filename string) *models.GameFile {
	t.Helper()
	game := &models.GameFile{
		Hash: hash, Filename: filename, Format: models.FormatGlulx,
	}
	require.NoError(t, e.games.Create(context.Background(), game))
	require.NoError(t, os.WriteFile(e.paths.GamePath(game), []byte("Glulstub"), 0644))
	return game
}

func TestRegistry_InFlightGuard(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.registry.Acquire(1))

	// 重复获取被拒绝，不排队
	err := env.registry.Acquire(1)
	assert.True(t, errors.Is(err, errors.ErrSessionBusy))

	// 不同会话互不影响
	require.NoError(t, env.registry.Acquire(2))

	env.registry.Release(1)
	require.NoError(t, env.registry.Acquire(1))
}

func TestRegistry_NonEnabledChannelIgnored(t *testing.T) {
	env := newTestEnv(t)

	channel, err := env.registry.ValidPlayChannel(context.Background(), "g1", "c1")
	require.NoError(t, err)
	assert.Nil(t, channel)
}

func TestRegistry_EnableIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.registry.EnableChannel(ctx, "g1", "c1"))
	require.NoError(t, env.registry.EnableChannel(ctx, "g1", "c1"))

	channels, err := env.registry.ListChannels(ctx)
	require.NoError(t, err)
	assert.Len(t, channels, 1)
}

func TestRegistry_SelectGameCreatesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	channel := env.enableChannel(t, "g1", "c1")
	game := env.installGame(t, "hash1", "advent.ulx")

	sess, err := env.registry.SelectGame(ctx, channel, game)
	require.NoError(t, err)
	assert.Equal(t, "g1", sess.GuildID)
	assert.Equal(t, "hash1", sess.GameHash)

	// 会话目录已创建
	assert.DirExists(t, env.paths.AutoSaveDir(sess))
	assert.DirExists(t, env.paths.SaveDir(sess))

	// 频道绑定已写入
	bound, err := env.registry.ActiveSession(ctx, channel)
	require.NoError(t, err)
	require.NotNil(t, bound)
	assert.Equal(t, sess.ID, bound.ID)
}

func TestRegistry_SelectGameReusesUnboundSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c1 := env.enableChannel(t, "g1", "c1")
	c2 := env.enableChannel(t, "g1", "c2")
	game := env.installGame(t, "hash1", "advent.ulx")

	sess, err := env.registry.SelectGame(ctx, c1, game)
	require.NoError(t, err)

	// 解绑后另一个频道选择同一游戏应复用会话
	require.NoError(t, env.registry.UnbindChannel(ctx, c1))
	reused, err := env.registry.SelectGame(ctx, c2, game)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, reused.ID)

	// 仍被c2绑定时，第三个频道选择同一游戏要新建会话
	c3 := env.enableChannel(t, "g1", "c3")
	fresh, err := env.registry.SelectGame(ctx, c3, game)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, fresh.ID)
}

func TestRegistry_SelectSessionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c1 := env.enableChannel(t, "g1", "c1")
	c2 := env.enableChannel(t, "g1", "c2")
	game := env.installGame(t, "hash1", "advent.ulx")

	sess, err := env.registry.SelectGame(ctx, c1, game)
	require.NoError(t, err)

	// 不存在的ID
	_, err = env.registry.SelectSession(ctx, c2, 9999)
	assert.True(t, errors.Is(err, errors.ErrUnknownSession))

	// 已被其他频道绑定：报错里带着占用方频道
	_, err = env.registry.SelectSession(ctx, c2, sess.ID)
	assert.True(t, errors.Is(err, errors.ErrSessionBoundElsewhere))
	assert.Contains(t, err.Error(), "c1")

	// 绑回当前频道是幂等的
	again, err := env.registry.SelectSession(ctx, c1, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, again.ID)

	// 别的服务器的会话不可见
	other := env.enableChannel(t, "g2", "c9")
	_, err = env.registry.SelectSession(ctx, other, sess.ID)
	assert.True(t, errors.Is(err, errors.ErrSessionGuildMismatch))
}

func TestRegistry_DeleteSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	channel := env.enableChannel(t, "g1", "c1")
	game := env.installGame(t, "hash1", "advent.ulx")
	sess, err := env.registry.SelectGame(ctx, channel, game)
	require.NoError(t, err)

	// 目录里放一个文件，确认一并删除
	require.NoError(t, os.WriteFile(
		filepath.Join(env.paths.SaveDir(sess), "autosave.json"), []byte("{}"), 0644))

	require.NoError(t, env.registry.DeleteSession(ctx, "g1", sess.ID))

	assert.NoDirExists(t, env.paths.SaveDir(sess))
	assert.NoDirExists(t, env.paths.AutoSaveDir(sess))

	// 频道绑定已清除
	bound, err := env.registry.ActiveSession(ctx, channel)
	require.NoError(t, err)
	assert.Nil(t, bound)

	_, err = env.sessions.FindByID(ctx, sess.ID)
	assert.True(t, errors.Is(err, errors.ErrUnknownSession))
}

func TestRegistry_DeleteSessionGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	channel := env.enableChannel(t, "g1", "c1")
	game := env.installGame(t, "hash1", "advent.ulx")
	sess, err := env.registry.SelectGame(ctx, channel, game)
	require.NoError(t, err)

	// 回合进行中拒绝删除
	require.NoError(t, env.registry.Acquire(sess.ID))
	err = env.registry.DeleteSession(ctx, "g1", sess.ID)
	assert.True(t, errors.Is(err, errors.ErrSessionBusy))
	env.registry.Release(sess.ID)

	// 别的服务器删不掉
	err = env.registry.DeleteSession(ctx, "g2", sess.ID)
	assert.True(t, errors.Is(err, errors.ErrSessionGuildMismatch))
}

func TestRegistry_DeleteGameReferenceCheck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	channel := env.enableChannel(t, "g1", "c1")
	game := env.installGame(t, "hash1", "advent.ulx")
	sess, err := env.registry.SelectGame(ctx, channel, game)
	require.NoError(t, err)

	// 仍有会话引用时拒绝
	err = env.registry.DeleteGame(ctx, "hash1")
	assert.True(t, errors.Is(err, errors.ErrGameInUse))

	require.NoError(t, env.registry.DeleteSession(ctx, "g1", sess.ID))
	require.NoError(t, env.registry.DeleteGame(ctx, "hash1"))

	assert.NoFileExists(t, env.paths.GamePath(game))
	_, err = env.registry.ResolveGame(ctx, "hash1")
	assert.Error(t, err)
}

func TestRegistry_ResolveGameByFilename(t *testing.T) {
	env := newTestEnv(t)
	game := env.installGame(t, "hash1", "advent.ulx")

	found, err := env.registry.ResolveGame(context.Background(), "advent.ulx")
	require.NoError(t, err)
	assert.Equal(t, game.Hash, found.Hash)
}

func TestRemoveFlatDir_RefusesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "flat")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "nested"), 0755))

	err := RemoveFlatDir(target)
	assert.True(t, errors.Is(err, errors.ErrDirectory))
	assert.DirExists(t, target)

	// 不存在的目录不算错误
	assert.NoError(t, RemoveFlatDir(filepath.Join(dir, "missing")))
}
