package game

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wfunc/if-gateway/internal/config"
	"github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/models"
	"github.com/wfunc/if-gateway/internal/repository"
)

// glulxBytes 以Glul魔数开头，能被内容嗅探识别
var glulxBytes = []byte("Glul\x00\x03\x01\x03 test story bytes")

func newTestDownloader(t *testing.T, maxSize int64) (*Downloader, *Paths, repository.GameFileRepository) {
	t.Helper()
	db := repository.SetupTestDB()
	t.Cleanup(func() { repository.CleanupTestDB(db) })

	root := t.TempDir()
	paths := NewPaths(&config.StorageConfig{
		GamesDir:    filepath.Join(root, "games"),
		AutoSaveDir: filepath.Join(root, "autosave"),
		SaveDir:     filepath.Join(root, "saves"),
	})
	games := repository.NewGameFileRepository(db)
	dl := NewDownloader(&config.DownloadConfig{
		UserAgent:   "IFGateway-Terp",
		Timeout:     5 * time.Second,
		MaxFileSize: maxSize,
	}, paths, games, zap.NewNop())
	return dl, paths, games
}

func serveFile(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "IFGateway-Terp", r.Header.Get("User-Agent"))
		w.Write(content)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloader_Install(t *testing.T) {
	dl, paths, games := newTestDownloader(t, 0)
	srv := serveFile(t, glulxBytes)

	game, err := dl.Install(context.Background(), srv.URL+"/advent.ulx")
	require.NoError(t, err)
	assert.Equal(t, "advent.ulx", game.Filename)
	assert.Equal(t, models.FormatGlulx, game.Format)
	assert.Equal(t, int64(len(glulxBytes)), game.Size)

	// 落盘文件按哈希命名，内容完整
	data, err := os.ReadFile(paths.GamePath(game))
	require.NoError(t, err)
	assert.Equal(t, glulxBytes, data)

	// 数据库里能按哈希找到
	found, err := games.FindByHash(context.Background(), game.Hash)
	require.NoError(t, err)
	assert.Equal(t, game.Filename, found.Filename)

	// 没有残留的临时文件
	entries, err := os.ReadDir(paths.GamesDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownloader_DuplicateBytes(t *testing.T) {
	dl, _, _ := newTestDownloader(t, 0)
	srv := serveFile(t, glulxBytes)

	_, err := dl.Install(context.Background(), srv.URL+"/advent.ulx")
	require.NoError(t, err)

	// 同一份字节换个URL和文件名仍然判重
	_, err = dl.Install(context.Background(), srv.URL+"/copy-of-advent.ulx")
	assert.True(t, errors.Is(err, errors.ErrDuplicateGame))
}

func TestDownloader_BadScheme(t *testing.T) {
	dl, _, _ := newTestDownloader(t, 0)

	_, err := dl.Install(context.Background(), "ftp://example.com/advent.ulx")
	assert.True(t, errors.Is(err, errors.ErrBadURLScheme))

	_, err = dl.Install(context.Background(), "not a url")
	assert.True(t, errors.Is(err, errors.ErrBadURLScheme))
}

func TestDownloader_URLWithoutFilename(t *testing.T) {
	dl, _, _ := newTestDownloader(t, 0)

	_, err := dl.Install(context.Background(), "https://example.com/")
	assert.True(t, errors.Is(err, errors.ErrNotAFile))
}

func TestDownloader_HTTPError(t *testing.T) {
	dl, _, _ := newTestDownloader(t, 0)
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := dl.Install(context.Background(), srv.URL+"/missing.ulx")
	assert.True(t, errors.Is(err, errors.ErrDownloadHTTP))
	assert.Contains(t, err.Error(), "404")
}

func TestDownloader_SizeLimit(t *testing.T) {
	dl, paths, _ := newTestDownloader(t, 16)
	srv := serveFile(t, glulxBytes)

	_, err := dl.Install(context.Background(), srv.URL+"/advent.ulx")
	assert.True(t, errors.Is(err, errors.ErrDownloadHTTP))

	// 超限下载不留垃圾
	entries, err := os.ReadDir(paths.GamesDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloader_UnknownFormat(t *testing.T) {
	dl, _, _ := newTestDownloader(t, 0)
	srv := serveFile(t, []byte("definitely not a story file"))

	_, err := dl.Install(context.Background(), srv.URL+"/readme.txt")
	assert.True(t, errors.Is(err, errors.ErrUnknownFormat))
}

func TestFilenameFromURL(t *testing.T) {
	assert.Equal(t, "advent.ulx", FilenameFromURL("https://cdn.example.com/path/advent.ulx"))
	assert.Equal(t, "", FilenameFromURL("https://cdn.example.com/"))
	assert.Equal(t, "", FilenameFromURL("://bad"))
}
