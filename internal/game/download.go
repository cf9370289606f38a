package game

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wfunc/if-gateway/internal/config"
	"github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/interp"
	"github.com/wfunc/if-gateway/internal/models"
	"github.com/wfunc/if-gateway/internal/repository"
)

// Downloader 游戏文件下载安装器。
// 按内容摘要去重：同一份字节不论来自哪个URL都只存一份。
type Downloader struct {
	cfg   *config.DownloadConfig
	paths *Paths
	games repository.GameFileRepository
	log   *zap.Logger

	client *http.Client
}

// NewDownloader 创建下载器
func NewDownloader(cfg *config.DownloadConfig, paths *Paths, games repository.GameFileRepository, log *zap.Logger) *Downloader {
	return &Downloader{
		cfg:   cfg,
		paths: paths,
		games: games,
		log:   log,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Install 下载URL指向的游戏文件并登记。
// 成功返回新建的GameFile；字节已存在时返回 ErrDuplicateGame，
// 调用方可用 FindByHash 拿到已有的那行。
func (d *Downloader) Install(ctx context.Context, rawURL string) (*models.GameFile, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.New(errors.ErrBadURLScheme, rawURL)
	}

	filename := path.Base(u.Path)
	if filename == "" || filename == "/" || filename == "." {
		return nil, errors.New(errors.ErrNotAFile, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDownloadHTTP)
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDownloadHTTP)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrDownloadHTTP, "%d %s: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), rawURL)
	}

	if err := os.MkdirAll(d.paths.GamesDir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrDirectory)
	}

	// 先落到临时文件，边写边算摘要
	tmpName := fmt.Sprintf("tmp-%s-%d", uuid.New().String(), time.Now().UnixNano())
	tmpPath := filepath.Join(d.paths.GamesDir, tmpName)
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDirectory)
	}
	removeTmp := true
	defer func() {
		tmp.Close()
		if removeTmp {
			os.Remove(tmpPath)
		}
	}()

	hasher := md5.New()
	body := io.Reader(resp.Body)
	if d.cfg.MaxFileSize > 0 {
		body = io.LimitReader(resp.Body, d.cfg.MaxFileSize+1)
	}
	size, err := io.Copy(io.MultiWriter(tmp, hasher), body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDownloadHTTP, rawURL)
	}
	if d.cfg.MaxFileSize > 0 && size > d.cfg.MaxFileSize {
		return nil, errors.Newf(errors.ErrDownloadHTTP, "file exceeds %d bytes: %s",
			d.cfg.MaxFileSize, rawURL)
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrDirectory)
	}

	hash := hex.EncodeToString(hasher.Sum(nil))

	exists, err := d.games.Exists(ctx, hash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.New(errors.ErrDuplicateGame, filename)
	}

	head, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDirectory)
	}
	format := interp.DetectFormat(filename, head)
	if format == models.FormatUnknown {
		return nil, errors.New(errors.ErrUnknownFormat, filename)
	}

	game := &models.GameFile{
		Hash:      hash,
		Filename:  filename,
		SourceURL: rawURL,
		Format:    format,
		Size:      size,
	}

	finalPath := d.paths.GamePath(game)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, errors.Wrap(err, errors.ErrDirectory)
	}
	removeTmp = false

	if err := d.games.Create(ctx, game); err != nil {
		os.Remove(finalPath)
		return nil, err
	}

	d.log.Info("game installed",
		zap.String("hash", hash),
		zap.String("filename", filename),
		zap.String("format", format),
		zap.Int64("size", size))
	return game, nil
}

// FilenameFromURL 从URL提取文件名（供聊天层展示用）
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	return strings.TrimSpace(name)
}
