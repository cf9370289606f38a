package game

import (
	"os"
	"path/filepath"

	"github.com/wfunc/if-gateway/internal/config"
	"github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/models"
)

// Paths 会话和游戏文件的磁盘布局。
// 每个会话有独立的自动存档目录和存档工作目录，目录名由会话ID唯一确定。
type Paths struct {
	GamesDir     string
	AutoSaveRoot string
	SaveRoot     string
}

// NewPaths 根据存储配置创建路径布局
func NewPaths(cfg *config.StorageConfig) *Paths {
	return &Paths{
		GamesDir:     cfg.GamesDir,
		AutoSaveRoot: cfg.AutoSaveDir,
		SaveRoot:     cfg.SaveDir,
	}
}

// GamePath 游戏文件的磁盘路径：按内容哈希命名，保留原扩展名
func (p *Paths) GamePath(game *models.GameFile) string {
	return filepath.Join(p.GamesDir, game.Hash+filepath.Ext(game.Filename))
}

// AutoSaveDir 会话的自动存档目录
func (p *Paths) AutoSaveDir(sess *models.Session) string {
	return filepath.Join(p.AutoSaveRoot, sess.DirName())
}

// SaveDir 会话的存档工作目录（解释器的工作目录）
func (p *Paths) SaveDir(sess *models.Session) string {
	return filepath.Join(p.SaveRoot, sess.DirName())
}

// TranscriptPath 会话的逐行JSON记录文件
func (p *Paths) TranscriptPath(sess *models.Session) string {
	return filepath.Join(p.SaveRoot, sess.DirName(), "transcript.jsonl")
}

// EnsureSessionDirs 创建会话目录（幂等）
func (p *Paths) EnsureSessionDirs(sess *models.Session) error {
	if err := os.MkdirAll(p.AutoSaveDir(sess), 0755); err != nil {
		return errors.Wrap(err, errors.ErrDirectory)
	}
	if err := os.MkdirAll(p.SaveDir(sess), 0755); err != nil {
		return errors.Wrap(err, errors.ErrDirectory)
	}
	return nil
}

// RemoveFlatDir 删除一个不含子目录的目录。
// 目录意外包含子目录时大声失败，从不递归。
func RemoveFlatDir(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, errors.ErrDirectory)
	}

	for _, ent := range entries {
		if ent.IsDir() {
			return errors.Newf(errors.ErrDirectory,
				"unexpected subdirectory: %s", filepath.Join(path, ent.Name()))
		}
	}
	for _, ent := range entries {
		if err := os.Remove(filepath.Join(path, ent.Name())); err != nil {
			return errors.Wrap(err, errors.ErrDirectory)
		}
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrap(err, errors.ErrDirectory)
	}
	return nil
}
