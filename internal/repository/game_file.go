package repository

import (
	"context"
	"errors"

	apperrors "github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/models"
	"gorm.io/gorm"
)

// GameFileRepository 游戏文件仓储接口
type GameFileRepository interface {
	BaseRepository
	Create(ctx context.Context, game *models.GameFile) error
	Delete(ctx context.Context, hash string) error
	FindByHash(ctx context.Context, hash string) (*models.GameFile, error)
	FindByFilename(ctx context.Context, guildAgnosticName string) (*models.GameFile, error)
	GetAll(ctx context.Context) ([]*models.GameFile, error)
	Exists(ctx context.Context, hash string) (bool, error)
}

// gameFileRepo 游戏文件仓储实现
type gameFileRepo struct {
	*BaseRepo
}

// NewGameFileRepository 创建游戏文件仓储
func NewGameFileRepository(db *gorm.DB) GameFileRepository {
	return &gameFileRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建游戏文件记录
func (r *gameFileRepo) Create(ctx context.Context, game *models.GameFile) error {
	return r.db.WithContext(ctx).Create(game).Error
}

// Delete 按内容哈希删除游戏文件记录
func (r *gameFileRepo) Delete(ctx context.Context, hash string) error {
	return r.db.WithContext(ctx).Where("hash = ?", hash).Delete(&models.GameFile{}).Error
}

// FindByHash 根据内容哈希查找游戏
func (r *gameFileRepo) FindByHash(ctx context.Context, hash string) (*models.GameFile, error) {
	var game models.GameFile
	err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrNotFound, "game %s", hash)
		}
		return nil, err
	}
	return &game, nil
}

// FindByFilename 根据文件名查找游戏（选择游戏时的友好引用方式）
func (r *gameFileRepo) FindByFilename(ctx context.Context, filename string) (*models.GameFile, error) {
	var game models.GameFile
	err := r.db.WithContext(ctx).Where("filename = ?", filename).First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrNotFound, "game %q", filename)
		}
		return nil, err
	}
	return &game, nil
}

// GetAll 获取所有已安装的游戏
func (r *gameFileRepo) GetAll(ctx context.Context) ([]*models.GameFile, error) {
	var games []*models.GameFile
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&games).Error
	return games, err
}

// Exists 检查哈希对应的游戏是否已安装
func (r *gameFileRepo) Exists(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GameFile{}).
		Where("hash = ?", hash).Count(&count).Error
	return count > 0, err
}
