package repository

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/models"
	"gorm.io/gorm"
)

// SessionRepository 会话仓储接口
type SessionRepository interface {
	BaseRepository
	Create(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*models.Session, error)
	FindByGuild(ctx context.Context, guildID string) ([]*models.Session, error)
	FindByGame(ctx context.Context, guildID, gameHash string) ([]*models.Session, error)
	CountByGame(ctx context.Context, gameHash string) (int64, error)
	BumpMove(ctx context.Context, id uint) error
}

// sessionRepo 会话仓储实现
type sessionRepo struct {
	*BaseRepo
}

// NewSessionRepository 创建会话仓储
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建会话
func (r *sessionRepo) Create(ctx context.Context, session *models.Session) error {
	if session.LastUpdate.IsZero() {
		session.LastUpdate = time.Now()
	}
	return r.db.WithContext(ctx).Create(session).Error
}

// Delete 删除会话
func (r *sessionRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Session{}, id).Error
}

// FindByID 根据ID查找会话
func (r *sessionRepo) FindByID(ctx context.Context, id uint) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrUnknownSession, "session %d", id)
		}
		return nil, err
	}
	return &session, nil
}

// FindByGuild 获取一个服务器内的所有会话（按最近更新排序）
func (r *sessionRepo) FindByGuild(ctx context.Context, guildID string) ([]*models.Session, error) {
	var sessions []*models.Session
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("last_update DESC").
		Find(&sessions).Error
	return sessions, err
}

// FindByGame 获取一个服务器内某游戏的所有会话（按最近更新排序）
func (r *sessionRepo) FindByGame(ctx context.Context, guildID, gameHash string) ([]*models.Session, error) {
	var sessions []*models.Session
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND game_hash = ?", guildID, gameHash).
		Order("last_update DESC").
		Find(&sessions).Error
	return sessions, err
}

// CountByGame 统计引用某游戏的会话数（跨服务器，删除游戏前的引用检查）
func (r *sessionRepo) CountByGame(ctx context.Context, gameHash string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Session{}).
		Where("game_hash = ?", gameHash).Count(&count).Error
	return count, err
}

// BumpMove 回合成功后递增步数并刷新时间戳
func (r *sessionRepo) BumpMove(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"move_count":  gorm.Expr("move_count + 1"),
			"last_update": time.Now(),
		}).Error
}
