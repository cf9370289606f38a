package repository

import (
	"context"
	"errors"

	apperrors "github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/models"
	"gorm.io/gorm"
)

// PlayChannelRepository 游玩频道仓储接口
type PlayChannelRepository interface {
	BaseRepository
	Create(ctx context.Context, channel *models.PlayChannel) error
	Delete(ctx context.Context, gcKey string) error
	FindByKey(ctx context.Context, gcKey string) (*models.PlayChannel, error)
	FindBySession(ctx context.Context, sessionID uint) (*models.PlayChannel, error)
	GetAll(ctx context.Context) ([]*models.PlayChannel, error)
	SetActiveSession(ctx context.Context, gcKey string, sessionID *uint) error
	ClearSession(ctx context.Context, sessionID uint) error
}

// playChannelRepo 游玩频道仓储实现
type playChannelRepo struct {
	*BaseRepo
}

// NewPlayChannelRepository 创建游玩频道仓储
func NewPlayChannelRepository(db *gorm.DB) PlayChannelRepository {
	return &playChannelRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建频道记录（管理员启用频道时调用）
func (r *playChannelRepo) Create(ctx context.Context, channel *models.PlayChannel) error {
	if channel.GCKey == "" {
		channel.GCKey = models.ChannelKey(channel.GuildID, channel.ChannelID)
	}
	return r.db.WithContext(ctx).Create(channel).Error
}

// Delete 删除频道记录（管理员停用频道时调用）
func (r *playChannelRepo) Delete(ctx context.Context, gcKey string) error {
	return r.db.WithContext(ctx).Where("gc_key = ?", gcKey).Delete(&models.PlayChannel{}).Error
}

// FindByKey 根据guild+channel键查找频道
// 未启用的频道返回 ErrChannelNotEnabled。
func (r *playChannelRepo) FindByKey(ctx context.Context, gcKey string) (*models.PlayChannel, error) {
	var channel models.PlayChannel
	err := r.db.WithContext(ctx).Where("gc_key = ?", gcKey).First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrChannelNotEnabled)
		}
		return nil, err
	}
	return &channel, nil
}

// FindBySession 查找绑定了指定会话的频道
// 未找到返回 (nil, nil)：一个会话至多绑定到一个频道，由此查询先行保证。
func (r *playChannelRepo) FindBySession(ctx context.Context, sessionID uint) (*models.PlayChannel, error) {
	var channel models.PlayChannel
	err := r.db.WithContext(ctx).Where("active_session_id = ?", sessionID).First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &channel, nil
}

// GetAll 获取所有启用的频道
func (r *playChannelRepo) GetAll(ctx context.Context) ([]*models.PlayChannel, error) {
	var channels []*models.PlayChannel
	err := r.db.WithContext(ctx).Find(&channels).Error
	return channels, err
}

// SetActiveSession 重新指向频道的当前会话（nil表示解绑）
func (r *playChannelRepo) SetActiveSession(ctx context.Context, gcKey string, sessionID *uint) error {
	return r.db.WithContext(ctx).Model(&models.PlayChannel{}).
		Where("gc_key = ?", gcKey).
		Update("active_session_id", sessionID).Error
}

// ClearSession 清除所有指向该会话的频道绑定（删除会话时调用）
func (r *playChannelRepo) ClearSession(ctx context.Context, sessionID uint) error {
	return r.db.WithContext(ctx).Model(&models.PlayChannel{}).
		Where("active_session_id = ?", sessionID).
		Update("active_session_id", nil).Error
}
