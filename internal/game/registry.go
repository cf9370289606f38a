package game

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/models"
	"github.com/wfunc/if-gateway/internal/repository"
)

// Registry 游戏、会话和频道绑定的登记处。
// 数据落在数据库里；回合进行中标记只在进程内存里，重启后自然清零。
type Registry struct {
	sessions repository.SessionRepository
	channels repository.PlayChannelRepository
	games    repository.GameFileRepository
	paths    *Paths
	log      *zap.Logger

	mu       sync.Mutex
	inFlight map[uint]bool
}

// NewRegistry 创建登记处
func NewRegistry(sessions repository.SessionRepository, channels repository.PlayChannelRepository,
	games repository.GameFileRepository, paths *Paths, log *zap.Logger) *Registry {
	return &Registry{
		sessions: sessions,
		channels: channels,
		games:    games,
		paths:    paths,
		log:      log,
		inFlight: make(map[uint]bool),
	}
}

// Acquire 标记会话进入回合。已有回合在跑时返回 ErrSessionBusy，
// 不排队：重复命令直接丢弃。
func (r *Registry) Acquire(sessionID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[sessionID] {
		return errors.New(errors.ErrSessionBusy)
	}
	r.inFlight[sessionID] = true
	return nil
}

// Release 回合结束（无论成败）后释放标记
func (r *Registry) Release(sessionID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, sessionID)
}

// ValidPlayChannel 查该频道是否启用了游玩。
// 未启用返回 (nil, nil)：普通频道里的消息与本服务无关，静默忽略。
func (r *Registry) ValidPlayChannel(ctx context.Context, guildID, channelID string) (*models.PlayChannel, error) {
	channel, err := r.channels.FindByKey(ctx, models.ChannelKey(guildID, channelID))
	if err != nil {
		if errors.Is(err, errors.ErrChannelNotEnabled) {
			return nil, nil
		}
		return nil, err
	}
	return channel, nil
}

// EnableChannel 启用一个频道（幂等）
func (r *Registry) EnableChannel(ctx context.Context, guildID, channelID string) error {
	key := models.ChannelKey(guildID, channelID)
	if _, err := r.channels.FindByKey(ctx, key); err == nil {
		return nil
	} else if !errors.Is(err, errors.ErrChannelNotEnabled) {
		return err
	}
	return r.channels.Create(ctx, &models.PlayChannel{
		GCKey:     key,
		GuildID:   guildID,
		ChannelID: channelID,
	})
}

// DisableChannel 停用一个频道。绑定的会话只是解绑，不会被删除。
func (r *Registry) DisableChannel(ctx context.Context, guildID, channelID string) error {
	return r.channels.Delete(ctx, models.ChannelKey(guildID, channelID))
}

// ResolveGame 按哈希或文件名找已安装的游戏
func (r *Registry) ResolveGame(ctx context.Context, ref string) (*models.GameFile, error) {
	if game, err := r.games.FindByHash(ctx, ref); err == nil {
		return game, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	return r.games.FindByFilename(ctx, ref)
}

// SelectGame 在频道里选择一个游戏来玩。
// 优先续上该游戏在本服务器内最近且未绑定到其他频道的会话；
// 没有可续的就新建一个。返回绑定后的会话。
func (r *Registry) SelectGame(ctx context.Context, channel *models.PlayChannel, game *models.GameFile) (*models.Session, error) {
	candidates, err := r.sessions.FindByGame(ctx, channel.GuildID, game.Hash)
	if err != nil {
		return nil, err
	}

	for _, sess := range candidates {
		bound, err := r.channels.FindBySession(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		if bound == nil || bound.GCKey == channel.GCKey {
			if err := r.bind(ctx, channel, sess); err != nil {
				return nil, err
			}
			return sess, nil
		}
	}

	sess := &models.Session{
		GuildID:  channel.GuildID,
		GameHash: game.Hash,
	}
	if err := r.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	if err := r.paths.EnsureSessionDirs(sess); err != nil {
		return nil, err
	}
	if err := r.bind(ctx, channel, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SelectSession 把一个已有会话绑到频道上。
// 会话必须存在、属于同一服务器、且未被其他频道占用；
// 绑到当前频道的会话重复选择是幂等的。
func (r *Registry) SelectSession(ctx context.Context, channel *models.PlayChannel, sessionID uint) (*models.Session, error) {
	sess, err := r.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.GuildID != channel.GuildID {
		return nil, errors.New(errors.ErrSessionGuildMismatch)
	}

	bound, err := r.channels.FindBySession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if bound != nil && bound.GCKey != channel.GCKey {
		return nil, errors.Newf(errors.ErrSessionBoundElsewhere,
			"channel %s", bound.ChannelID)
	}

	if err := r.bind(ctx, channel, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// UnbindChannel 频道停玩：解绑当前会话（会话保留，可以日后续上）
func (r *Registry) UnbindChannel(ctx context.Context, channel *models.PlayChannel) error {
	return r.channels.SetActiveSession(ctx, channel.GCKey, nil)
}

// ActiveSession 取频道当前绑定的会话，未绑定返回 (nil, nil)
func (r *Registry) ActiveSession(ctx context.Context, channel *models.PlayChannel) (*models.Session, error) {
	if channel.ActiveSessionID == nil {
		return nil, nil
	}
	sess, err := r.sessions.FindByID(ctx, *channel.ActiveSessionID)
	if err != nil {
		if errors.Is(err, errors.ErrUnknownSession) {
			// 绑定指向已消失的会话，顺手修掉
			_ = r.channels.SetActiveSession(ctx, channel.GCKey, nil)
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// DeleteSession 彻底删除一个会话：解除所有频道绑定，抹掉磁盘目录和数据库行。
// 正在跑回合的会话拒绝删除。
func (r *Registry) DeleteSession(ctx context.Context, guildID string, sessionID uint) error {
	r.mu.Lock()
	busy := r.inFlight[sessionID]
	r.mu.Unlock()
	if busy {
		return errors.New(errors.ErrSessionBusy)
	}

	sess, err := r.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.GuildID != guildID {
		return errors.New(errors.ErrSessionGuildMismatch)
	}

	if err := r.channels.ClearSession(ctx, sess.ID); err != nil {
		return err
	}
	if err := RemoveFlatDir(r.paths.AutoSaveDir(sess)); err != nil {
		return err
	}
	if err := RemoveFlatDir(r.paths.SaveDir(sess)); err != nil {
		return err
	}
	if err := r.sessions.Delete(ctx, sess.ID); err != nil {
		return err
	}

	r.log.Info("session deleted",
		zap.Uint("session_id", sess.ID),
		zap.String("game_hash", sess.GameHash))
	return nil
}

// DeleteGame 删除已安装的游戏文件。
// 仍有会话引用时拒绝：先删会话再删游戏。
func (r *Registry) DeleteGame(ctx context.Context, ref string) error {
	game, err := r.ResolveGame(ctx, ref)
	if err != nil {
		return err
	}

	count, err := r.sessions.CountByGame(ctx, game.Hash)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.Newf(errors.ErrGameInUse, "%d session(s)", count)
	}

	if err := os.Remove(r.paths.GamePath(game)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrDirectory)
	}
	if err := r.games.Delete(ctx, game.Hash); err != nil {
		return err
	}

	r.log.Info("game deleted",
		zap.String("hash", game.Hash),
		zap.String("filename", game.Filename))
	return nil
}

// ListGames 所有已安装的游戏
func (r *Registry) ListGames(ctx context.Context) ([]*models.GameFile, error) {
	return r.games.GetAll(ctx)
}

// ListChannels 所有启用的频道
func (r *Registry) ListChannels(ctx context.Context) ([]*models.PlayChannel, error) {
	return r.channels.GetAll(ctx)
}

// ListSessions 一个服务器内的所有会话（按最近更新排序）
func (r *Registry) ListSessions(ctx context.Context, guildID string) ([]*models.Session, error) {
	return r.sessions.FindByGuild(ctx, guildID)
}

// GameByHash 按哈希取游戏
func (r *Registry) GameByHash(ctx context.Context, hash string) (*models.GameFile, error) {
	return r.games.FindByHash(ctx, hash)
}

// bind 把频道的当前会话指向 sess
func (r *Registry) bind(ctx context.Context, channel *models.PlayChannel, sess *models.Session) error {
	id := sess.ID
	if err := r.channels.SetActiveSession(ctx, channel.GCKey, &id); err != nil {
		return err
	}
	channel.ActiveSessionID = &id
	return nil
}
