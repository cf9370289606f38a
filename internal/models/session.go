package models

import (
	"fmt"
	"time"
)

// 游戏文件格式
const (
	FormatGlulx   = "glulx"
	FormatZcode   = "zcode"
	FormatInk     = "ink"
	FormatYs      = "ys"
	FormatUnknown = ""
)

// GameFile 已安装的游戏文件表
// 身份是文件字节的内容摘要：同一份字节从不同URL下载两次仍是同一行。
type GameFile struct {
	BaseModel
	Hash      string `gorm:"uniqueIndex;size:32;not null" json:"hash"`
	Filename  string `gorm:"size:255;not null" json:"filename"`
	SourceURL string `gorm:"size:1024" json:"source_url"`
	Format    string `gorm:"size:20;not null" json:"format"` // glulx, zcode, ink, ys
	Size      int64  `gorm:"default:0" json:"size"`
}

// TableName 指定表名
func (GameFile) TableName() string {
	return "games"
}

// Session 游戏会话表
// 一个游戏在一个服务器内的一次持续通关，与当前在哪个频道游玩无关。
type Session struct {
	BaseModel
	GuildID    string    `gorm:"index;size:32;not null" json:"guild_id"`
	GameHash   string    `gorm:"index;size:32;not null" json:"game_hash"`
	MoveCount  int       `gorm:"default:0" json:"move_count"`
	LastUpdate time.Time `json:"last_update"`

	// 关联
	Game *GameFile `gorm:"foreignKey:GameHash;references:Hash" json:"game,omitempty"`
}

// TableName 指定表名
func (Session) TableName() string {
	return "sessions"
}

// DirName 会话的磁盘目录名（由会话ID唯一确定）
func (s *Session) DirName() string {
	return fmt.Sprintf("sess-%d", s.ID)
}

// PlayChannel 启用游玩的频道表
// ActiveSessionID 为空表示频道已启用但未绑定会话。
type PlayChannel struct {
	BaseModel
	GCKey           string `gorm:"uniqueIndex;size:80;not null" json:"gc_key"`
	GuildID         string `gorm:"index;size:32;not null" json:"guild_id"`
	ChannelID       string `gorm:"size:32;not null" json:"channel_id"`
	ActiveSessionID *uint  `gorm:"index" json:"active_session_id,omitempty"`
}

// TableName 指定表名
func (PlayChannel) TableName() string {
	return "channels"
}

// ChannelKey 生成频道的唯一键
func ChannelKey(guildID, channelID string) string {
	return guildID + "-" + channelID
}
