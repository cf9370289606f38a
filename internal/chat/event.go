package chat

import "context"

// Attachment 消息附带的文件上传
type Attachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Event 聊天平台送进来的一个事件：普通消息或命令调用。
// 平台边界只要求两件事：送进事件、提供发文本原语。
type Event struct {
	GuildID   string
	ChannelID string
	Author    string

	// 普通消息文本（命令调用时为空）
	Text string
	// 命令名和带类型的参数（普通消息时为空）
	Command string
	Args    map[string]string

	Attachments []Attachment
}

// Handler 事件消费方：网关服务实现它
type Handler interface {
	// HandleMessage 处理一条普通消息（含附件）
	HandleMessage(ctx context.Context, ev *Event)
	// HandleCommand 处理一次命令调用
	HandleCommand(ctx context.Context, ev *Event)
}

// Sender 出站原语：向指定频道发一段文本。
// 文本长度已由渲染层控制在平台上限之下。
type Sender interface {
	SendText(ctx context.Context, guildID, channelID, text string) error
}
