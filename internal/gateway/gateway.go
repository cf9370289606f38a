package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wfunc/if-gateway/internal/chat"
	"github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/game"
	"github.com/wfunc/if-gateway/internal/logger"
	"github.com/wfunc/if-gateway/internal/models"
	"github.com/wfunc/if-gateway/internal/render"
)

// Service 网关服务：消费聊天事件，驱动回合并把结果发回频道。
// 实现 chat.Handler；出站通道在Hub建好之后用 SetSender 接上。
type Service struct {
	registry   *game.Registry
	orch       *game.Orchestrator
	downloader *game.Downloader
	attach     *game.AttachList
	sender     chat.Sender
	log        *zap.Logger
}

// NewService 创建网关服务
func NewService(registry *game.Registry, orch *game.Orchestrator,
	downloader *game.Downloader, attach *game.AttachList, log *zap.Logger) *Service {
	return &Service{
		registry:   registry,
		orch:       orch,
		downloader: downloader,
		attach:     attach,
		log:        log,
	}
}

// SetSender 接上出站通道（Hub构造时需要Handler，两者相互引用）
func (s *Service) SetSender(sender chat.Sender) {
	s.sender = sender
}

// HandleMessage 处理一条普通消息。
// 未启用的频道完全忽略；">"开头是回合命令；其余记入transcript。
func (s *Service) HandleMessage(ctx context.Context, ev *chat.Event) {
	channel, err := s.registry.ValidPlayChannel(ctx, ev.GuildID, ev.ChannelID)
	if err != nil {
		s.log.Error("channel lookup failed", zap.Error(err))
		return
	}
	if channel == nil {
		return
	}

	for _, att := range ev.Attachments {
		s.attach.Add(channel.GCKey, att.Filename, att.URL)
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	logger.LogChatMessage("in", ev.GuildID, ev.ChannelID, len(text))

	if strings.HasPrefix(text, ">") {
		command := strings.TrimSpace(strings.TrimPrefix(text, ">"))
		s.playTurn(ctx, ev, channel, command)
		return
	}

	// 非命令聊天记成comment，游戏没在玩时静默丢弃
	sess, err := s.registry.ActiveSession(ctx, channel)
	if err != nil || sess == nil {
		return
	}
	s.orch.AddComment(sess, ev.Author, text)
}

// HandleCommand 处理一次命令调用
func (s *Service) HandleCommand(ctx context.Context, ev *chat.Event) {
	channel, err := s.registry.ValidPlayChannel(ctx, ev.GuildID, ev.ChannelID)
	if err != nil {
		s.log.Error("channel lookup failed", zap.Error(err))
		return
	}
	if channel == nil {
		return
	}

	switch ev.Command {
	case "start":
		s.cmdStart(ctx, ev, channel)
	case "stop":
		s.cmdStop(ctx, ev, channel)
	case "status":
		s.cmdStatus(ctx, ev, channel)
	case "select":
		s.cmdSelect(ctx, ev, channel)
	case "session":
		s.cmdSession(ctx, ev, channel)
	case "sessions":
		s.cmdSessions(ctx, ev, channel)
	case "games":
		s.cmdGames(ctx, ev)
	case "install":
		s.cmdInstall(ctx, ev, channel)
	case "recap":
		s.cmdRecap(ctx, ev, channel)
	case "delete_game":
		s.cmdDeleteGame(ctx, ev)
	case "delete_session":
		s.cmdDeleteSession(ctx, ev, channel)
	default:
		s.reply(ctx, ev, fmt.Sprintf("Unknown command: %s", ev.Command))
	}
}

// playTurn 执行一个玩家命令回合
func (s *Service) playTurn(ctx context.Context, ev *chat.Event, channel *models.PlayChannel, command string) {
	sess, gf, ok := s.boundSession(ctx, ev, channel)
	if !ok {
		return
	}

	if err := s.registry.Acquire(sess.ID); err != nil {
		// 重复命令丢弃不排队，但丢弃对玩家可见
		s.reply(ctx, ev, "A turn is already in progress; command dropped.")
		return
	}
	defer s.registry.Release(sess.ID)

	result, err := s.orch.RunTurn(ctx, sess, gf, &command)
	s.deliver(ctx, ev, result, err)
}

// cmdStart 启动（或重启）频道绑定的游戏
func (s *Service) cmdStart(ctx context.Context, ev *chat.Event, channel *models.PlayChannel) {
	sess, gf, ok := s.boundSession(ctx, ev, channel)
	if !ok {
		return
	}

	state, err := s.orch.LoadState(sess)
	if err != nil {
		s.replyError(ctx, ev, err)
		return
	}
	if state != nil && !state.Exited {
		s.reply(ctx, ev, "The game is already running. Use stop first to restart it.")
		return
	}

	if err := s.registry.Acquire(sess.ID); err != nil {
		s.reply(ctx, ev, "A turn is already in progress; command dropped.")
		return
	}
	defer s.registry.Release(sess.ID)

	result, err := s.orch.RunTurn(ctx, sess, gf, nil)
	s.deliver(ctx, ev, result, err)
}

// cmdStop 强制停止游戏，会话保留
func (s *Service) cmdStop(ctx context.Context, ev *chat.Event, channel *models.PlayChannel) {
	sess, _, ok := s.boundSession(ctx, ev, channel)
	if !ok {
		return
	}
	if err := s.orch.ForceStop(sess); err != nil {
		s.replyError(ctx, ev, err)
		return
	}
	s.reply(ctx, ev, fmt.Sprintf("Stopped session %d. The session is kept; start will begin the game anew.", sess.ID))
}

// cmdStatus 报告频道当前的会话和输入状态
func (s *Service) cmdStatus(ctx context.Context, ev *chat.Event, channel *models.PlayChannel) {
	sess, err := s.registry.ActiveSession(ctx, channel)
	if err != nil {
		s.replyError(ctx, ev, err)
		return
	}
	if sess == nil {
		s.reply(ctx, ev, "No session is bound to this channel. Use select to pick a game.")
		return
	}

	gf, err := s.registry.GameByHash(ctx, sess.GameHash)
	if err != nil {
		s.replyError(ctx, ev, err)
		return
	}

	state, err := s.orch.LoadState(sess)
	if err != nil {
		s.replyError(ctx, ev, err)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session %d: %s (%s), %d move(s).", sess.ID, gf.Filename, gf.Format, sess.MoveCount)
	switch {
	case state == nil:
		b.WriteString(" The game has not been started.")
	case state.Exited:
		b.WriteString(" The game has ended.")
	default:
		fmt.Fprintf(&b, " Running at generation %d, awaiting %s input.", state.Generation, state.InputMode())
	}
	s.reply(ctx, ev, b.String())
}

// cmdSelect 为频道选择一个游戏（复用最近未绑定的会话，否则新建）
func (s *Service) cmdSelect(ctx context.Context, ev *chat.Event, channel *models.PlayChannel) {
	ref := strings.TrimSpace(ev.Args["game"])
	if ref == "" {
		s.reply(ctx, ev, "Which game? Give a filename or hash.")
		return
	}

	gf, err := s.registry.ResolveGame(ctx, ref)
	if err != nil {
		s.replyError(ctx, ev, err)
		return
	}

	sess, err := s.registry.SelectGame(ctx, channel, gf)
	if err != nil {
		s.replyError(ctx, ev, err)
		return
	}
	s.reply(ctx, ev, fmt.Sprintf("Now playing %s in this channel (session %d). Use start to begin.", gf.Filename, sess.ID))
}

// cmdSession 按ID把已有会话绑到频道
func (s *Service) cmdSession(ctx context.Context, ev *chat.Event, channel *models.PlayChannel) {
	id, ok := s.sessionIDArg(ctx, ev)
	if !ok {
		return
	}

	sess, err := s.registry.SelectSession(ctx, channel, id)
	if err != nil {
		s.replyError(ctx, ev, err)
		return
	}

	gf, err := s.registry.GameByHash(ctx, sess.GameHash)
	if err != nil {
		s.replyError(ctx, ev, err)
		return
	}
	s.reply(ctx, ev, fmt.Sprintf("Resumed session %d (%s, %d move(s)).", sess.ID, gf.Filename, sess.MoveCount))
}

// cmdSessions 列出本服务器的会话
func (s *Service) cmdSessions(ctx context.Context, ev *chat.Event, channel *models.PlayChannel) {
	sessions, err := s.registry.ListSessions(ctx, channel.GuildID)
	if err != nil {
		s.replyError(ctx, ev, err)
		return
	}
	if len(sessions) == 0 {
		s.reply(ctx, ev, "No sessions on this server yet.")
		return
	}

	var lines []string
	for _, sess := range sessions {
		name := sess.GameHash
		if gf, err := s.registry.GameByHash(ctx, sess.GameHash); err == nil {
			name = gf.Filename
		}
		lines = append(lines, fmt.Sprintf("%d: %s, %d move(s), last played %s",
			sess.ID, name, sess.MoveCount, sess.LastUpdate.Format("2006-01-02 15:04")))
	}
	s.replyLines(ctx, ev, lines)
}

// cmdGames 列出已安装的游戏
func (s *Service) cmdGames(ctx context.Context, ev *chat.Event) {
	games, err := s.registry.ListGames(ctx)
	if err != nil {
		s.replyError(ctx, ev, err)
		return
	}
	if len(games) == 0 {
		s.reply(ctx, ev, "No games installed yet. Use install to add one.")
		return
	}

	var lines []string
	for _, g := range games {
		lines = append(lines, fmt.Sprintf("%s (%s, %d bytes, %s)", g.Filename, g.Format, g.Size, g.Hash))
	}
	s.replyLines(ctx, ev, lines)
}

// cmdInstall 下载安装游戏；不带URL时取频道最近的上传
func (s *Service) cmdInstall(ctx context.Context, ev *chat.Event, channel *models.PlayChannel) {
	url := strings.TrimSpace(ev.Args["url"])
	if url == "" {
		att, ok := s.attach.Latest(channel.GCKey)
		if !ok {
			s.replyError(ctx, ev, errors.New(errors.ErrNoAttachment))
			return
		}
		url = att.URL
	}

	gf, err := s.downloader.Install(ctx, url)
	if err != nil {
		s.replyError(ctx, ev, err)
		return
	}
	s.reply(ctx, ev, fmt.Sprintf("Installed %s (%s, %d bytes). Use select to play it.",
		gf.Filename, gf.Format, gf.Size))
}

// cmdRecap 重发上一次的故事输出
func (s *Service) cmdRecap(ctx context.Context, ev *chat.Event, channel *models.PlayChannel) {
	sess, _, ok := s.boundSession(ctx, ev, channel)
	if !ok {
		return
	}

	state, err := s.orch.LoadState(sess)
	if err != nil {
		s.replyError(ctx, ev, err)
		return
	}
	if state == nil {
		s.reply(ctx, ev, "The game has not been started.")
		return
	}

	lines := render.LinesToMarkup(state.StoryWinData, state.HyperlinkLabels)
	chunks := render.Rebalance(lines, render.DefaultLimit-2)
	if len(chunks) == 0 {
		s.reply(ctx, ev, "(no game output)")
		return
	}
	for _, chunk := range chunks {
		s.reply(ctx, ev, ">\n"+chunk)
	}
}

// cmdDeleteGame 删除已安装的游戏（仍被会话引用时拒绝）
func (s *Service) cmdDeleteGame(ctx context.Context, ev *chat.Event) {
	ref := strings.TrimSpace(ev.Args["game"])
	if ref == "" {
		s.reply(ctx, ev, "Which game? Give a filename or hash.")
		return
	}
	if err := s.registry.DeleteGame(ctx, ref); err != nil {
		s.replyError(ctx, ev, err)
		return
	}
	s.reply(ctx, ev, fmt.Sprintf("Deleted game %s.", ref))
}

// cmdDeleteSession 删除会话及其存档
func (s *Service) cmdDeleteSession(ctx context.Context, ev *chat.Event, channel *models.PlayChannel) {
	id, ok := s.sessionIDArg(ctx, ev)
	if !ok {
		return
	}
	if err := s.registry.DeleteSession(ctx, channel.GuildID, id); err != nil {
		s.replyError(ctx, ev, err)
		return
	}
	s.reply(ctx, ev, fmt.Sprintf("Deleted session %d.", id))
}

// boundSession 取频道绑定的会话和游戏；未绑定时已向频道报错
func (s *Service) boundSession(ctx context.Context, ev *chat.Event, channel *models.PlayChannel) (*models.Session, *models.GameFile, bool) {
	sess, err := s.registry.ActiveSession(ctx, channel)
	if err != nil {
		s.replyError(ctx, ev, err)
		return nil, nil, false
	}
	if sess == nil {
		s.reply(ctx, ev, "No session is bound to this channel. Use select to pick a game.")
		return nil, nil, false
	}

	gf, err := s.registry.GameByHash(ctx, sess.GameHash)
	if err != nil {
		s.replyError(ctx, ev, err)
		return nil, nil, false
	}
	return sess, gf, true
}

// sessionIDArg 解析id参数，非法时已向频道报错
func (s *Service) sessionIDArg(ctx context.Context, ev *chat.Event) (uint, bool) {
	raw := strings.TrimSpace(ev.Args["id"])
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		s.reply(ctx, ev, fmt.Sprintf("Not a session id: %q", raw))
		return 0, false
	}
	return uint(id), true
}

// deliver 把回合结果发回频道，失败路径也保证至少报一条消息
func (s *Service) deliver(ctx context.Context, ev *chat.Event, result *game.TurnResult, err error) {
	delivered := 0
	if result != nil {
		for _, msg := range result.Messages {
			s.reply(ctx, ev, msg)
			delivered++
		}
	}
	if err == nil {
		return
	}
	// NoUpdate在错误行已发出时不再叠一条
	if errors.Is(err, errors.ErrNoUpdate) && delivered > 0 {
		return
	}
	s.replyError(ctx, ev, err)
}

// reply 发一条文本回事件来源频道
func (s *Service) reply(ctx context.Context, ev *chat.Event, text string) {
	if s.sender == nil {
		return
	}
	if err := s.sender.SendText(ctx, ev.GuildID, ev.ChannelID, text); err != nil {
		s.log.Error("send failed",
			zap.String("guild_id", ev.GuildID),
			zap.String("channel_id", ev.ChannelID),
			zap.Error(err))
		return
	}
	logger.LogChatMessage("out", ev.GuildID, ev.ChannelID, len(text))
}

// replyLines 把多行列表重排成尽量少的消息再发送
func (s *Service) replyLines(ctx context.Context, ev *chat.Event, lines []string) {
	for _, chunk := range render.Rebalance(lines, render.DefaultLimit) {
		s.reply(ctx, ev, chunk)
	}
}

// replyError 把错误转成玩家可读的消息发回频道
func (s *Service) replyError(ctx context.Context, ev *chat.Event, err error) {
	s.log.Warn("command failed",
		zap.String("guild_id", ev.GuildID),
		zap.String("channel_id", ev.ChannelID),
		zap.Error(err))
	s.reply(ctx, ev, "Error: "+err.Error())
}
