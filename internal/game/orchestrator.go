package game

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/if-gateway/internal/config"
	"github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/glk"
	"github.com/wfunc/if-gateway/internal/interp"
	"github.com/wfunc/if-gateway/internal/logger"
	"github.com/wfunc/if-gateway/internal/models"
	"github.com/wfunc/if-gateway/internal/render"
	"github.com/wfunc/if-gateway/internal/repository"
)

// 出站消息前缀：故事窗口和状态窗口
const (
	storyPrefix  = ">\n"
	statusPrefix = "|\n"
)

// 渲染结果不足这个字符数时视为"没有实际输出"
const minRenderedChars = 4

// TurnResult 一个回合产出的全部出站消息和回合后的协议状态。
// 失败的回合 Messages 里也可能已有要发给频道的诊断行。
type TurnResult struct {
	Messages []string
	State    *glk.State
}

// Orchestrator 回合编排器：构造输入、调用解释器、消化输出、
// 持久化状态并渲染聊天消息。每会话同一时刻至多一个回合在跑，
// 由登记处的进行中标记保证。
type Orchestrator struct {
	interpCfg *config.InterpConfig
	runner    *interp.Runner
	paths     *Paths
	sessions  repository.SessionRepository
	limit     int
	log       *zap.Logger
}

// NewOrchestrator 创建回合编排器
func NewOrchestrator(interpCfg *config.InterpConfig, chatCfg *config.ChatConfig,
	paths *Paths, sessions repository.SessionRepository, log *zap.Logger) *Orchestrator {
	limit := chatCfg.MessageLimit
	if limit <= 0 {
		limit = render.DefaultLimit
	}
	return &Orchestrator{
		interpCfg: interpCfg,
		runner:    interp.NewRunner(interpCfg, log),
		paths:     paths,
		sessions:  sessions,
		limit:     limit,
		log:       log,
	}
}

// LoadState 取会话当前的协议状态，游戏未开始返回 (nil, nil)
func (o *Orchestrator) LoadState(sess *models.Session) (*glk.State, error) {
	return glk.LoadState(o.paths.AutoSaveDir(sess))
}

// ForceStop 强制停止会话的游戏：删掉状态边车文件，会话行保留。
// 下一个start会从头开始（自动存档被解释器自己管理）。
func (o *Orchestrator) ForceStop(sess *models.Session) error {
	return glk.DeleteState(o.paths.AutoSaveDir(sess))
}

// RunTurn 执行一个回合。command 为nil表示启动回合（发init事件），
// 否则把玩家命令转成输入事件。返回要发往频道的消息和新状态；
// 出错时消息里可能已带有要转发的诊断行，先发再报错。
func (o *Orchestrator) RunTurn(ctx context.Context, sess *models.Session, game *models.GameFile, command *string) (*TurnResult, error) {
	started := time.Now()
	result := &TurnResult{}

	prior, err := o.LoadState(sess)
	if err != nil {
		return result, err
	}

	firstTurn := prior == nil || prior.Exited
	if firstTurn && command != nil {
		return result, errors.New(errors.ErrProtocolMisuse, "command before game start")
	}
	if !firstTurn && command == nil {
		return result, errors.New(errors.ErrProtocolMisuse, "start while game is running")
	}

	gamePath := o.paths.GamePath(game)
	if _, err := os.Stat(gamePath); err != nil {
		return result, errors.New(errors.ErrMissingGameFile, game.Filename)
	}

	if err := o.paths.EnsureSessionDirs(sess); err != nil {
		return result, err
	}

	inv, err := interp.BuildInvocation(o.interpCfg, game.Format, firstTurn,
		o.paths.AutoSaveDir(sess), gamePath)
	if err != nil {
		return result, err
	}

	// 构造输入事件；fileref应答解释器不回显，需要记下来合成回显行
	var (
		event     *glk.Event
		inputEcho string
	)
	if firstTurn {
		event = glk.InitEvent(o.interpCfg.ScreenWidth, o.interpCfg.ScreenHeight)
	} else {
		event, err = prior.ConstructInput(*command)
		if err != nil {
			return result, errors.Wrap(err, errors.ErrInputConstruction)
		}
		if event.Type == glk.EventTypeSpecial {
			inputEcho = *command
		}
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return result, errors.Wrap(err, errors.ErrInputConstruction)
	}

	stdout, stderr, err := o.runner.Run(ctx, inv, o.paths.SaveDir(sess), eventJSON)
	if len(stderr) > 0 {
		result.Messages = append(result.Messages,
			"Interpreter warning: "+strings.TrimSpace(string(stderr)))
	}
	if err != nil {
		return result, err
	}

	update, diags, err := interp.ParseOutput(stdout)
	for _, d := range diags {
		result.Messages = append(result.Messages, "Interpreter error: "+d)
	}
	if err != nil {
		return result, err
	}
	if update == nil {
		// 别的错误行已经发出去时不再叠一条NoUpdate
		return result, errors.New(errors.ErrNoUpdate)
	}

	state := prior
	if firstTurn {
		state = glk.NewState()
	}
	if err := state.AcceptUpdate(update, inputEcho); err != nil {
		// 状态机拒绝本次更新，已持久化的旧状态原样保留
		return result, err
	}

	if err := glk.SaveState(state, o.paths.AutoSaveDir(sess)); err != nil {
		return result, err
	}
	if err := o.sessions.BumpMove(ctx, sess.ID); err != nil {
		return result, err
	}

	// 记录失败只记日志，回合照常结束
	o.appendTurnTranscript(sess, event, update, started)

	result.State = state
	result.Messages = append(result.Messages, o.renderOutput(state)...)

	cmdText := ""
	if command != nil {
		cmdText = *command
	}
	logger.LogTurn(sess.ID, cmdText, state.Generation, time.Since(started), nil)
	return result, nil
}

// renderOutput 把协议状态渲染成出站消息。
// 故事窗口内容太少时退回状态窗口，两者都没有就给占位文本。
func (o *Orchestrator) renderOutput(state *glk.State) []string {
	var msgs []string

	lines := render.LinesToMarkup(state.StoryWinData, state.HyperlinkLabels)
	prefix := storyPrefix
	if renderedLen(lines) <= minRenderedChars {
		lines = render.LinesToMarkup(state.StatusWinData, state.HyperlinkLabels)
		prefix = statusPrefix
	}
	if renderedLen(lines) <= minRenderedChars {
		lines = []string{"(no game output)"}
		prefix = storyPrefix
	}

	for _, chunk := range render.Rebalance(lines, o.limit-len(prefix)) {
		msgs = append(msgs, prefix+chunk)
	}

	if state.Exited {
		msgs = append(msgs, "The game session has ended. Start the game again to keep playing.")
	}
	return msgs
}

// renderedLen 渲染行的总字符数（判断"有没有实际输出"用）
func renderedLen(lines []string) int {
	total := 0
	for _, line := range lines {
		total += len(strings.TrimSpace(line))
	}
	return total
}

// appendTurnTranscript 追加本回合的glkote记录，失败只记日志
func (o *Orchestrator) appendTurnTranscript(sess *models.Session, input *glk.Event, output *glk.Update, inTime time.Time) {
	rec := NewTurnRecord(sess.ID, input, output, inTime, time.Now())
	if err := AppendTranscript(o.paths.TranscriptPath(sess), rec); err != nil {
		o.log.Warn("transcript append failed",
			zap.Uint("session_id", sess.ID),
			zap.Error(err))
	}
}

// AddComment 把频道里的非命令聊天记进会话的transcript
func (o *Orchestrator) AddComment(sess *models.Session, author, text string) {
	rec := NewCommentRecord(sess.ID, author, text)
	if err := AppendTranscript(o.paths.TranscriptPath(sess), rec); err != nil {
		o.log.Warn("transcript append failed",
			zap.Uint("session_id", sess.ID),
			zap.Error(err))
	}
}
