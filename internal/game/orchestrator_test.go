package game

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wfunc/if-gateway/internal/config"
	"github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/models"
	"github.com/wfunc/if-gateway/internal/repository"
)

// fakeTerp 假解释器脚本：把标准输入存成last-input.json，
// 把工作目录里的reply.json原样当作本回合输出
const fakeTerp = `#!/bin/sh
cat > last-input.json
cat reply.json
`

type orchEnv struct {
	orch     *Orchestrator
	paths    *Paths
	sessions repository.SessionRepository
	sess     *models.Session
	game     *models.GameFile
}

func newOrchEnv(t *testing.T) *orchEnv {
	t.Helper()
	db := repository.SetupTestDB()
	t.Cleanup(func() { repository.CleanupTestDB(db) })

	root := t.TempDir()
	paths := NewPaths(&config.StorageConfig{
		GamesDir:    filepath.Join(root, "games"),
		AutoSaveDir: filepath.Join(root, "autosave"),
		SaveDir:     filepath.Join(root, "saves"),
	})
	require.NoError(t, os.MkdirAll(paths.GamesDir, 0755))

	terp := filepath.Join(root, "fake-terp.sh")
	require.NoError(t, os.WriteFile(terp, []byte(fakeTerp), 0755))

	sessions := repository.NewSessionRepository(db)
	orch := NewOrchestrator(&config.InterpConfig{
		GlulxBin:     terp,
		TurnTimeout:  5 * time.Second,
		ScreenWidth:  800,
		ScreenHeight: 480,
	}, &config.ChatConfig{MessageLimit: 1990}, paths, sessions, zap.NewNop())

	game := &models.GameFile{Hash: "hash1", Filename: "advent.ulx", Format: models.FormatGlulx}
	require.NoError(t, repository.NewGameFileRepository(db).Create(context.Background(), game))
	require.NoError(t, os.WriteFile(paths.GamePath(game), []byte("Glulstub"), 0644))

	sess := &models.Session{GuildID: "g1", GameHash: game.Hash}
	require.NoError(t, sessions.Create(context.Background(), sess))
	require.NoError(t, paths.EnsureSessionDirs(sess))

	return &orchEnv{orch: orch, paths: paths, sessions: sessions, sess: sess, game: game}
}

// setReply 设置假解释器下一回合的输出
func (e *orchEnv) setReply(t *testing.T, reply string) {
	t.Helper()
	require.NoError(t, os.WriteFile(
		filepath.Join(e.paths.SaveDir(e.sess), "reply.json"), []byte(reply), 0644))
}

// lastInput 读假解释器收到的输入事件
func (e *orchEnv) lastInput(t *testing.T) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.paths.SaveDir(e.sess), "last-input.json"))
	require.NoError(t, err)
	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

const firstTurnReply = `{"type":"update","gen":1,
  "windows":[{"id":1,"type":"buffer"}],
  "content":[{"id":1,"text":[{"content":["Welcome to the cave."]}]}],
  "input":[{"id":1,"gen":1,"type":"line","maxlen":256}]}`

func TestOrchestrator_FirstTurn(t *testing.T) {
	env := newOrchEnv(t)
	env.setReply(t, firstTurnReply)

	result, err := env.orch.RunTurn(context.Background(), env.sess, env.game, nil)
	require.NoError(t, err)

	require.Len(t, result.Messages, 1)
	assert.Equal(t, ">\nWelcome to the cave.", result.Messages[0])
	assert.Equal(t, 1, result.State.Generation)
	require.NotNil(t, result.State.LineInputWin)
	assert.Equal(t, 1, *result.State.LineInputWin)

	// 解释器收到gen=0的init事件，带屏幕尺寸
	ev := env.lastInput(t)
	assert.Equal(t, "init", ev["type"])
	assert.Equal(t, float64(0), ev["gen"])
	metrics := ev["metrics"].(map[string]interface{})
	assert.Equal(t, float64(800), metrics["width"])
	assert.Equal(t, float64(480), metrics["height"])

	// 状态已持久化，回合计数已累加
	reloaded, err := env.orch.LoadState(env.sess)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, 1, reloaded.Generation)

	sess, err := env.sessions.FindByID(context.Background(), env.sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.MoveCount)

	// 回合进了transcript
	assert.FileExists(t, env.paths.TranscriptPath(env.sess))
}

func TestOrchestrator_FollowupTurn(t *testing.T) {
	env := newOrchEnv(t)
	env.setReply(t, firstTurnReply)
	_, err := env.orch.RunTurn(context.Background(), env.sess, env.game, nil)
	require.NoError(t, err)

	env.setReply(t, `{"type":"update","gen":2,
	  "content":[{"id":1,"text":[{"content":["You take the lamp."]}]}],
	  "input":[{"id":1,"gen":2,"type":"line","maxlen":256}]}`)

	cmd := "GET LAMP"
	result, err := env.orch.RunTurn(context.Background(), env.sess, env.game, &cmd)
	require.NoError(t, err)

	// 玩家命令被转成line事件，带上一代的generation
	ev := env.lastInput(t)
	assert.Equal(t, "line", ev["type"])
	assert.Equal(t, float64(1), ev["gen"])
	assert.Equal(t, float64(1), ev["window"])
	assert.Equal(t, "GET LAMP", ev["value"])

	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0], "You take the lamp.")
	assert.Equal(t, 2, result.State.Generation)
}

func TestOrchestrator_ProtocolMisuse(t *testing.T) {
	env := newOrchEnv(t)

	// 游戏没开始就发命令
	cmd := "LOOK"
	_, err := env.orch.RunTurn(context.Background(), env.sess, env.game, &cmd)
	assert.True(t, errors.Is(err, errors.ErrProtocolMisuse))

	// 游戏运行中再start
	env.setReply(t, firstTurnReply)
	_, err = env.orch.RunTurn(context.Background(), env.sess, env.game, nil)
	require.NoError(t, err)
	_, err = env.orch.RunTurn(context.Background(), env.sess, env.game, nil)
	assert.True(t, errors.Is(err, errors.ErrProtocolMisuse))
}

func TestOrchestrator_ExitEndsSession(t *testing.T) {
	env := newOrchEnv(t)
	env.setReply(t, `{"type":"update","gen":1,
	  "windows":[{"id":1,"type":"buffer"}],
	  "content":[{"id":1,"text":[{"content":["You have died."]}]}],
	  "exit":true}`)

	result, err := env.orch.RunTurn(context.Background(), env.sess, env.game, nil)
	require.NoError(t, err)

	require.Len(t, result.Messages, 2)
	assert.Equal(t, ">\nYou have died.", result.Messages[0])
	assert.Contains(t, result.Messages[1], "has ended")
	assert.True(t, result.State.Exited)

	// 退出后的start重新从头开始
	env.setReply(t, firstTurnReply)
	result, err = env.orch.RunTurn(context.Background(), env.sess, env.game, nil)
	require.NoError(t, err)
	assert.False(t, result.State.Exited)
}

func TestOrchestrator_StatusFallback(t *testing.T) {
	env := newOrchEnv(t)
	// 故事窗口只有两个字符，退回状态窗口
	env.setReply(t, `{"type":"update","gen":1,
	  "windows":[{"id":1,"type":"buffer"},{"id":2,"type":"grid","gridheight":1,"gridwidth":20}],
	  "content":[
	    {"id":1,"text":[{"content":["Ok"]}]},
	    {"id":2,"lines":[{"line":0,"content":["Score: 10"]}]}],
	  "input":[{"id":1,"gen":1,"type":"line","maxlen":256}]}`)

	result, err := env.orch.RunTurn(context.Background(), env.sess, env.game, nil)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "|\nScore: 10", result.Messages[0])
}

func TestOrchestrator_NoOutputPlaceholder(t *testing.T) {
	env := newOrchEnv(t)
	env.setReply(t, `{"type":"update","gen":1,
	  "windows":[{"id":1,"type":"buffer"}],
	  "input":[{"id":1,"gen":1,"type":"line","maxlen":256}]}`)

	result, err := env.orch.RunTurn(context.Background(), env.sess, env.game, nil)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, ">\n(no game output)", result.Messages[0])
}

func TestOrchestrator_ErrorStanzaForwarded(t *testing.T) {
	env := newOrchEnv(t)
	env.setReply(t, `{"type":"error","message":"stack overflow"}
`+firstTurnReply)

	result, err := env.orch.RunTurn(context.Background(), env.sess, env.game, nil)
	require.NoError(t, err)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "Interpreter error: stack overflow", result.Messages[0])
	assert.Equal(t, ">\nWelcome to the cave.", result.Messages[1])
}

func TestOrchestrator_MissingGameFile(t *testing.T) {
	env := newOrchEnv(t)
	require.NoError(t, os.Remove(env.paths.GamePath(env.game)))

	_, err := env.orch.RunTurn(context.Background(), env.sess, env.game, nil)
	assert.True(t, errors.Is(err, errors.ErrMissingGameFile))
}

func TestOrchestrator_ForceStop(t *testing.T) {
	env := newOrchEnv(t)
	env.setReply(t, firstTurnReply)
	_, err := env.orch.RunTurn(context.Background(), env.sess, env.game, nil)
	require.NoError(t, err)

	require.NoError(t, env.orch.ForceStop(env.sess))
	state, err := env.orch.LoadState(env.sess)
	require.NoError(t, err)
	assert.Nil(t, state)
}
