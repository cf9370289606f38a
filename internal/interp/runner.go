package interp

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/wfunc/if-gateway/internal/config"
	"github.com/wfunc/if-gateway/internal/errors"
	"go.uber.org/zap"
)

// Runner 解释器子进程执行器
type Runner struct {
	cfg *config.InterpConfig
	log *zap.Logger
}

// NewRunner 创建执行器
func NewRunner(cfg *config.InterpConfig, log *zap.Logger) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// TurnTimeout 单回合超时
func (r *Runner) TurnTimeout() time.Duration {
	if r.cfg.TurnTimeout > 0 {
		return r.cfg.TurnTimeout
	}
	return 5 * time.Second
}

// Run 启动解释器执行一个回合：把一行JSON写进标准输入后关闭，
// 收取标准输出/标准错误直到进程退出或超时。
// 超时会杀掉子进程，不从被杀进程抢救任何部分输出。
func (r *Runner) Run(ctx context.Context, inv *Invocation, workDir string, input []byte) (stdout, stderr []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.TurnTimeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, inv.Bin, inv.Args...)
	cmd.Dir = workDir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdin = bytes.NewReader(append(input, '\n'))
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	stdout = outBuf.Bytes()
	stderr = errBuf.Bytes()

	if ctx.Err() == context.DeadlineExceeded {
		r.log.Error("解释器超时被杀",
			zap.String("bin", inv.Bin),
			zap.Duration("elapsed", elapsed),
		)
		return nil, stderr, errors.Newf(errors.ErrInterpreterTimeout,
			"%s did not answer within %s", inv.Bin, r.TurnTimeout())
	}

	if runErr != nil {
		// 有输出的非零退出按警告处理，stdout照常走容错解析
		if len(stdout) > 0 {
			r.log.Warn("解释器非零退出",
				zap.String("bin", inv.Bin),
				zap.Error(runErr),
				zap.Int("stdout_bytes", len(stdout)),
			)
			return stdout, stderr, nil
		}
		return nil, stderr, errors.Wrapf(runErr, errors.ErrInterpreterFailure,
			"launch %s", inv.Bin)
	}

	r.log.Debug("解释器回合完成",
		zap.String("bin", inv.Bin),
		zap.Duration("elapsed", elapsed),
		zap.Int("stdout_bytes", len(stdout)),
	)
	return stdout, stderr, nil
}
