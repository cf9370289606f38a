package interp

import (
	"github.com/wfunc/if-gateway/internal/config"
	"github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/models"
)

// Invocation 一次解释器调用：二进制、参数表和附加环境变量
type Invocation struct {
	Bin  string
	Args []string
	Env  []string
}

// BuildInvocation 为指定格式构造解释器调用。
// firstTurn为真时用启动参数集（无autorestore），否则用续行参数集。
func BuildInvocation(cfg *config.InterpConfig, format string, firstTurn bool, autosaveDir, gamePath string) (*Invocation, error) {
	switch format {
	case models.FormatGlulx:
		return glulxInvocation(cfg.GlulxBin, firstTurn, autosaveDir, gamePath), nil
	case models.FormatZcode:
		return zcodeInvocation(cfg.ZcodeBin, firstTurn, autosaveDir, gamePath), nil
	case models.FormatInk:
		return inkStyleInvocation(cfg.InkBin, firstTurn, autosaveDir, gamePath), nil
	case models.FormatYs:
		return inkStyleInvocation(cfg.YsBin, firstTurn, autosaveDir, gamePath), nil
	default:
		return nil, errors.Newf(errors.ErrUnknownFormat, "format %q", format)
	}
}

// glulxInvocation Glulx解释器（RemGlk单回合模式）
func glulxInvocation(bin string, firstTurn bool, autosaveDir, gamePath string) *Invocation {
	args := []string{"-singleturn"}
	if !firstTurn {
		args = append(args, "-autometrics", "--autosave", "--autorestore")
	} else {
		args = append(args, "--autosave")
	}
	args = append(args, "--autodir", autosaveDir, gamePath)
	return &Invocation{Bin: bin, Args: args}
}

// zcodeInvocation Z-machine解释器。
// 环境变量关掉交互式配置/历史/meta命令，transcript固定文件名，
// 避免子进程在无终端环境下停下来等确认。
func zcodeInvocation(bin string, firstTurn bool, autosaveDir, gamePath string) *Invocation {
	args := []string{"-singleturn"}
	if !firstTurn {
		args = append(args, "-autometrics", "--autosave", "--autorestore")
	} else {
		args = append(args, "--autosave")
	}
	args = append(args, "--autodir", autosaveDir, gamePath)
	return &Invocation{
		Bin:  bin,
		Args: args,
		Env: []string{
			"BOCFEL_DISABLE_CONFIG=1",
			"BOCFEL_DISABLE_HISTORY_PLAYBACK=1",
			"BOCFEL_DISABLE_META_COMMANDS=1",
			"BOCFEL_TRANSCRIPT_NAME=transcript.txt",
		},
	}
}

// inkStyleInvocation ink/ys解释器：只区分启动和续行
func inkStyleInvocation(bin string, firstTurn bool, autosaveDir, gamePath string) *Invocation {
	var args []string
	if firstTurn {
		args = []string{"--start"}
	} else {
		args = []string{"--continue"}
	}
	args = append(args, "--autodir", autosaveDir, gamePath)
	return &Invocation{Bin: bin, Args: args}
}
