package glk

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/wfunc/if-gateway/internal/errors"
)

// StateFileName 会话目录下的状态边车文件名
const StateFileName = "glkstate.json"

// SaveState 把状态写入会话目录（临时文件+原子改名）
func SaveState(state *State, dir string) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, errors.ErrStateFile)
	}

	tmp := filepath.Join(dir, StateFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, errors.ErrStateFile)
	}
	if err := os.Rename(tmp, filepath.Join(dir, StateFileName)); err != nil {
		return errors.Wrap(err, errors.ErrStateFile)
	}
	return nil
}

// LoadState 从会话目录加载状态。
// 文件不存在返回 (nil, nil)：游戏未开始或已被强制停止。
func LoadState(dir string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(dir, StateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrStateFile)
	}

	state := NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, errors.Wrap(err, errors.ErrStateFile)
	}
	return state, nil
}

// DeleteState 删除状态文件（强制停止游戏）。文件不存在不算错误。
func DeleteState(dir string) error {
	err := os.Remove(filepath.Join(dir, StateFileName))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrStateFile)
	}
	return nil
}
