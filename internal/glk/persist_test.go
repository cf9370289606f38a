package glk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersist_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	win := 1
	state := NewState()
	state.Generation = 12
	state.LineInputWin = &win
	var line ContentLine
	line.Add("Hello, ", StyleNormal, "")
	line.Add("sailor", StyleEmphasized, "3")
	state.StoryWinData = append(state.StoryWinData, line)

	require.NoError(t, SaveState(state, dir))

	restored, err := LoadState(dir)
	require.NoError(t, err)
	require.NotNil(t, restored)

	assert.Equal(t, 12, restored.Generation)
	require.NotNil(t, restored.LineInputWin)
	assert.Equal(t, 1, *restored.LineInputWin)
	require.Len(t, restored.StoryWinData, 1)
	assert.True(t, line.Equal(&restored.StoryWinData[0]))
}

func TestPersist_AbsentIsNil(t *testing.T) {
	state, err := LoadState(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestPersist_Delete(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveState(NewState(), dir))
	require.NoError(t, DeleteState(dir))

	state, err := LoadState(dir)
	require.NoError(t, err)
	assert.Nil(t, state)

	// 已删除再删不报错
	require.NoError(t, DeleteState(dir))
}
