package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachList_LatestPerChannel(t *testing.T) {
	list := NewAttachList(time.Hour)

	list.Add("g1-c1", "advent.ulx", "https://cdn/a")
	list.Add("g1-c1", "zork.z5", "https://cdn/b")
	list.Add("g1-c2", "other.ulx", "https://cdn/c")

	latest, ok := list.Latest("g1-c1")
	require.True(t, ok)
	assert.Equal(t, "zork.z5", latest.Filename)

	latest, ok = list.Latest("g1-c2")
	require.True(t, ok)
	assert.Equal(t, "other.ulx", latest.Filename)

	_, ok = list.Latest("g1-c9")
	assert.False(t, ok)
}

func TestAttachList_DuplicateURLRefreshesTimestamp(t *testing.T) {
	list := NewAttachList(time.Hour)

	list.Add("g1-c1", "advent.ulx", "https://cdn/a")
	list.Add("g1-c1", "zork.z5", "https://cdn/b")

	// 先把a的时间戳压到过去，再重复上传同一URL
	list.byChannel["g1-c1"][0].Timestamp = time.Now().Add(-30 * time.Minute)
	list.Add("g1-c1", "advent.ulx", "https://cdn/a")

	// 没有新增条目，且a重新成为最新
	assert.Len(t, list.byChannel["g1-c1"], 2)
	latest, ok := list.Latest("g1-c1")
	require.True(t, ok)
	assert.Equal(t, "https://cdn/a", latest.URL)
}

func TestAttachList_ExpiredEntriesPruned(t *testing.T) {
	list := NewAttachList(time.Hour)

	list.Add("g1-c1", "old.ulx", "https://cdn/a")
	list.Add("g1-c1", "fresh.ulx", "https://cdn/b")
	list.byChannel["g1-c1"][0].Timestamp = time.Now().Add(-2 * time.Hour)

	latest, ok := list.Latest("g1-c1")
	require.True(t, ok)
	assert.Equal(t, "fresh.ulx", latest.Filename)
	assert.Len(t, list.byChannel["g1-c1"], 1)

	// 全部过期后频道条目整个消失
	list.byChannel["g1-c1"][0].Timestamp = time.Now().Add(-2 * time.Hour)
	_, ok = list.Latest("g1-c1")
	assert.False(t, ok)
	assert.NotContains(t, list.byChannel, "g1-c1")
}
