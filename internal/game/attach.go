package game

import (
	"sync"
	"time"
)

// Attachment 频道里最近上传的一个文件
type Attachment struct {
	Filename  string
	URL       string
	Timestamp time.Time
}

// AttachList 每频道的近期上传缓存（进程内，不持久化）。
// 用来解析不带URL参数的"安装我刚上传的文件"。
type AttachList struct {
	mu  sync.Mutex
	ttl time.Duration
	// 频道键 → 上传列表（按见到的先后）
	byChannel map[string][]*Attachment
}

// NewAttachList 创建上传缓存
func NewAttachList(ttl time.Duration) *AttachList {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AttachList{
		ttl:       ttl,
		byChannel: make(map[string][]*Attachment),
	}
}

// Add 记录一次上传。同URL重复出现只刷新时间戳。
func (a *AttachList) Add(channelKey, filename, url string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, att := range a.byChannel[channelKey] {
		if att.URL == url {
			att.Timestamp = time.Now()
			return
		}
	}
	a.byChannel[channelKey] = append(a.byChannel[channelKey], &Attachment{
		Filename:  filename,
		URL:       url,
		Timestamp: time.Now(),
	})
}

// Latest 取频道里最新的未过期上传
func (a *AttachList) Latest(channelKey string) (*Attachment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pruneLocked(channelKey)

	list := a.byChannel[channelKey]
	if len(list) == 0 {
		return nil, false
	}

	latest := list[0]
	for _, att := range list[1:] {
		if att.Timestamp.After(latest.Timestamp) {
			latest = att
		}
	}
	return latest, true
}

// pruneLocked 丢掉过期的上传记录
func (a *AttachList) pruneLocked(channelKey string) {
	cutoff := time.Now().Add(-a.ttl)
	list := a.byChannel[channelKey]
	kept := list[:0]
	for _, att := range list {
		if att.Timestamp.After(cutoff) {
			kept = append(kept, att)
		}
	}
	if len(kept) == 0 {
		delete(a.byChannel, channelKey)
		return
	}
	a.byChannel[channelKey] = kept
}
