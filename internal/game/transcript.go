package game

import (
	"encoding/json"
	"os"
	"time"

	"github.com/wfunc/if-gateway/internal/errors"
)

// 记录类型
const (
	RecordGlkote  = "glkote"
	RecordComment = "comment"
)

// TranscriptRecord 逐行JSON记录文件的一条记录。
// glkote记录一次回合的进出，comment记录频道里的非命令聊天。
type TranscriptRecord struct {
	Type      string      `json:"type"`
	SessionID uint        `json:"sessid"`
	InTime    int64       `json:"intime,omitempty"`
	OutTime   int64       `json:"outtime,omitempty"`
	Input     interface{} `json:"input,omitempty"`
	Output    interface{} `json:"output,omitempty"`
	Text      string      `json:"text,omitempty"`
	Author    string      `json:"author,omitempty"`
}

// NewTurnRecord 创建一条回合记录
func NewTurnRecord(sessionID uint, input, output interface{}, inTime, outTime time.Time) *TranscriptRecord {
	return &TranscriptRecord{
		Type:      RecordGlkote,
		SessionID: sessionID,
		InTime:    inTime.UnixMilli(),
		OutTime:   outTime.UnixMilli(),
		Input:     input,
		Output:    output,
	}
}

// NewCommentRecord 创建一条聊天注记
func NewCommentRecord(sessionID uint, author, text string) *TranscriptRecord {
	return &TranscriptRecord{
		Type:      RecordComment,
		SessionID: sessionID,
		InTime:    time.Now().UnixMilli(),
		Author:    author,
		Text:      text,
	}
}

// AppendTranscript 把一条记录追加到记录文件
func AppendTranscript(path string, rec *TranscriptRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.ErrTranscript)
	}

	fl, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, errors.ErrTranscript)
	}
	defer fl.Close()

	if _, err := fl.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, errors.ErrTranscript)
	}
	return nil
}
