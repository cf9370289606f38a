package glk

import (
	"encoding/json"
	"fmt"
)

// 文本样式（GlkOte样式名的子集，未知样式按normal处理）
const (
	StyleNormal       = "normal"
	StyleHeader       = "header"
	StyleSubheader    = "subheader"
	StyleEmphasized   = "emphasized"
	StylePreformatted = "preformatted"
	StyleInput        = "input"
)

// Span 一段同样式的文本，可选携带超链接键
type Span struct {
	Text  string
	Style string
	// 解释器分配的不透明链接键，空串表示无链接。
	// 数字键在入站时归一化为十进制串，出站事件里还原为数字。
	Link string
}

// ContentLine 一行内容：按解释器顺序排列的样式段序列
type ContentLine struct {
	Spans []Span
}

// Add 追加一个文本段
func (l *ContentLine) Add(text, style, link string) {
	if style == "" {
		style = StyleNormal
	}
	l.Spans = append(l.Spans, Span{Text: text, Style: style, Link: link})
}

// Extend 把另一行的所有段接到本行末尾（append续行）
func (l *ContentLine) Extend(other ContentLine) {
	l.Spans = append(l.Spans, other.Spans...)
}

// Text 拼接整行的纯文本
func (l ContentLine) Text() string {
	var out string
	for _, span := range l.Spans {
		out += span.Text
	}
	return out
}

// MarshalJSON 序列化为紧凑数组形式 [[text, style, link?], ...]
// normal样式且无链接的段只保留文本，保证无损往返。
func (l ContentLine) MarshalJSON() ([]byte, error) {
	arr := make([][]interface{}, 0, len(l.Spans))
	for _, span := range l.Spans {
		switch {
		case span.Link != "":
			arr = append(arr, []interface{}{span.Text, span.Style, span.Link})
		case span.Style != StyleNormal:
			arr = append(arr, []interface{}{span.Text, span.Style})
		default:
			arr = append(arr, []interface{}{span.Text})
		}
	}
	return json.Marshal(arr)
}

// UnmarshalJSON 从紧凑数组形式还原
func (l *ContentLine) UnmarshalJSON(data []byte) error {
	var arr [][]string
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("content line: %w", err)
	}

	l.Spans = nil
	for _, tuple := range arr {
		if len(tuple) == 0 {
			return fmt.Errorf("content line: empty span tuple")
		}
		span := Span{Text: tuple[0], Style: StyleNormal}
		if len(tuple) > 1 && tuple[1] != "" {
			span.Style = tuple[1]
		}
		if len(tuple) > 2 {
			span.Link = tuple[2]
		}
		l.Spans = append(l.Spans, span)
	}
	return nil
}

// Equal 逐段比较两行内容
func (l *ContentLine) Equal(other *ContentLine) bool {
	if len(l.Spans) != len(other.Spans) {
		return false
	}
	for i, span := range l.Spans {
		if span != other.Spans[i] {
			return false
		}
	}
	return true
}
