package render

import (
	"strconv"
	"strings"

	"github.com/wfunc/if-gateway/internal/glk"
)

// 聊天平台的行内标记元字符
var escaper = strings.NewReplacer(
	"\\", "\\\\",
	"*", "\\*",
	"_", "\\_",
	"`", "\\`",
	"~", "\\~",
	"|", "\\|",
)

// Escape 转义平台标记元字符
func Escape(text string) string {
	return escaper.Replace(text)
}

// spanMarkup 单个文本段的样式标记
func spanMarkup(span glk.Span) string {
	switch span.Style {
	case glk.StyleHeader, glk.StyleSubheader, glk.StyleInput:
		return "**" + Escape(span.Text) + "**"
	case glk.StyleEmphasized:
		return "_" + Escape(span.Text) + "_"
	case glk.StylePreformatted:
		// 字面量段不转义，按原文放进反引号
		return "`" + span.Text + "`"
	default:
		return Escape(span.Text)
	}
}

// LineToMarkup 把一行内容渲染成平台标记串。
// 整行共享同一个链接键时，行首加一个 [#标号] 标签；
// 否则链接键每次变化时用 [#标号][...] 包住对应的段。
func LineToMarkup(line glk.ContentLine, labels map[string]int) string {
	if len(line.Spans) == 0 {
		return ""
	}

	uniform := line.Spans[0].Link
	for _, span := range line.Spans {
		if span.Link != uniform {
			uniform = ""
			break
		}
	}

	var sb strings.Builder

	if uniform != "" {
		if label, ok := labels[uniform]; ok {
			sb.WriteString("[#" + strconv.Itoa(label) + "] ")
		}
		for _, span := range line.Spans {
			sb.WriteString(spanMarkup(span))
		}
		return sb.String()
	}

	// 链接键逐段切换：同键的连续段放进同一个链接包
	i := 0
	for i < len(line.Spans) {
		link := line.Spans[i].Link
		j := i
		for j < len(line.Spans) && line.Spans[j].Link == link {
			j++
		}

		var seg strings.Builder
		for _, span := range line.Spans[i:j] {
			seg.WriteString(spanMarkup(span))
		}

		if link != "" {
			if label, ok := labels[link]; ok {
				sb.WriteString("[#" + strconv.Itoa(label) + "][" + seg.String() + "]")
			} else {
				sb.WriteString(seg.String())
			}
		} else {
			sb.WriteString(seg.String())
		}
		i = j
	}
	return sb.String()
}

// LinesToMarkup 渲染整个内容序列
func LinesToMarkup(lines []glk.ContentLine, labels map[string]int) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineToMarkup(line, labels))
	}
	return out
}
