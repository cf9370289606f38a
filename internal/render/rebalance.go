package render

import (
	"strings"
	"unicode/utf8"
)

// DefaultLimit 单条出站消息的长度上限。
// 平台真实上限是2000，留出余量。
const DefaultLimit = 1990

// Rebalance 把逐行输出重新打包成不超长的消息。
// 相邻行用换行符贪心拼接直到放不下；单行超限时优先在
// 限长前的最后一个空格处断开，没有空格就硬切。
// 硬切可能切断标记包（已知接受的不精确）。
// 产出不含空白消息。
func Rebalance(lines []string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var out []string
	var buf string

	flush := func() {
		trimmed := strings.TrimSpace(buf)
		if trimmed != "" {
			out = append(out, trimmed)
		}
		buf = ""
	}

	for _, line := range lines {
		// 纯空白行不进消息
		if strings.TrimSpace(line) == "" {
			continue
		}

		// 超长行先独立切块
		for len(line) > limit {
			head, rest := splitLine(line, limit)
			if buf != "" {
				flush()
			}
			buf = head
			flush()
			line = rest
		}

		if buf == "" {
			buf = line
			continue
		}
		if len(buf)+1+len(line) <= limit {
			buf = buf + "\n" + line
			continue
		}
		flush()
		buf = line
	}
	flush()

	return out
}

// splitLine 在限长内断开一行：优先取最后一个空格，否则硬切。
// 硬切回退到rune边界，多字节字符不会被切成无效UTF-8。
func splitLine(line string, limit int) (head, rest string) {
	cut := strings.LastIndex(line[:limit], " ")
	if cut > 0 {
		return line[:cut], line[cut+1:]
	}

	cut = limit
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	if cut == 0 {
		cut = limit
	}
	return line[:cut], line[cut:]
}
