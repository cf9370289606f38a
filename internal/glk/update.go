package glk

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// 更新对象类型
const (
	UpdateTypeUpdate = "update"
	UpdateTypeError  = "error"
)

// 窗口类型
const (
	WindowBuffer   = "buffer"
	WindowGrid     = "grid"
	WindowGraphics = "graphics"
)

// 输入请求类型
const (
	InputTypeLine = "line"
	InputTypeChar = "char"
)

// SpecialFilerefPrompt 文件名提示特殊输入
const SpecialFilerefPrompt = "fileref_prompt"

// Update 解释器每回合输出的GlkOte更新对象
// 格式见 https://eblong.com/zarf/glk/glkote/docs.html
type Update struct {
	Type    string         `json:"type"`
	Gen     int            `json:"gen"`
	Windows []Window       `json:"windows"`
	Content []ContentEntry `json:"content"`
	Input   []InputRequest `json:"input"`
	Special *SpecialInput  `json:"specialinput"`
	Exit    bool           `json:"exit"`

	// error型更新携带的消息
	Message string `json:"message"`

	// 字段是否在JSON中出现（nil切片区分"缺席"与"空表"不可靠，
	// 解析入口统一填好这些标志）
	HasWindows bool `json:"-"`
	HasContent bool `json:"-"`
	HasInput   bool `json:"-"`
}

// ParseUpdate 解析并校验一个更新对象
func ParseUpdate(data []byte) (*Update, error) {
	var up Update
	if err := json.Unmarshal(data, &up); err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}

	// 记录原始JSON里各可选字段的出现情况
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	_, up.HasWindows = probe["windows"]
	_, up.HasContent = probe["content"]
	_, up.HasInput = probe["input"]

	if err := up.validate(); err != nil {
		return nil, err
	}
	return &up, nil
}

// validate 对更新对象做入站校验，缺失必填字段明确拒绝
func (u *Update) validate() error {
	if u.Type == UpdateTypeError {
		return nil
	}
	for i := range u.Windows {
		win := &u.Windows[i]
		if win.ID == 0 {
			return fmt.Errorf("window %d: missing id", i)
		}
		switch win.Type {
		case WindowBuffer, WindowGrid, WindowGraphics:
		default:
			return fmt.Errorf("window %d: unknown type %q", win.ID, win.Type)
		}
	}
	for i := range u.Content {
		if u.Content[i].ID == 0 {
			return fmt.Errorf("content entry %d: missing id", i)
		}
	}
	for i := range u.Input {
		in := &u.Input[i]
		if in.ID == 0 {
			return fmt.Errorf("input request %d: missing id", i)
		}
		switch in.Type {
		case InputTypeLine, InputTypeChar, "":
		default:
			return fmt.Errorf("input request %d: unknown type %q", in.ID, in.Type)
		}
	}
	if u.Special != nil && u.Special.Type == "" {
		return fmt.Errorf("specialinput: missing type")
	}
	return nil
}

// Window 窗口描述
type Window struct {
	ID         int    `json:"id"`
	Type       string `json:"type"`
	Rock       int    `json:"rock"`
	GridWidth  int    `json:"gridwidth"`
	GridHeight int    `json:"gridheight"`
	Left       int    `json:"left"`
	Top        int    `json:"top"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// ContentEntry 一个窗口的新内容
type ContentEntry struct {
	ID    int        `json:"id"`
	Clear bool       `json:"clear"`
	Text  []TextLine `json:"text"`  // buffer窗口
	Lines []GridLine `json:"lines"` // grid窗口
	Draw  []DrawOp   `json:"draw"`  // graphics窗口
}

// TextLine buffer窗口的一行
type TextLine struct {
	Append    bool    `json:"append"`
	FlowBreak bool    `json:"flowbreak"`
	Content   runList `json:"content"`
}

// GridLine grid窗口的一行（行号是窗口内的局部行号）
type GridLine struct {
	Line    int     `json:"line"`
	Content runList `json:"content"`
}

// DrawOp graphics窗口的绘制指令
type DrawOp struct {
	Special string `json:"special"`
	Image   int    `json:"image"`
	URL     string `json:"url"`
	Color   string `json:"color"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// ContentLine 把行内容转为ContentLine
func (t *TextLine) ContentLine() ContentLine {
	return runsToLine(t.Content)
}

// ContentLine 把行内容转为ContentLine
func (g *GridLine) ContentLine() ContentLine {
	return runsToLine(g.Content)
}

func runsToLine(runs runList) ContentLine {
	var line ContentLine
	for _, run := range runs {
		line.Add(run.Text, run.Style, run.Link)
	}
	return line
}

// run 行内容数组的一个元素
type run struct {
	Text  string
	Style string
	Link  string
}

// runList 行内容数组：元素可以是裸字符串（normal文本）
// 或 {text, style, hyperlink} 对象
type runList []run

// UnmarshalJSON 解析混合形式的内容数组
func (r *runList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("content array: %w", err)
	}

	*r = nil
	for i, item := range raw {
		if len(item) > 0 && item[0] == '"' {
			var text string
			if err := json.Unmarshal(item, &text); err != nil {
				return fmt.Errorf("content array %d: %w", i, err)
			}
			*r = append(*r, run{Text: text, Style: StyleNormal})
			continue
		}

		var obj struct {
			Text      string          `json:"text"`
			Style     string          `json:"style"`
			Hyperlink json.RawMessage `json:"hyperlink"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("content array %d: %w", i, err)
		}
		if obj.Style == "" {
			obj.Style = StyleNormal
		}
		link, err := normalizeLink(obj.Hyperlink)
		if err != nil {
			return fmt.Errorf("content array %d: %w", i, err)
		}
		*r = append(*r, run{Text: obj.Text, Style: obj.Style, Link: link})
	}
	return nil
}

// normalizeLink 把链接键归一化为字符串（数字键转十进制串）
func normalizeLink(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("hyperlink key: %s", string(raw))
	}
	return n.String(), nil
}

// linkValue 把归一化的链接键还原为事件值（纯数字键还原为数字）
func linkValue(key string) interface{} {
	if n, err := strconv.Atoi(key); err == nil {
		return n
	}
	return key
}

// InputRequest 输入请求
type InputRequest struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	Gen       int    `json:"gen"`
	MaxLen    int    `json:"maxlen"`
	Hyperlink bool   `json:"hyperlink"`
}

// SpecialInput 特殊输入请求（目前只有fileref_prompt）
type SpecialInput struct {
	Type     string `json:"type"`
	FileMode string `json:"filemode"`
	FileType string `json:"filetype"`
	Gen      int    `json:"gen"`
}
