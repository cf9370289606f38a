package glk

import (
	"regexp"
	"strconv"

	"github.com/wfunc/if-gateway/internal/errors"
)

// State GlkOte协议状态机：从部分更新流中重建窗口/内容/输入状态。
// 每会话一份，随更新流变化，持久化为会话目录下的边车文件。
type State struct {
	// 解释器的更新计数器，跨更新不可递减
	Generation int `json:"generation"`
	// 解释器已报告退出
	Exited bool `json:"exited"`

	// 当前窗口布局（windows字段出现时整体替换）
	Windows map[int]Window `json:"windows"`

	// 累积内容
	StoryWinData    []ContentLine `json:"storywindat"`
	StatusWinData   []ContentLine `json:"statuswindat"`
	GraphicsWinData []ContentLine `json:"graphicswindat"`

	// 各状态窗口在纵向拼接的状态缓冲区里的起始行。
	// 已知限制：仅在多个grid窗口同时变化时重算；单个状态窗口
	// 独立改变高度不会被逐窗协调。这是沿袭下来的行为，保持原样。
	StatusLineStarts map[int]int `json:"statuslinestarts"`

	// 输入接受状态：line/char至多一个生效，hyperlink可与两者并存
	LineInputWin      *int   `json:"lineinputwin"`
	CharInputWin      *int   `json:"charinputwin"`
	HyperlinkInputWin *int   `json:"hyperlinkinputwin"`
	SpecialInput      string `json:"specialinput"`

	// 链接键与玩家可见小整数标号的双向映射（每次更新重建，
	// 回合内稳定，链接集合变化时跨回合不保证稳定）
	HyperlinkKeys   map[int]string `json:"hyperlinkkeys"`
	HyperlinkLabels map[string]int `json:"hyperlinklabels"`
}

// NewState 创建空状态机
func NewState() *State {
	return &State{
		Windows:          make(map[int]Window),
		StatusLineStarts: make(map[int]int),
		HyperlinkKeys:    make(map[int]string),
		HyperlinkLabels:  make(map[string]int),
	}
}

// AcceptUpdate 消费一个GlkOte更新对象并更新状态。
// extraInputEcho 非空时表示本回合输入未被解释器回显
// （fileref_prompt应答），需要合成一行input样式的回显。
func (s *State) AcceptUpdate(update *Update, extraInputEcho string) error {
	if update.Gen < s.Generation {
		return errors.Newf(errors.ErrStateUpdateRejected,
			"generation went backwards: %d < %d", update.Gen, s.Generation)
	}
	s.Generation = update.Gen
	s.Exited = update.Exit

	if update.HasWindows {
		s.acceptWindows(update.Windows)
	}

	if update.HasContent {
		for i := range update.Content {
			if err := s.acceptContent(&update.Content[i], extraInputEcho); err != nil {
				return err
			}
			// 回显只在第一个buffer条目前合成一次
			extraInputEcho = ""
		}
	}

	if err := s.acceptInput(update); err != nil {
		return err
	}

	s.relabelHyperlinks()
	return nil
}

// acceptWindows 整体替换窗口布局并重排状态缓冲区
func (s *State) acceptWindows(windows []Window) {
	s.Windows = make(map[int]Window, len(windows))
	for _, win := range windows {
		s.Windows[win.ID] = win
	}

	// 状态窗口纵向堆叠：按窗口顺序累加grid高度
	s.StatusLineStarts = make(map[int]int)
	totalHeight := 0
	for _, win := range windows {
		if win.Type != WindowGrid {
			continue
		}
		s.StatusLineStarts[win.ID] = totalHeight
		totalHeight += win.GridHeight
	}

	// 状态缓冲区调整到总高度：截断或用空行补齐
	if totalHeight < len(s.StatusWinData) {
		s.StatusWinData = s.StatusWinData[:totalHeight]
	}
	for totalHeight > len(s.StatusWinData) {
		s.StatusWinData = append(s.StatusWinData, ContentLine{})
	}
}

// acceptContent 应用一个窗口的新内容
func (s *State) acceptContent(entry *ContentEntry, extraInputEcho string) error {
	win, ok := s.Windows[entry.ID]
	if !ok {
		return errors.Newf(errors.ErrUnknownWindow, "window %d", entry.ID)
	}

	switch win.Type {
	case WindowBuffer:
		s.acceptBufferContent(entry, extraInputEcho)
	case WindowGrid:
		s.acceptGridContent(entry)
	case WindowGraphics:
		s.acceptGraphicsContent(entry)
	}
	return nil
}

// acceptBufferContent 故事窗口：默认清空累积内容重新累计；
// 如果首行是append续行或带有输入回显，保留最后一行以延续当前段落。
func (s *State) acceptBufferContent(entry *ContentEntry, extraInputEcho string) {
	keepLast := extraInputEcho != ""
	if len(entry.Text) > 0 && entry.Text[0].Append {
		keepLast = true
	}

	if keepLast && len(s.StoryWinData) > 0 {
		s.StoryWinData = s.StoryWinData[len(s.StoryWinData)-1:]
	} else {
		s.StoryWinData = nil
	}

	if extraInputEcho != "" {
		var echo ContentLine
		echo.Add(extraInputEcho, StyleInput, "")
		s.StoryWinData = append(s.StoryWinData, echo, ContentLine{})
	}

	for i := range entry.Text {
		line := entry.Text[i].ContentLine()
		if entry.Text[i].Append && len(s.StoryWinData) > 0 {
			s.StoryWinData[len(s.StoryWinData)-1].Extend(line)
		} else {
			s.StoryWinData = append(s.StoryWinData, line)
		}
	}
}

// acceptGridContent 状态窗口：局部行号映射进拼接缓冲区后整行覆盖
func (s *State) acceptGridContent(entry *ContentEntry) {
	start := s.StatusLineStarts[entry.ID]
	for i := range entry.Lines {
		lineNum := start + entry.Lines[i].Line
		if lineNum >= 0 && lineNum < len(s.StatusWinData) {
			s.StatusWinData[lineNum] = entry.Lines[i].ContentLine()
		}
	}
}

// acceptGraphicsContent 图形窗口：只保留最近一组绘制指令
func (s *State) acceptGraphicsContent(entry *ContentEntry) {
	s.GraphicsWinData = nil
	if len(entry.Draw) == 0 {
		return
	}
	var line ContentLine
	for _, op := range entry.Draw {
		line.Add(describeDraw(op), StyleNormal, "")
	}
	s.GraphicsWinData = append(s.GraphicsWinData, line)
}

// describeDraw 把绘制指令转成可读占位文本
func describeDraw(op DrawOp) string {
	switch op.Special {
	case "image":
		return "[image " + strconv.Itoa(op.Image) + "]"
	case "fill":
		if op.Color != "" {
			return "[fill " + op.Color + "]"
		}
		return "[fill]"
	case "setcolor":
		return "[color " + op.Color + "]"
	default:
		return "[" + op.Special + "]"
	}
}

// acceptInput 更新输入接受状态
func (s *State) acceptInput(update *Update) error {
	if update.Special != nil {
		s.SpecialInput = update.Special.Type
		s.LineInputWin = nil
		s.CharInputWin = nil
		s.HyperlinkInputWin = nil

		if update.Special.Type == SpecialFilerefPrompt {
			// 文件名提示没有窗口内容，合成可见的提示行
			var prompt ContentLine
			prompt.Add("Enter "+update.Special.FileType+" filename to "+update.Special.FileMode+":",
				StyleNormal, "")
			var cue ContentLine
			cue.Add(">>", StyleInput, "")
			s.StoryWinData = append(s.StoryWinData, prompt, cue)
		}
		return nil
	}

	if !update.HasInput {
		return nil
	}

	s.SpecialInput = ""
	s.LineInputWin = nil
	s.CharInputWin = nil
	s.HyperlinkInputWin = nil

	for i := range update.Input {
		in := &update.Input[i]
		id := in.ID
		switch in.Type {
		case InputTypeLine:
			if s.LineInputWin != nil {
				return errors.New(errors.ErrConflictingInputMode, "multiple windows accepting line input")
			}
			s.LineInputWin = &id
		case InputTypeChar:
			if s.CharInputWin != nil {
				return errors.New(errors.ErrConflictingInputMode, "multiple windows accepting char input")
			}
			s.CharInputWin = &id
		}
		if in.Hyperlink {
			s.HyperlinkInputWin = &id
		}
	}
	return nil
}

// relabelHyperlinks 重建链接键和顺序小标号的双向映射。
// 先扫状态窗口再扫故事窗口，新见到的键取下一个未用的标号。
func (s *State) relabelHyperlinks() {
	s.HyperlinkKeys = make(map[int]string)
	s.HyperlinkLabels = make(map[string]int)
	next := 1

	scan := func(lines []ContentLine) {
		for _, line := range lines {
			for _, span := range line.Spans {
				if span.Link == "" {
					continue
				}
				if _, seen := s.HyperlinkLabels[span.Link]; seen {
					continue
				}
				s.HyperlinkLabels[span.Link] = next
				s.HyperlinkKeys[next] = span.Link
				next++
			}
		}
	}

	scan(s.StatusWinData)
	scan(s.StoryWinData)
}

// 超链接引用token："#<标号>"
var hyperlinkTokenPat = regexp.MustCompile(`^#([0-9]+)$`)

// ConstructInput 为玩家命令构造下一个输入事件。
// 纯函数：同一状态加同一命令总是产出同一事件。
func (s *State) ConstructInput(command string) (*Event, error) {
	if s.HyperlinkInputWin != nil {
		if match := hyperlinkTokenPat.FindStringSubmatch(command); match != nil {
			label, _ := strconv.Atoi(match[1])
			key, ok := s.HyperlinkKeys[label]
			if !ok {
				return nil, errors.Newf(errors.ErrInvalidHyperlink, "#%d", label)
			}
			return &Event{
				Type:   EventTypeHyperlink,
				Gen:    s.Generation,
				Window: *s.HyperlinkInputWin,
				Value:  linkValue(key),
			}, nil
		}
	}

	if s.LineInputWin != nil {
		return &Event{
			Type:   EventTypeLine,
			Gen:    s.Generation,
			Window: *s.LineInputWin,
			Value:  command,
		}, nil
	}

	if s.CharInputWin != nil {
		ch := command
		if ch == "space" {
			ch = " "
		}
		return &Event{
			Type:   EventTypeChar,
			Gen:    s.Generation,
			Window: *s.CharInputWin,
			Value:  ch,
		}, nil
	}

	if s.SpecialInput == SpecialFilerefPrompt {
		return &Event{
			Type:     EventTypeSpecial,
			Gen:      s.Generation,
			Response: SpecialFilerefPrompt,
			Value:    command,
		}, nil
	}

	if s.HyperlinkInputWin != nil {
		return nil, errors.New(errors.ErrExpectedHyperlink)
	}

	return nil, errors.New(errors.ErrNoInputExpected)
}

// InputMode 当前输入模式的展示名（状态查询用）
func (s *State) InputMode() string {
	switch {
	case s.SpecialInput != "":
		return s.SpecialInput
	case s.LineInputWin != nil && s.HyperlinkInputWin != nil:
		return "line+hyperlink"
	case s.CharInputWin != nil && s.HyperlinkInputWin != nil:
		return "char+hyperlink"
	case s.LineInputWin != nil:
		return "line"
	case s.CharInputWin != nil:
		return "char"
	case s.HyperlinkInputWin != nil:
		return "hyperlink"
	default:
		return "none"
	}
}
