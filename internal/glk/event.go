package glk

// 输入事件类型
const (
	EventTypeInit      = "init"
	EventTypeLine      = "line"
	EventTypeChar      = "char"
	EventTypeHyperlink = "hyperlink"
	EventTypeSpecial   = "specialresponse"
)

// Event 发往解释器的GlkOte输入事件。
// 每个事件都携带当前generation，供解释器检测过期输入。
type Event struct {
	Type     string      `json:"type"`
	Gen      int         `json:"gen"`
	Window   int         `json:"window,omitempty"`
	Value    interface{} `json:"value,omitempty"`
	Response string      `json:"response,omitempty"`
	Metrics  *Metrics    `json:"metrics,omitempty"`
	Support  []string    `json:"support,omitempty"`
}

// Metrics 初始化事件上报的屏幕度量。
// 聊天前端没有真实屏幕，字符格尺寸取固定值。
type Metrics struct {
	Width            int `json:"width"`
	Height           int `json:"height"`
	GridCharWidth    int `json:"gridcharwidth"`
	GridCharHeight   int `json:"gridcharheight"`
	BufferCharWidth  int `json:"buffercharwidth"`
	BufferCharHeight int `json:"buffercharheight"`
}

// NewMetrics 创建屏幕度量，零值尺寸取默认800×480
func NewMetrics(width, height int) *Metrics {
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 480
	}
	return &Metrics{
		Width:            width,
		Height:           height,
		GridCharWidth:    10,
		GridCharHeight:   12,
		BufferCharWidth:  10,
		BufferCharHeight: 12,
	}
}

// InitEvent 构造首回合的init事件（gen=0，声明timer和hyperlinks能力）
func InitEvent(width, height int) *Event {
	return &Event{
		Type:    EventTypeInit,
		Gen:     0,
		Metrics: NewMetrics(width, height),
		Support: []string{"timer", "hyperlinks"},
	}
}
