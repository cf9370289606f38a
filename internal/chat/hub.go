package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/if-gateway/internal/config"
	"github.com/wfunc/if-gateway/internal/models"
)

// Frame WebSocket线缆上的一帧
type Frame struct {
	Type      string       `json:"type"`
	GuildID   string       `json:"guild_id,omitempty"`
	ChannelID string       `json:"channel_id,omitempty"`
	Author    string       `json:"author,omitempty"`
	Text      string       `json:"text,omitempty"`
	Command   string       `json:"command,omitempty"`
	Args      map[string]string `json:"args,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Commands  []CommandSpec `json:"commands,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp int64        `json:"timestamp,omitempty"`
}

// 帧类型
const (
	FrameTypeJoin    = "join"
	FrameTypeJoined  = "joined"
	FrameTypeMessage = "message"
	FrameTypeCommand = "command"
	FrameTypeText    = "text"
	FrameTypeError   = "error"
	FrameTypePing    = "ping"
	FrameTypePong    = "pong"
)

// Hub WebSocket连接管理中心。
// 客户端先发join声明所在的服务器/频道，之后的消息和命令
// 都带着这份身份转发给网关；出站文本按频道身份路由回去。
type Hub struct {
	cfg     *config.ChatConfig
	handler Handler
	logger  *zap.Logger

	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 频道键到客户端的映射
	channelClients map[string][]*Client
	channelMu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub 创建Hub
func NewHub(cfg *config.ChatConfig, handler Handler, logger *zap.Logger) *Hub {
	return &Hub{
		cfg:            cfg,
		handler:        handler,
		logger:         logger,
		clients:        make(map[string]*Client),
		channelClients: make(map[string][]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
	}
}

// Run 运行Hub（单独goroutine）
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case <-h.done:
			return
		}
	}
}

// Stop 停止Hub并断开所有客户端
func (h *Hub) Stop() {
	close(h.done)

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for _, client := range h.clients {
		client.Close()
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.logger.Info("chat client connected",
		zap.String("client_id", client.ID))
}

// unregisterClient 注销客户端并清掉频道映射
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	h.channelMu.Lock()
	for key, list := range h.channelClients {
		kept := list[:0]
		for _, c := range list {
			if c.ID != client.ID {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			delete(h.channelClients, key)
		} else {
			h.channelClients[key] = kept
		}
	}
	h.channelMu.Unlock()

	h.logger.Info("chat client disconnected",
		zap.String("client_id", client.ID))
}

// joinChannel 把客户端挂到频道上（join帧处理）
func (h *Hub) joinChannel(client *Client, guildID, channelID string) {
	key := models.ChannelKey(guildID, channelID)
	h.channelMu.Lock()
	h.channelClients[key] = append(h.channelClients[key], client)
	h.channelMu.Unlock()
}

// SendText 把文本发给加入了该频道的所有客户端
func (h *Hub) SendText(ctx context.Context, guildID, channelID, text string) error {
	key := models.ChannelKey(guildID, channelID)

	h.channelMu.RLock()
	targets := append([]*Client(nil), h.channelClients[key]...)
	h.channelMu.RUnlock()

	frame := &Frame{
		Type:      FrameTypeText,
		GuildID:   guildID,
		ChannelID: channelID,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	for _, client := range targets {
		select {
		case client.Send <- data:
		default:
			// 发送缓冲满的客户端直接丢帧，不拖慢回合
			h.logger.Warn("client send buffer full, frame dropped",
				zap.String("client_id", client.ID))
		}
	}
	return nil
}

// upgrader 按配置构造的协议升级器
func (h *Hub) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  h.cfg.ReadBufferSize,
		WriteBufferSize: h.cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// ServeWS WebSocket入口的HTTP处理函数
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h, conn)
	h.register <- client

	go client.WritePump()
	go client.ReadPump()
}
