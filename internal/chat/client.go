package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client 一个WebSocket客户端连接。
// 身份（服务器/频道/作者）来自join帧，未join的连接只能ping。
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	// join后填充
	GuildID   string
	ChannelID string
	Author    string
}

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.New().String(),
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, 64),
	}
}

// ReadPump 读取循环：解析入站帧并转发给网关
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	cfg := c.Hub.cfg
	if cfg.MaxMessageSize > 0 {
		c.Conn.SetReadLimit(cfg.MaxMessageSize)
	}
	c.Conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("websocket read error",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			break
		}
		c.handleFrame(data)
	}
}

// WritePump 写入循环：发送出站帧并按周期ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.cfg.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame 处理一帧入站数据
func (c *Client) handleFrame(data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.sendError("invalid frame")
		return
	}

	switch frame.Type {
	case FrameTypePing:
		c.sendFrame(&Frame{Type: FrameTypePong, Timestamp: time.Now().UnixMilli()})

	case FrameTypeJoin:
		if frame.GuildID == "" || frame.ChannelID == "" {
			c.sendError("join requires guild_id and channel_id")
			return
		}
		c.GuildID = frame.GuildID
		c.ChannelID = frame.ChannelID
		c.Author = frame.Author
		c.Hub.joinChannel(c, frame.GuildID, frame.ChannelID)
		c.sendFrame(&Frame{
			Type:      FrameTypeJoined,
			GuildID:   frame.GuildID,
			ChannelID: frame.ChannelID,
			Commands:  Commands(),
			Timestamp: time.Now().UnixMilli(),
		})

	case FrameTypeMessage:
		if c.GuildID == "" {
			c.sendError("join first")
			return
		}
		ev := &Event{
			GuildID:     c.GuildID,
			ChannelID:   c.ChannelID,
			Author:      c.authorFor(&frame),
			Text:        frame.Text,
			Attachments: frame.Attachments,
		}
		// 每个事件自己的goroutine：不同会话的回合并行，
		// 同会话由进行中标记串行化
		go c.Hub.handler.HandleMessage(context.Background(), ev)

	case FrameTypeCommand:
		if c.GuildID == "" {
			c.sendError("join first")
			return
		}
		ev := &Event{
			GuildID:   c.GuildID,
			ChannelID: c.ChannelID,
			Author:    c.authorFor(&frame),
			Command:   frame.Command,
			Args:      frame.Args,
		}
		go c.Hub.handler.HandleCommand(context.Background(), ev)

	default:
		c.sendError("unknown frame type: " + frame.Type)
	}
}

// authorFor 帧里带作者就用帧里的，否则落回join时的身份
func (c *Client) authorFor(frame *Frame) string {
	if frame.Author != "" {
		return frame.Author
	}
	return c.Author
}

// sendFrame 发一帧给本客户端
func (c *Client) sendFrame(frame *Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// sendError 发错误帧
func (c *Client) sendError(msg string) {
	c.sendFrame(&Frame{Type: FrameTypeError, Error: msg, Timestamp: time.Now().UnixMilli()})
}

// Close 关闭连接
func (c *Client) Close() {
	c.Conn.Close()
}
