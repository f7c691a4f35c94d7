package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"ClipForge/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MessageType 消息类型
type MessageType string

const (
	MsgTypePing MessageType = "ping" // 心跳
	MsgTypePong MessageType = "pong" // 心跳响应

	MsgTypeTimeline MessageType = "timeline" // 时间线构建、重建、销毁
	MsgTypeInstall  MessageType = "install"  // 资源包安装完成
	MsgTypeResolve  MessageType = "resolve"  // 通过接口触发的资源解析结果
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// InstallData 安装完成通知
type InstallData struct {
	Identity string `json:"identity"`
	Path     string `json:"path"`
	Type     int    `json:"type"`
	Code     int    `json:"code"`
}

// ResolveData 资源解析结果
type ResolveData struct {
	URL    string `json:"url"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Client WebSocket 客户端
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
	ID   string
	// topics 为空表示订阅全部
	topics map[MessageType]bool
	// pongs 由 ReadPump 写入，WritePump 负责回复；Send 可能已被 Hub 关闭
	pongs chan struct{}
}

// NewClient 创建客户端，topics 为逗号分隔的消息类型
func NewClient(hub *Hub, conn *websocket.Conn, topics string) *Client {
	c := &Client{
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 64),
		ID:     uuid.NewString(),
		topics: make(map[MessageType]bool),
		pongs:  make(chan struct{}, 1),
	}
	for _, t := range strings.Split(topics, ",") {
		if t = strings.TrimSpace(t); t != "" {
			c.topics[MessageType(t)] = true
		}
	}
	return c
}

func (c *Client) wants(t MessageType) bool {
	return len(c.topics) == 0 || c.topics[t]
}

type broadcastMessage struct {
	Type    MessageType
	Message []byte
}

// Hub 事件推送中心
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu       sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Info("event client registered", logger.String("client", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub，可重复调用
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// removeClient 需要持有锁
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	logger.Info("event client unregistered", logger.String("client", client.ID))
}

func (h *Hub) deliver(msg *broadcastMessage) {
	h.mu.RLock()
	clientList := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	for _, client := range clientList {
		if !client.wants(msg.Type) {
			continue
		}
		select {
		case client.Send <- msg.Message:
		default:
			// 发送缓冲区满，移除客户端
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]bool)
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish 序列化并广播消息，Hub 忙时丢弃
func (h *Hub) Publish(t MessageType, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(&WSMessage{Type: t, Data: raw, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- &broadcastMessage{Type: t, Message: msg}:
	default:
		logger.Warn("event queue full, message dropped", logger.String("type", string(t)))
	}
	return nil
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ReadPump 读取消息循环，只处理心跳
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("client", c.ID))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format", logger.ErrorField(err), logger.String("client", c.ID))
			continue
		}
		if msg.Type != MsgTypePing {
			continue
		}
		select {
		case c.pongs <- struct{}{}:
		default:
		}
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.pongs:
			pong, _ := json.Marshal(&WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.TextMessage, pong); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
