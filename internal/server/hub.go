package server

import (
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"futures-sim-go/infrastructure/logger"
	"futures-sim-go/infrastructure/monitor"
	"futures-sim-go/internal/engine"
)

// 推送给客户端的消息类型
const (
	MsgBootstrap = "bootstrap"
	MsgState     = "state"
	MsgError     = "error"
)

// Message 服务端推送的消息
type Message struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client 单个 WebSocket 连接
type Client struct {
	sid  string
	conn *websocket.Conn
	send chan []byte // 异步发送通道
	once sync.Once
}

func (c *Client) shutdown() {
	c.once.Do(func() { _ = c.conn.Close() })
}

// Hub 按会话分组管理连接，会话状态变化时广播给该会话的所有连接
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	sendBuf int
	logger  *logger.Logger
	mon     *monitor.Monitor
}

// NewHub 创建 Hub
func NewHub(sendBuf int, log *logger.Logger, mon *monitor.Monitor) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	if sendBuf <= 0 {
		sendBuf = DefaultConfig().WSSendBuffer
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		sendBuf: sendBuf,
		logger:  log,
		mon:     mon,
	}
}

func (h *Hub) newClient(sid string, conn *websocket.Conn) *Client {
	return &Client{sid: sid, conn: conn, send: make(chan []byte, h.sendBuf)}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.sid]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.sid] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	if h.mon != nil {
		h.mon.WSConnected()
	}
	h.logger.Info("WebSocket connected", zap.String("session", c.sid))
}

// unregister 关闭发送通道，只执行一次
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.sid]
	if ok {
		if _, in := set[c]; in {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.clients, c.sid)
			}
		} else {
			ok = false
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	if h.mon != nil {
		h.mon.WSDisconnected()
	}
	h.logger.Info("WebSocket disconnected", zap.String("session", c.sid))
}

// enqueue 非阻塞投递；队列满说明客户端太慢，直接断开
func (h *Hub) enqueue(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("WebSocket send buffer full, dropping client", zap.String("session", c.sid))
		c.shutdown()
	}
}

// sendTo 只发给一个连接，调用方须保证连接仍在 Hub 中
func (h *Hub) sendTo(c *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.LogError(err, zap.String("session", c.sid), zap.String("type", msg.Type))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.sid][c]; ok {
		h.enqueue(c, data)
	}
}

// Broadcast 发给会话下的全部连接
func (h *Hub) Broadcast(sid string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.clients[sid]
	if len(set) == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.LogError(err, zap.String("session", sid), zap.String("type", msg.Type))
		return
	}
	for c := range set {
		h.enqueue(c, data)
	}
}

// Notify 实现 notify.Notifier
func (h *Hub) Notify(sid string, snap engine.Snapshot) {
	h.Broadcast(sid, Message{Type: MsgState, Data: snap})
}

// Count 会话下的连接数
func (h *Hub) Count(sid string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sid])
}

// CloseAll 断开全部连接，读循环退出后各自注销
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for c := range set {
			c.shutdown()
		}
	}
}
