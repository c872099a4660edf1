package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"futures-sim-go/internal/engine"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
)

// 客户端可发送的消息类型
const (
	inTick      = "tick"
	inOrder     = "order"
	inCancelAll = "cancel_all"
	inClose     = "close"
)

var errUnknownType = errors.New("unknown message type")

// inbound 客户端消息格式
type inbound struct {
	Type string          `json:"type" validate:"required,max=32"`
	Data json.RawMessage `json:"data"`
}

// handleWS 建立连接后先推 bootstrap 再推 state
func (s *Server) handleWS(c *gin.Context) {
	sid, ck := s.sessionID(c.Request)
	var header http.Header
	if ck != nil {
		header = http.Header{"Set-Cookie": {ck.String()}}
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	ctx := context.Background()
	client := s.hub.newClient(sid, conn)

	boot, err := s.mgr.Bootstrap(ctx, sid)
	if err != nil {
		s.logger.LogError(err, zap.String("session", sid))
		_ = conn.WriteJSON(Message{Type: MsgError, Message: err.Error()})
		_ = conn.Close()
		return
	}

	// 先入队 bootstrap 再注册，保证它是第一条
	if b, err := json.Marshal(Message{Type: MsgBootstrap, Data: boot}); err == nil {
		client.send <- b
	}
	s.hub.register(client)

	go s.writePump(client)

	snap, err := s.mgr.State(ctx, sid)
	if err != nil {
		s.hub.sendTo(client, Message{Type: MsgError, Message: err.Error()})
	} else {
		s.hub.sendTo(client, Message{Type: MsgState, Data: snap})
	}

	s.readPump(client)
}

// readPump 循环读取客户端消息，阻塞到连接断开
func (s *Server) readPump(c *Client) {
	defer func() {
		s.hub.unregister(c)
		c.shutdown()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket read error", zap.String("session", c.sid), zap.Error(err))
			}
			return
		}
		if err := s.dispatch(c, data); err != nil {
			s.hub.sendTo(c, Message{Type: MsgError, Message: err.Error()})
		}
	}
}

// writePump 从发送通道取消息写入连接，定时 ping
func (s *Server) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch 处理一条客户端消息。状态变化经由 Hub.Notify 广播，这里只回错误。
func (s *Server) dispatch(c *Client, data []byte) error {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return errors.New("invalid message")
	}
	if err := s.validate.Struct(msg); err != nil {
		return errors.New("invalid message")
	}
	if s.mon != nil {
		s.mon.RecordWSMessage(msg.Type)
	}

	ctx := context.Background()
	switch msg.Type {
	case inTick:
		_, err := s.mgr.Tick(ctx, c.sid)
		return err
	case inOrder:
		var req engine.PlaceOrderRequest
		if err := decodeData(msg.Data, &req); err != nil {
			return err
		}
		res, err := s.mgr.PlaceOrder(ctx, c.sid, req)
		if err != nil {
			return err
		}
		if !res.OK {
			return errors.New(res.Error)
		}
		return nil
	case inCancelAll:
		_, err := s.mgr.CancelAll(ctx, c.sid)
		return err
	case inClose:
		var req engine.CloseRequest
		if err := decodeData(msg.Data, &req); err != nil {
			return err
		}
		_, err := s.mgr.Close(ctx, c.sid, req)
		return err
	default:
		return errUnknownType
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing data")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("invalid data")
	}
	return nil
}
