package notify

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"futures-sim-go/infrastructure/logger"
	"futures-sim-go/internal/engine"
)

// DefaultSubjectPrefix 状态推送主题前缀，完整主题为 <prefix>.<sessionID>
const DefaultSubjectPrefix = "futsim.state"

// publisher *nats.Conn 的发布子集
type publisher interface {
	Publish(subject string, data []byte) error
}

// StateEvent NATS 上发布的状态消息
type StateEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Data      engine.Snapshot `json:"data"`
}

// NATSPublisher 把状态变化发布到 NATS，供旁路消费（回放、监控等）
type NATSPublisher struct {
	conn   publisher
	nc     *nats.Conn
	prefix string
	logger *logger.Logger
}

// ConnectNATS 连接 NATS 并返回发布器
func ConnectNATS(url, prefix string, log *logger.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = logger.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("futures-sim"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	p := newNATSPublisher(nc, prefix, log)
	p.nc = nc
	log.Info("NATS publisher connected", zap.String("url", url), zap.String("prefix", p.prefix))
	return p, nil
}

func newNATSPublisher(conn publisher, prefix string, log *logger.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logger: log}
}

// Subject 会话对应的主题
func (p *NATSPublisher) Subject(sessionID string) string {
	return p.prefix + "." + sessionID
}

func (p *NATSPublisher) Notify(sessionID string, snap engine.Snapshot) {
	data, err := json.Marshal(StateEvent{Type: "state", SessionID: sessionID, Data: snap})
	if err != nil {
		p.logger.LogError(err, zap.String("session", sessionID))
		return
	}
	if err := p.conn.Publish(p.Subject(sessionID), data); err != nil {
		p.logger.Warn("NATS publish failed", zap.String("session", sessionID), zap.Error(err))
	}
}

// Close 先刷出缓冲再断开
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
