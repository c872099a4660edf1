package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"futures-sim-go/infrastructure/logger"
	"futures-sim-go/infrastructure/monitor"
	"futures-sim-go/internal/session"
)

// Config HTTP 服务配置
type Config struct {
	Addr             string        `yaml:"addr" validate:"required"`
	MetricsAddr      string        `yaml:"metricsAddr"`
	AllowedOrigins   []string      `yaml:"allowedOrigins"`
	CookieName       string        `yaml:"cookieName"`
	CookieMaxAge     time.Duration `yaml:"cookieMaxAge"`
	AutoTickInterval time.Duration `yaml:"autoTickInterval"`
	WSSendBuffer     int           `yaml:"wsSendBuffer" validate:"gte=0"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Addr:        ":8000",
		MetricsAddr: ":9100",
		AllowedOrigins: []string{
			"http://127.0.0.1:5173",
			"http://localhost:5173",
		},
		CookieName:   "sid",
		CookieMaxAge: 30 * 24 * time.Hour,
		WSSendBuffer: 64,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CookieName == "" {
		c.CookieName = def.CookieName
	}
	if c.CookieMaxAge <= 0 {
		c.CookieMaxAge = def.CookieMaxAge
	}
	if c.WSSendBuffer <= 0 {
		c.WSSendBuffer = def.WSSendBuffer
	}
	return c
}

// Server REST + WebSocket 入口
type Server struct {
	cfg      Config
	mgr      *session.Manager
	mon      *monitor.Monitor
	logger   *logger.Logger
	hub      *Hub
	validate *validator.Validate
	engine   *gin.Engine
}

// Option 可选参数
type Option func(*Server)

func WithMonitor(m *monitor.Monitor) Option {
	return func(s *Server) { s.mon = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHub 使用外部创建的 Hub，便于先把它交给会话管理器做通知
func WithHub(h *Hub) Option {
	return func(s *Server) { s.hub = h }
}

// New 创建服务。会话管理器的通知需接到 Hub()，见 cmd/server。
func New(cfg Config, mgr *session.Manager, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg.withDefaults(),
		mgr:      mgr,
		logger:   logger.NewNop(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub(s.cfg.WSSendBuffer, s.logger, s.mon)
	}
	s.engine = s.routes()
	return s
}

// Hub 返回 WebSocket 广播中心，实现 notify.Notifier
func (s *Server) Hub() *Hub { return s.hub }

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler { return s.engine }

// Close 断开全部 WebSocket 连接
func (s *Server) Close() {
	s.hub.CloseAll()
}

func (s *Server) routes() *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery(), s.requestLogger(), s.cors())

	g.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	api := g.Group("/api", s.metrics())
	{
		api.GET("/bootstrap", s.handleBootstrap)
		api.GET("/state", s.handleState)
		api.POST("/tick", s.handleTick)
		api.POST("/orders", s.handlePlaceOrder)
		api.POST("/cancel_all", s.handleCancelAll)
		api.POST("/close", s.handleClose)
		api.POST("/reset_player", s.handleResetPlayer)
		api.POST("/reset_market", s.handleResetMarket)
		api.POST("/reset_all", s.handleResetAll)
		api.GET("/export", s.handleExport)
		api.POST("/import", s.handleImport)
	}

	g.GET("/ws", s.handleWS)

	if s.mon != nil && s.cfg.MetricsAddr == "" {
		g.GET("/metrics", gin.WrapH(s.mon.Handler()))
	}
	return g
}

// sessionID 从 cookie 取会话 ID，缺失或非法时签发新的。
// 返回的 cookie 非 nil 表示需要下发。
func (s *Server) sessionID(r *http.Request) (string, *http.Cookie) {
	if ck, err := r.Cookie(s.cfg.CookieName); err == nil {
		if _, err := uuid.Parse(ck.Value); err == nil {
			return ck.Value, nil
		}
	}
	sid := session.NewID()
	return sid, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(s.cfg.CookieMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) session(c *gin.Context) string {
	sid, ck := s.sessionID(c.Request)
	if ck != nil {
		http.SetCookie(c.Writer, ck)
	}
	c.Set("sid", sid)
	return sid
}

// writeJSON 统一用 go-json 编码响应
func writeJSON(c *gin.Context, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.Data(status, "application/json; charset=utf-8", b)
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	s.logger.Warn("Request failed",
		zap.String("path", c.FullPath()),
		zap.String("session", c.GetString("sid")),
		zap.Error(err))
	writeJSON(c, status, gin.H{"ok": false, "error": err.Error()})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("cost", time.Since(start)))
	}
}

func (s *Server) metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.mon == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		action := c.FullPath()
		s.mon.RecordRESTRequest(action)
		s.mon.RecordRESTLatency(action, time.Since(start).Seconds())
		if c.Writer.Status() >= http.StatusBadRequest {
			s.mon.RecordRESTError(action)
		}
	}
}

// cors 允许配置中的前端来源携带 cookie 访问
func (s *Server) cors() gin.HandlerFunc {
	allowed := make(map[string]bool, len(s.cfg.AllowedOrigins))
	for _, o := range s.cfg.AllowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			c.Header("Access-Control-Allow-Headers", "origin, content-type, accept")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// checkOrigin WebSocket 握手来源检查，未配置来源时放行
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
