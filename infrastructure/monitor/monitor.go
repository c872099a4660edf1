package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"futures-sim-go/order"
	"futures-sim-go/risk"
)

// Monitor Prometheus监控指标收集器，实现 engine.Recorder
type Monitor struct {
	registry *prometheus.Registry
	factory  promauto.Factory
	cfg      Config

	// 行情
	ticksTotal prometheus.Counter

	// 订单指标
	ordersPlaced    *prometheus.CounterVec
	ordersRejected  *prometheus.CounterVec
	ordersFilled    prometheus.Counter
	ordersCancelled prometheus.Counter

	// 交易指标
	tradesTotal  *prometheus.CounterVec
	tradedVolume prometheus.Counter
	feesTotal    prometheus.Counter

	// 风控指标
	riskLevelChanges  *prometheus.CounterVec
	liquidations      prometheus.Counter
	liquidationAborts prometheus.Counter
	liquidatedLots    prometheus.Counter

	// 系统指标
	wsConnections prometheus.Gauge
	wsMessages    *prometheus.CounterVec
	restRequests  *prometheus.CounterVec
	restErrors    *prometheus.CounterVec
	restLatency   *prometheus.HistogramVec
}

// Config 监控配置
type Config struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "futsim",
		Subsystem: "game",
	}
}

// New 创建新的Monitor实例，指标注册在独立的 registry 上
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	m := &Monitor{
		registry: reg,
		factory:  factory,
		cfg:      cfg,

		ticksTotal: counter("ticks_total", "行情推进次数"),

		ordersPlaced:    counterVec("orders_placed_total", "委托提交总数", "symbol"),
		ordersRejected:  counterVec("orders_rejected_total", "委托拒绝总数", "reason"),
		ordersFilled:    counter("orders_filled_total", "成交回报总数"),
		ordersCancelled: counter("orders_cancelled_total", "委托撤销总数"),

		tradesTotal:  counterVec("trades_total", "成交笔数", "effect"),
		tradedVolume: counter("traded_volume_total", "累计成交手数"),
		feesTotal:    counter("fees_total", "累计手续费"),

		riskLevelChanges:  counterVec("risk_level_changes_total", "风险等级切换次数（按目标等级）", "level"),
		liquidations:      counter("liquidations_total", "强平流程执行次数"),
		liquidationAborts: counter("liquidation_aborts_total", "强平达到迭代上限中止次数"),
		liquidatedLots:    counter("liquidated_lots_total", "强平手数"),

		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_connections",
			Help:      "当前WebSocket连接数",
		}),
		wsMessages:   counterVec("ws_messages_total", "WebSocket收到的消息数", "type"),
		restRequests: counterVec("rest_requests_total", "REST请求总数", "action"),
		restErrors:   counterVec("rest_errors_total", "REST错误总数", "action"),
		restLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rest_latency_seconds",
				Help:      "REST请求延迟（秒）",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action"},
		),
	}
	return m
}

// TickAdvanced 行情推进
func (m *Monitor) TickAdvanced() {
	m.ticksTotal.Inc()
}

// 订单相关方法
func (m *Monitor) OrderPlaced(symbol string) {
	m.ordersPlaced.WithLabelValues(symbol).Inc()
}

func (m *Monitor) OrderRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// OrderFilled 委托成交、手动平仓与强平都会走到这里
func (m *Monitor) OrderFilled(t order.Trade) {
	m.ordersFilled.Inc()
	m.tradesTotal.WithLabelValues(string(t.Effect)).Inc()
	m.tradedVolume.Add(float64(t.Qty))
	m.feesTotal.Add(t.Fee)
}

func (m *Monitor) OrdersCancelled(n int) {
	m.ordersCancelled.Add(float64(n))
}

// 风控相关方法
func (m *Monitor) Liquidation(lots int, aborted bool) {
	m.liquidations.Inc()
	m.liquidatedLots.Add(float64(lots))
	if aborted {
		m.liquidationAborts.Inc()
	}
}

func (m *Monitor) RiskLevelChanged(level risk.Level) {
	m.riskLevelChanges.WithLabelValues(level.String()).Inc()
}

// RegisterSessions 注册当前会话数，采集时回调
func (m *Monitor) RegisterSessions(count func() int) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.cfg.Namespace,
		Subsystem: m.cfg.Subsystem,
		Name:      "sessions_active",
		Help:      "内存中的会话数",
	}, func() float64 { return float64(count()) })
}

// 系统相关方法
func (m *Monitor) WSConnected() {
	m.wsConnections.Inc()
}

func (m *Monitor) WSDisconnected() {
	m.wsConnections.Dec()
}

func (m *Monitor) RecordWSMessage(msgType string) {
	m.wsMessages.WithLabelValues(msgType).Inc()
}

func (m *Monitor) RecordRESTRequest(action string) {
	m.restRequests.WithLabelValues(action).Inc()
}

func (m *Monitor) RecordRESTError(action string) {
	m.restErrors.WithLabelValues(action).Inc()
}

func (m *Monitor) RecordRESTLatency(action string, seconds float64) {
	m.restLatency.WithLabelValues(action).Observe(seconds)
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
