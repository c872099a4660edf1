package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"futures-sim-go/infrastructure/logger"
	"futures-sim-go/inventory"
	"futures-sim-go/market"
	"futures-sim-go/order"
	"futures-sim-go/risk"
)

// DefaultInitialCash 开局资金
const DefaultInitialCash = 200000.0

// orderIDBase 第一笔委托的编号为 orderIDBase+1
const orderIDBase = 1000

// Config 对局配置
type Config struct {
	InitialCash float64
	TicksPerDay int
	FeePerLot   float64
	Risk        risk.Config
	Catalog     market.Catalog
}

// DefaultConfig 默认对局配置
func DefaultConfig() Config {
	return Config{
		InitialCash: DefaultInitialCash,
		TicksPerDay: DefaultTicksPerDay,
		FeePerLot:   order.DefaultFeePerLot,
		Risk:        risk.DefaultConfig(),
		Catalog:     market.DefaultCatalog(),
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	var err error
	if c.InitialCash <= 0 {
		err = multierr.Append(err, errors.New("initial cash must be > 0"))
	}
	if c.TicksPerDay <= 0 {
		err = multierr.Append(err, errors.New("ticks per day must be > 0"))
	}
	if c.FeePerLot < 0 {
		err = multierr.Append(err, errors.New("fee per lot must be >= 0"))
	}
	if len(c.Catalog.Products) == 0 {
		err = multierr.Append(err, errors.New("catalog has no products"))
	}
	if len(c.Catalog.Months) == 0 {
		err = multierr.Append(err, errors.New("catalog has no contract months"))
	}
	if e := c.Risk.Thresholds.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("risk thresholds: %w", e))
	}
	return err
}

// Option 可选参数
type Option func(*Game)

// WithLogger 设置日志
func WithLogger(l *logger.Logger) Option {
	return func(g *Game) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithRecorder 设置指标接收方
func WithRecorder(r Recorder) Option {
	return func(g *Game) {
		if r != nil {
			g.rec = r
		}
	}
}

// WithNow 注入时间源，日志与成交时间戳均取自这里
func WithNow(now func() time.Time) Option {
	return func(g *Game) {
		if now != nil {
			g.now = now
		}
	}
}

// WithSeed 固定随机源种子，相同种子得到相同的行情轨迹
func WithSeed(seed1, seed2 uint64) Option {
	return func(g *Game) {
		g.pcg = rand.NewPCG(seed1, seed2)
	}
}

// Game 单个玩家的一局游戏：行情、撮合、账户、风控与时钟。
// 所有操作同步执行且互不交错，调用方负责串行化。
type Game struct {
	cfg Config

	pcg *rand.PCG
	rng *rand.Rand
	sim *market.Simulator

	specs  map[string]market.Spec
	quotes map[string]*market.Quote
	klines map[string][]market.Kline

	ledger *inventory.Ledger
	book   *order.Book
	risk   *risk.Controller
	clock  Clock
	log    *RoundLog

	lastOrderID int64

	now    func() time.Time
	logger *logger.Logger
	rec    Recorder
}

// New 开一局新游戏
func New(cfg Config, opts ...Option) (*Game, error) {
	g, err := newGame(cfg, opts...)
	if err != nil {
		return nil, err
	}
	g.generateSpecs()
	g.initMarket()
	g.logger.Info("Game created",
		zap.Int("products", len(cfg.Catalog.Products)),
		zap.Int("months", len(cfg.Catalog.Months)),
		zap.Float64("initial_cash", cfg.InitialCash))
	return g, nil
}

func newGame(cfg Config, opts ...Option) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid game config: %w", err)
	}
	g := &Game{
		cfg:         cfg,
		ledger:      inventory.NewLedger(cfg.InitialCash, order.FeeSchedule{PerLot: cfg.FeePerLot}),
		book:        order.NewBook(),
		risk:        risk.NewController(cfg.Risk),
		clock:       NewClock(cfg.TicksPerDay),
		log:         NewRoundLog(RoundLogCapacity),
		lastOrderID: orderIDBase,
		now:         time.Now,
		logger:      logger.NewNop(),
		rec:         NopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.pcg == nil {
		g.pcg = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	g.rng = rand.New(g.pcg)
	g.sim = market.NewSimulator(g.rng)
	g.risk.OnChange(g.onRiskChange)
	return g, nil
}

// generateSpecs 按品种表顺序为每个品种抽取规格
func (g *Game) generateSpecs() {
	g.specs = make(map[string]market.Spec, len(g.cfg.Catalog.Products))
	for _, p := range g.cfg.Catalog.Products {
		g.specs[p.Code] = market.NewSpec(g.rng)
	}
}

// initMarket 为全部合约生成开局行情，清空日K
func (g *Game) initMarket() {
	g.quotes = make(map[string]*market.Quote)
	g.klines = make(map[string][]market.Kline)
	for _, p := range g.cfg.Catalog.Products {
		for _, m := range g.cfg.Catalog.Months {
			sym := p.Code + m
			q := g.sim.Initialize(sym, p.Code, g.specs[p.Code])
			g.quotes[sym] = &q
		}
		g.klines[g.cfg.Catalog.MainContract(p.Code)] = []market.Kline{}
	}
}

// Mark 实现 inventory.Marks
func (g *Game) Mark(symbol string) (float64, market.Spec, bool) {
	q, ok := g.quotes[symbol]
	if !ok {
		return 0, market.Spec{}, false
	}
	spec, ok := g.specs[q.Code]
	return q.Last, spec, ok
}

// Config 当前配置
func (g *Game) Config() Config { return g.cfg }

// SetRiskConfig 热更新风控阈值与自动强平开关，下一次评估起生效
func (g *Game) SetRiskConfig(cfg risk.Config) error {
	if err := cfg.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid risk thresholds: %w", err)
	}
	g.cfg.Risk = cfg
	g.risk.SetConfig(cfg)
	return nil
}

// SetFeePerLot 更新每手手续费，对之后的成交生效
func (g *Game) SetFeePerLot(fee float64) error {
	if fee < 0 {
		return fmt.Errorf("fee per lot must be >= 0, got %v", fee)
	}
	g.cfg.FeePerLot = fee
	g.ledger.SetFeeSchedule(order.FeeSchedule{PerLot: fee})
	return nil
}

// Clock 当前时钟
func (g *Game) Clock() Clock { return g.clock }

// Quote 合约行情拷贝
func (g *Game) Quote(symbol string) (market.Quote, bool) {
	q, ok := g.quotes[symbol]
	if !ok {
		return market.Quote{}, false
	}
	return q.Clone(), true
}

// Spec 品种规格
func (g *Game) Spec(code string) (market.Spec, bool) {
	s, ok := g.specs[code]
	return s, ok
}

// Positions 当前持仓
func (g *Game) Positions() []inventory.Position { return g.ledger.Positions() }

// Orders 全部委托
func (g *Game) Orders() []order.Order { return g.book.List() }

// Trades 全部成交
func (g *Game) Trades() []order.Trade { return g.ledger.Trades() }

// RoundLog 全部回合日志
func (g *Game) RoundLog() []LogEntry { return g.log.Entries() }

// Account 按最新价汇总账户
func (g *Game) Account() inventory.Summary { return g.ledger.Summarize(g) }

// RiskLevel 按当前账户重新计算的风险等级，不改变缓存
func (g *Game) RiskLevel() risk.Level { return g.risk.Assess(g.account()).Level }

func (g *Game) appendLog(title, detail string) {
	g.log.Append(LogEntry{Title: title, Detail: detail, Time: g.now()})
}

func (g *Game) onRiskChange(a risk.Assessment) {
	g.appendLog("风险等级", fmt.Sprintf("%s → %s：%s", a.Prev, a.Level, a.Message))
	g.logger.LogRisk("level_change",
		zap.String("from", a.Prev.String()),
		zap.String("to", a.Level.String()),
		zap.Float64("ratio", finiteOr(a.Ratio, -1)))
	g.rec.RiskLevelChanged(a.Level)
}
