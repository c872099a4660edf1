package engine

import (
	"math"

	"github.com/markcheno/go-talib"

	"futures-sim-go/inventory"
	"futures-sim-go/market"
	"futures-sim-go/order"
	"futures-sim-go/risk"
)

const (
	// SnapshotTrades 快照里带出的最近成交笔数
	SnapshotTrades = 100
	// SMAPeriod 均线周期
	SMAPeriod = 20
)

// ProductInfo 品种信息
type ProductInfo struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	MainContract string `json:"main_contract"`
}

// Bootstrap 客户端初始化所需的静态信息
type Bootstrap struct {
	Products []ProductInfo          `json:"products"`
	Specs    map[string]market.Spec `json:"specs"`
}

// QuoteView 行情及均线
type QuoteView struct {
	market.Quote
	SMA *float64 `json:"sma20"`
}

// AccountView 账户汇总与风险状态。
// 没有保证金占用时 MarginRatio 为 nil。
type AccountView struct {
	inventory.Summary
	MarginRatio *float64   `json:"margin_ratio"`
	RiskLevel   risk.Level `json:"risk_level"`
	RiskMessage string     `json:"risk_message"`
}

// PositionView 持仓及按最新价计算的浮盈与保证金
type PositionView struct {
	inventory.Position
	Last       float64 `json:"last"`
	Unrealized float64 `json:"unrealized_pnl"`
	LiveMargin float64 `json:"live_margin"`
}

// Snapshot 对外推送的完整状态
type Snapshot struct {
	Tick      int                       `json:"tick"`
	Day       int                       `json:"day"`
	Market    map[string]QuoteView      `json:"market"`
	Account   AccountView               `json:"account"`
	Positions []PositionView            `json:"positions"`
	Orders    []order.Order             `json:"orders"`
	Trades    []order.Trade             `json:"trades"`
	RoundLog  []LogEntry                `json:"round_log"`
	DayKlines map[string][]market.Kline `json:"day_klines"`
}

// Bootstrap 品种表与规格
func (g *Game) Bootstrap() Bootstrap {
	b := Bootstrap{
		Products: make([]ProductInfo, 0, len(g.cfg.Catalog.Products)),
		Specs:    make(map[string]market.Spec, len(g.specs)),
	}
	for _, p := range g.cfg.Catalog.Products {
		b.Products = append(b.Products, ProductInfo{
			Code:         p.Code,
			Name:         p.Name,
			MainContract: g.cfg.Catalog.MainContract(p.Code),
		})
	}
	for code, s := range g.specs {
		b.Specs[code] = s
	}
	return b
}

// Snapshot 生成当前状态快照。风险等级按当前数据重新计算，不读缓存。
func (g *Game) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:      g.clock.Tick,
		Day:       g.clock.Day(),
		Market:    make(map[string]QuoteView, len(g.cfg.Catalog.Products)),
		Orders:    g.book.List(),
		Trades:    g.ledger.RecentTrades(SnapshotTrades),
		RoundLog:  g.log.Recent(RoundLogView),
		DayKlines: make(map[string][]market.Kline, len(g.klines)),
	}
	for _, p := range g.cfg.Catalog.Products {
		sym := g.cfg.Catalog.MainContract(p.Code)
		q := g.quotes[sym].Clone()
		snap.Market[sym] = QuoteView{Quote: q, SMA: lastSMA(q.History, SMAPeriod)}
	}

	sum := g.ledger.Summarize(g)
	a := g.risk.Assess(g.account())
	snap.Account = AccountView{
		Summary:     sum,
		RiskLevel:   a.Level,
		RiskMessage: a.Message,
	}
	if !math.IsInf(a.Ratio, 0) && !math.IsNaN(a.Ratio) {
		r := a.Ratio
		snap.Account.MarginRatio = &r
	}

	positions := g.ledger.Positions()
	snap.Positions = make([]PositionView, 0, len(positions))
	for _, p := range positions {
		last, _, _ := g.Mark(p.Symbol)
		snap.Positions = append(snap.Positions, PositionView{
			Position:   p,
			Last:       last,
			Unrealized: p.PnLAt(last, p.Qty),
			LiveMargin: inventory.LiveMargin(p, g),
		})
	}

	for sym, ks := range g.klines {
		snap.DayKlines[sym] = append([]market.Kline{}, ks...)
	}
	return snap
}

// lastSMA 价格序列最后一个点的简单均线，数据不足时为 nil
func lastSMA(series []float64, period int) *float64 {
	if len(series) < period {
		return nil
	}
	sma := talib.Sma(series, period)
	v := sma[len(sma)-1]
	return &v
}

func finiteOr(v, fallback float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fallback
	}
	return v
}
