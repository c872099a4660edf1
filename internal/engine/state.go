package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"futures-sim-go/inventory"
	"futures-sim-go/market"
	"futures-sim-go/order"
	"futures-sim-go/risk"
)

// StateVersion 导出格式版本
const StateVersion = 1

// State 一局游戏的完整可序列化状态，包括随机源。
// 从 State 恢复后继续推进，与不中断运行的结果一致。
type State struct {
	Version     int                       `json:"version"`
	RNG         []byte                    `json:"rng"`
	Clock       Clock                     `json:"clock"`
	LastOrderID int64                     `json:"last_order_id"`
	InitialCash float64                   `json:"initial_cash"`
	FeePerLot   float64                   `json:"fee_per_lot"`
	Products    []market.Product          `json:"products"`
	Months      []string                  `json:"months"`
	Specs       map[string]market.Spec    `json:"specs"`
	Quotes      map[string]market.Quote   `json:"quotes"`
	Ledger      inventory.LedgerState     `json:"ledger"`
	Orders      []order.Order             `json:"orders"`
	RoundLog    []LogEntry                `json:"round_log"`
	DayKlines   map[string][]market.Kline `json:"day_klines"`
	RiskLevel   risk.Level                `json:"risk_level"`
}

// Export 导出完整状态
func (g *Game) Export() (State, error) {
	rng, err := g.pcg.MarshalBinary()
	if err != nil {
		return State{}, fmt.Errorf("marshal rng: %w", err)
	}
	st := State{
		Version:     StateVersion,
		RNG:         rng,
		Clock:       g.clock,
		LastOrderID: g.lastOrderID,
		InitialCash: g.cfg.InitialCash,
		FeePerLot:   g.cfg.FeePerLot,
		Products:    append([]market.Product(nil), g.cfg.Catalog.Products...),
		Months:      append([]string(nil), g.cfg.Catalog.Months...),
		Specs:       make(map[string]market.Spec, len(g.specs)),
		Quotes:      make(map[string]market.Quote, len(g.quotes)),
		Ledger:      g.ledger.Export(),
		Orders:      g.book.List(),
		RoundLog:    g.log.Entries(),
		DayKlines:   make(map[string][]market.Kline, len(g.klines)),
		RiskLevel:   g.risk.Level(),
	}
	for code, s := range g.specs {
		st.Specs[code] = s
	}
	for sym, q := range g.quotes {
		st.Quotes[sym] = q.Clone()
	}
	for sym, ks := range g.klines {
		st.DayKlines[sym] = append([]market.Kline{}, ks...)
	}
	return st, nil
}

// Validate 检查导出数据的完整性
func (st State) Validate() error {
	if st.Version != StateVersion {
		return fmt.Errorf("unsupported state version %d", st.Version)
	}
	if len(st.RNG) == 0 {
		return errors.New("missing rng state")
	}
	if st.Clock.TicksPerDay <= 0 || st.Clock.Tick < 0 {
		return fmt.Errorf("invalid clock %+v", st.Clock)
	}
	if len(st.Products) == 0 || len(st.Months) == 0 {
		return errors.New("empty catalog")
	}
	for _, p := range st.Products {
		spec, ok := st.Specs[p.Code]
		if !ok {
			return fmt.Errorf("missing spec for %s", p.Code)
		}
		if spec.Tick <= 0 || spec.Mult <= 0 {
			return fmt.Errorf("invalid spec for %s", p.Code)
		}
		for _, m := range st.Months {
			q, ok := st.Quotes[p.Code+m]
			if !ok {
				return fmt.Errorf("missing quote for %s", p.Code+m)
			}
			if q.Code != p.Code {
				return fmt.Errorf("quote %s has code %s", p.Code+m, q.Code)
			}
		}
	}
	for _, o := range st.Orders {
		if _, ok := st.Quotes[o.Symbol]; !ok {
			return fmt.Errorf("order %d references unknown symbol %s", o.ID, o.Symbol)
		}
		if o.ID > st.LastOrderID {
			return fmt.Errorf("order %d beyond last order id %d", o.ID, st.LastOrderID)
		}
	}
	for _, p := range st.Ledger.Positions {
		if _, ok := st.Quotes[p.Symbol]; !ok {
			return fmt.Errorf("position references unknown symbol %s", p.Symbol)
		}
	}
	return nil
}

// Restore 用导出数据重建一局游戏。cfg 提供风控参数，其余以 st 为准。
func Restore(cfg Config, st State, opts ...Option) (*Game, error) {
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid state: %w", err)
	}
	cfg.InitialCash = st.InitialCash
	cfg.FeePerLot = st.FeePerLot
	cfg.TicksPerDay = st.Clock.TicksPerDay
	cfg.Catalog = market.Catalog{
		Products: append([]market.Product(nil), st.Products...),
		Months:   append([]string(nil), st.Months...),
	}
	g, err := newGame(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := g.load(st); err != nil {
		return nil, err
	}
	g.logger.Info("Game restored",
		zap.Int("tick", st.Clock.Tick),
		zap.Int64("last_order_id", st.LastOrderID),
		zap.Int("positions", len(st.Ledger.Positions)))
	return g, nil
}

func (g *Game) load(st State) error {
	pcg := &rand.PCG{}
	if err := pcg.UnmarshalBinary(st.RNG); err != nil {
		return fmt.Errorf("unmarshal rng: %w", err)
	}
	if err := g.ledger.Restore(st.Ledger); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	if err := g.book.Reset(st.Orders); err != nil {
		return fmt.Errorf("restore orders: %w", err)
	}

	g.pcg = pcg
	g.rng = rand.New(pcg)
	g.sim = market.NewSimulator(g.rng)

	g.specs = make(map[string]market.Spec, len(st.Specs))
	for code, s := range st.Specs {
		g.specs[code] = s
	}
	g.quotes = make(map[string]*market.Quote, len(st.Quotes))
	for sym, q := range st.Quotes {
		cp := q.Clone()
		g.quotes[sym] = &cp
	}
	g.klines = make(map[string][]market.Kline, len(g.cfg.Catalog.Products))
	for _, p := range g.cfg.Catalog.Products {
		sym := g.cfg.Catalog.MainContract(p.Code)
		g.klines[sym] = append([]market.Kline{}, st.DayKlines[sym]...)
	}

	g.clock = st.Clock
	g.lastOrderID = st.LastOrderID
	g.log.Reset(st.RoundLog)
	g.risk.Restore(st.RiskLevel)
	return nil
}
