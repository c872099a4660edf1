package inventory

import (
	"fmt"
	"time"

	"futures-sim-go/market"
	"futures-sim-go/order"
)

// CloseReason 非委托平仓的来源，同时作为成交号前缀。
type CloseReason string

const (
	CloseManual CloseReason = "C"
	CloseForced CloseReason = "L"
)

// Ledger 账户：现金、已实现盈亏、手续费、持仓与成交。
// 未实现盈亏和保证金不落地，每次按最新价重新计算。
// 非并发安全，由调用方串行化。
type Ledger struct {
	Cash     float64
	Realized float64
	Fees     float64

	positions []*Position
	trades    []order.Trade
	fee       order.FeeSchedule
}

// NewLedger 创建账户。
func NewLedger(cash float64, fee order.FeeSchedule) *Ledger {
	return &Ledger{Cash: cash, fee: fee}
}

// SetFeeSchedule 更换费率，对之后的成交生效。
func (l *Ledger) SetFeeSchedule(fee order.FeeSchedule) {
	l.fee = fee
}

// Reset 账户回到初始资金，清空持仓与成交。
func (l *Ledger) Reset(cash float64) {
	l.Cash = cash
	l.Realized = 0
	l.Fees = 0
	l.positions = nil
	l.trades = nil
}

// ClearTrades 清空成交记录，持仓与资金不变。
func (l *Ledger) ClearTrades() {
	l.trades = nil
}

func (l *Ledger) find(symbol string, dir Direction) (int, *Position) {
	for i, p := range l.positions {
		if p.Symbol == symbol && p.Direction == dir {
			return i, p
		}
	}
	return -1, nil
}

// Position 查询持仓。
func (l *Ledger) Position(symbol string, dir Direction) (Position, bool) {
	_, p := l.find(symbol, dir)
	if p == nil {
		return Position{}, false
	}
	return *p, true
}

// Positions 按建仓顺序返回持仓拷贝。
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	return out
}

// HasPositions 是否还有持仓。
func (l *Ledger) HasPositions() bool {
	return len(l.positions) > 0
}

// Trades 返回全部成交拷贝。
func (l *Ledger) Trades() []order.Trade {
	return append([]order.Trade(nil), l.trades...)
}

// RecentTrades 返回最近 n 笔成交。
func (l *Ledger) RecentTrades(n int) []order.Trade {
	if n <= 0 || len(l.trades) <= n {
		return l.Trades()
	}
	return append([]order.Trade(nil), l.trades[len(l.trades)-n:]...)
}

// ApplyFill 委托按 px 成交。
// 平仓委托在成交时对应持仓已不存在的，返回 false 且账户不变，由调用方撤销该委托。
func (l *Ledger) ApplyFill(o order.Order, px float64, spec market.Spec, ts time.Time) (order.Trade, bool) {
	if o.Effect == order.EffectClose {
		dir := CloseDirection(o.Side)
		i, p := l.find(o.Symbol, dir)
		if p == nil {
			return order.Trade{}, false
		}
		// 持仓在挂单期间被减少时只平剩余手数，手续费也按实际平掉的手数收
		q := min(o.Qty, p.Qty)
		fee := l.fee.FeeFor(q)
		l.reduce(i, p, q, px, fee, spec)
		return l.record(order.FillTradeID(o.ID), o.Symbol, o.Side, order.EffectClose, px, q, fee, ts), true
	}

	fee := l.fee.FeeFor(o.Qty)
	dir := OpenDirection(o.Side)
	_, p := l.find(o.Symbol, dir)
	if p == nil {
		p = &Position{Symbol: o.Symbol, Direction: dir, Mult: spec.Mult}
		l.positions = append(l.positions, p)
	}
	p.Add(o.Qty, px)
	p.Margin = spec.MarginFor(px, p.Qty)
	l.Cash -= fee
	l.Fees += fee
	return l.record(order.FillTradeID(o.ID), o.Symbol, o.Side, order.EffectOpen, px, o.Qty, fee, ts), true
}

// ClosePosition 不经委托直接按 px 平掉 min(qty, 持仓) 手。
// qty <= 0 或持仓不存在时什么也不做，返回 false。
func (l *Ledger) ClosePosition(symbol string, dir Direction, qty int, px float64, spec market.Spec, reason CloseReason, ts time.Time) (order.Trade, bool) {
	if qty <= 0 {
		return order.Trade{}, false
	}
	i, p := l.find(symbol, dir)
	if p == nil {
		return order.Trade{}, false
	}
	q := min(qty, p.Qty)
	fee := l.fee.FeeFor(q)
	l.reduce(i, p, q, px, fee, spec)
	id := fmt.Sprintf("%s%d", reason, len(l.trades)+1)
	return l.record(id, symbol, dir.CloseSide(), order.EffectClose, px, q, fee, ts), true
}

// reduce 平掉 q 手：盈亏计入已实现和现金，扣手续费，剩余持仓按 px 重算保证金，归零即删除。
func (l *Ledger) reduce(i int, p *Position, q int, px, fee float64, spec market.Spec) {
	pnl := p.PnLAt(px, q)
	l.Cash += pnl - fee
	l.Realized += pnl
	l.Fees += fee
	p.Qty -= q
	if p.Qty == 0 {
		l.positions = append(l.positions[:i], l.positions[i+1:]...)
		return
	}
	p.Margin = spec.MarginFor(px, p.Qty)
}

func (l *Ledger) record(id, symbol string, side order.Side, effect order.Effect, px float64, qty int, fee float64, ts time.Time) order.Trade {
	t := order.Trade{
		ID:     id,
		Symbol: symbol,
		Side:   side,
		Effect: effect,
		Price:  px,
		Qty:    qty,
		Fee:    fee,
		Time:   ts,
	}
	l.trades = append(l.trades, t)
	return t
}

// LedgerState 账户的可序列化形式。
type LedgerState struct {
	Cash      float64       `json:"cash"`
	Realized  float64       `json:"realized_pnl"`
	Fees      float64       `json:"fees"`
	Positions []Position    `json:"positions"`
	Trades    []order.Trade `json:"trades"`
}

// Export 导出账户。
func (l *Ledger) Export() LedgerState {
	return LedgerState{
		Cash:      l.Cash,
		Realized:  l.Realized,
		Fees:      l.Fees,
		Positions: l.Positions(),
		Trades:    l.Trades(),
	}
}

// Restore 从导出数据恢复账户，持仓重复或非法时报错且账户不变。
func (l *Ledger) Restore(s LedgerState) error {
	positions := make([]*Position, 0, len(s.Positions))
	seen := make(map[string]bool, len(s.Positions))
	for _, p := range s.Positions {
		if !p.Direction.Valid() || p.Qty <= 0 {
			return fmt.Errorf("invalid position %s/%s qty=%d", p.Symbol, p.Direction, p.Qty)
		}
		key := p.Symbol + "/" + string(p.Direction)
		if seen[key] {
			return fmt.Errorf("duplicate position %s", key)
		}
		seen[key] = true
		cp := p
		positions = append(positions, &cp)
	}
	l.Cash = s.Cash
	l.Realized = s.Realized
	l.Fees = s.Fees
	l.positions = positions
	l.trades = append([]order.Trade(nil), s.Trades...)
	return nil
}
