package inventory

import "futures-sim-go/market"

// Marks 提供合约最新价与品种规格。
type Marks interface {
	Mark(symbol string) (last float64, spec market.Spec, ok bool)
}

// UnrealizedPnL 按最新价计算全部持仓浮动盈亏。
func (l *Ledger) UnrealizedPnL(m Marks) float64 {
	total := 0.0
	for _, p := range l.positions {
		last, _, ok := m.Mark(p.Symbol)
		if !ok {
			continue
		}
		total += p.PnLAt(last, p.Qty)
	}
	return total
}

// LiveMargin 按最新价计算单个持仓占用的保证金。
func LiveMargin(p Position, m Marks) float64 {
	last, spec, ok := m.Mark(p.Symbol)
	if !ok {
		return 0
	}
	return spec.MarginFor(last, p.Qty)
}

// MarginUsed 按最新价计算占用保证金总额。
func (l *Ledger) MarginUsed(m Marks) float64 {
	total := 0.0
	for _, p := range l.positions {
		total += LiveMargin(*p, m)
	}
	return total
}

// Equity 权益 = 现金 + 浮动盈亏。
func (l *Ledger) Equity(m Marks) float64 {
	return l.Cash + l.UnrealizedPnL(m)
}

// Available 可用 = 权益 - 占用保证金。
func (l *Ledger) Available(m Marks) float64 {
	return l.Equity(m) - l.MarginUsed(m)
}

// Summary 账户汇总。
type Summary struct {
	Cash       float64 `json:"cash"`
	Equity     float64 `json:"equity"`
	Available  float64 `json:"avail"`
	MarginUsed float64 `json:"margin_used"`
	Unrealized float64 `json:"unrealized_pnl"`
	Realized   float64 `json:"realized_pnl"`
	Fees       float64 `json:"fees"`
}

// Summarize 一次性计算账户汇总，各项基于同一组行情。
func (l *Ledger) Summarize(m Marks) Summary {
	unrealized := l.UnrealizedPnL(m)
	margin := l.MarginUsed(m)
	equity := l.Cash + unrealized
	return Summary{
		Cash:       l.Cash,
		Equity:     equity,
		Available:  equity - margin,
		MarginUsed: margin,
		Unrealized: unrealized,
		Realized:   l.Realized,
		Fees:       l.Fees,
	}
}
