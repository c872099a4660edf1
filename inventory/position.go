package inventory

import (
	"futures-sim-go/order"
)

// Direction 持仓方向。
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Valid 是否合法的持仓方向。
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// Sign 多头 +1，空头 -1。
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// CloseSide 平掉该方向持仓时的委托方向。
func (d Direction) CloseSide() order.Side {
	if d == Short {
		return order.SideBuy
	}
	return order.SideSell
}

// OpenDirection 开仓委托对应的持仓方向：买开多，卖开空。
func OpenDirection(side order.Side) Direction {
	if side == order.SideSell {
		return Short
	}
	return Long
}

// CloseDirection 平仓委托要减少的持仓方向：卖平多，买平空。
func CloseDirection(side order.Side) Direction {
	if side == order.SideSell {
		return Long
	}
	return Short
}

// Position 单合约单方向持仓。同一 (合约, 方向) 最多一条。
type Position struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"side"`
	Qty       int       `json:"qty"`
	AvgOpen   float64   `json:"avg_open"`
	Mult      int       `json:"mult"`
	Margin    float64   `json:"margin"`
}

// Add 加仓，按成交量加权更新开仓均价。
func (p *Position) Add(qty int, price float64) {
	totalValue := p.AvgOpen*float64(p.Qty) + price*float64(qty)
	p.Qty += qty
	if p.Qty != 0 {
		p.AvgOpen = totalValue / float64(p.Qty)
	} else {
		p.AvgOpen = 0
	}
}

// PnLAt 按价格 px 计算 qty 手的盈亏。
func (p Position) PnLAt(px float64, qty int) float64 {
	return (px - p.AvgOpen) * p.Direction.Sign() * float64(p.Mult) * float64(qty)
}
