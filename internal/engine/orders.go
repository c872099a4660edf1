package engine

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"futures-sim-go/inventory"
	"futures-sim-go/market"
	"futures-sim-go/order"
	"futures-sim-go/risk"
)

// PlaceOrderRequest 下单请求
type PlaceOrderRequest struct {
	Symbol string       `json:"symbol"`
	Side   order.Side   `json:"side"`
	Effect order.Effect `json:"effect"`
	Price  float64      `json:"price"`
	Qty    int          `json:"qty"`
}

// OrderResult 下单结果，被拒时 OK 为 false 并给出原因
type OrderResult struct {
	OK      bool   `json:"ok"`
	OrderID int64  `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CloseRequest 手动平仓请求
type CloseRequest struct {
	Symbol string              `json:"symbol"`
	Side   inventory.Direction `json:"side"`
	Qty    int                 `json:"qty"`
}

// PlaceOrder 校验、登记委托并尝试立即成交，之后评估风险。
// 被拒的委托不改变任何状态。
func (g *Game) PlaceOrder(req PlaceOrderRequest) OrderResult {
	q, spec, err := g.validateOrder(req)
	if err != nil {
		g.rec.OrderRejected(risk.Reason(err))
		g.logger.LogOrder("rejected", 0,
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)),
			zap.String("effect", string(req.Effect)),
			zap.Float64("price", req.Price),
			zap.Int("qty", req.Qty),
			zap.String("reason", err.Error()))
		return OrderResult{OK: false, Error: err.Error()}
	}

	px := q.ClampToBand(spec.Round(req.Price))
	g.lastOrderID++
	o := order.Order{
		ID:        g.lastOrderID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Effect:    req.Effect,
		Price:     px,
		Qty:       req.Qty,
		Status:    order.StatusNew,
		CreatedAt: g.now(),
	}
	if err := g.book.Add(o); err != nil {
		// 编号单调递增，正常不会重复
		g.logger.LogError(err, zap.Int64("order_id", o.ID))
		return OrderResult{OK: false, Error: err.Error()}
	}
	g.rec.OrderPlaced(o.Symbol)
	g.appendLog("委托提交", fmt.Sprintf("%s %s/%s %d手 @ %.2f", o.Symbol, o.Side, o.Effect, o.Qty, o.Price))
	g.logger.LogOrder("placed", o.ID,
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.String("effect", string(o.Effect)),
		zap.Float64("price", o.Price),
		zap.Int("qty", o.Qty))

	if order.IsMarketable(o, q.Last) {
		g.fill(o, q.Last)
	}
	g.checkRisk()
	return OrderResult{OK: true, OrderID: o.ID}
}

// validateOrder 下单前检查。保证金按原始委托价计算，入簿价格另行取整压入涨跌停。
func (g *Game) validateOrder(req PlaceOrderRequest) (*market.Quote, market.Spec, error) {
	q, ok := g.quotes[req.Symbol]
	if !ok {
		return nil, market.Spec{}, risk.ErrUnknownSymbol
	}
	spec := g.specs[q.Code]
	if req.Qty <= 0 {
		return nil, spec, risk.ErrInvalidQty
	}
	if !req.Side.Valid() {
		return nil, spec, risk.ErrInvalidSide
	}
	if !req.Effect.Valid() {
		return nil, spec, risk.ErrInvalidEffect
	}
	if !(req.Price > 0) || math.IsInf(req.Price, 0) {
		return nil, spec, risk.ErrInvalidPrice
	}

	switch req.Effect {
	case order.EffectClose:
		pos, ok := g.ledger.Position(req.Symbol, inventory.CloseDirection(req.Side))
		if !ok || pos.Qty < req.Qty {
			return nil, spec, risk.ErrPositionNotEnough
		}
	case order.EffectOpen:
		need := spec.MarginFor(req.Price, req.Qty)
		if g.ledger.Available(g) < need {
			return nil, spec, risk.ErrMarginNotEnough
		}
	}
	return q, spec, nil
}

// fill 按 px 成交一笔委托。平仓委托对应持仓已不存在时改为撤销。
func (g *Game) fill(o order.Order, px float64) bool {
	spec := g.specs[g.quotes[o.Symbol].Code]
	tr, ok := g.ledger.ApplyFill(o, px, spec, g.now())
	if !ok {
		if err := g.book.Transition(o.ID, order.StatusCancelled); err != nil {
			g.logger.LogError(err, zap.Int64("order_id", o.ID))
			return false
		}
		g.rec.OrdersCancelled(1)
		g.appendLog("委托撤销", fmt.Sprintf("#%d %s 无可平持仓，已撤销", o.ID, o.Symbol))
		g.logger.LogOrder("cancelled_no_position", o.ID, zap.String("symbol", o.Symbol))
		return false
	}
	if err := g.book.Transition(o.ID, order.StatusFilled); err != nil {
		g.logger.LogError(err, zap.Int64("order_id", o.ID))
	}
	g.rec.OrderFilled(tr)
	g.appendLog("成交回报", fmt.Sprintf("%s %s/%s %d手 @ %.2f，手续费 %.2f", tr.Symbol, tr.Side, tr.Effect, tr.Qty, tr.Price, tr.Fee))
	g.logger.LogTrade("fill", tr.ID,
		zap.Int64("order_id", o.ID),
		zap.String("symbol", tr.Symbol),
		zap.Float64("price", tr.Price),
		zap.Int("qty", tr.Qty),
		zap.Float64("fee", tr.Fee))
	g.risk.Evaluate(g.account())
	return true
}

// CancelAllOrders 撤销全部未成交委托，返回撤单数；没有可撤的什么也不做
func (g *Game) CancelAllOrders() int {
	n := g.book.CancelAll()
	if n == 0 {
		return 0
	}
	g.rec.OrdersCancelled(n)
	g.appendLog("撤单", fmt.Sprintf("已撤销 %d 笔未成交委托", n))
	g.logger.Info("Orders cancelled", zap.Int("count", n))
	return n
}

// ClosePosition 按最新价平掉 min(qty, 持仓) 手。
// qty 非正、合约未知或无此持仓时什么也不做，返回 false。
func (g *Game) ClosePosition(req CloseRequest) bool {
	last, spec, ok := g.Mark(req.Symbol)
	if !ok || req.Qty <= 0 || !req.Side.Valid() {
		return false
	}
	tr, ok := g.ledger.ClosePosition(req.Symbol, req.Side, req.Qty, last, spec, inventory.CloseManual, g.now())
	if !ok {
		return false
	}
	g.rec.OrderFilled(tr)
	g.appendLog("手动平仓", fmt.Sprintf("%s %s 平 %d手 @ %.2f", req.Symbol, req.Side, tr.Qty, last))
	g.logger.LogTrade("manual_close", tr.ID,
		zap.String("symbol", req.Symbol),
		zap.String("direction", string(req.Side)),
		zap.Int("qty", tr.Qty),
		zap.Float64("price", last))
	g.checkRisk()
	return true
}
