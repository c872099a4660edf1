package engine

import (
	"fmt"

	"go.uber.org/zap"

	"futures-sim-go/inventory"
	"futures-sim-go/risk"
)

// riskAccount 把 Game 暴露给风控，所有数值按最新价实时计算
type riskAccount struct {
	g *Game
}

func (g *Game) account() riskAccount { return riskAccount{g: g} }

func (a riskAccount) Equity() float64     { return a.g.ledger.Equity(a.g) }
func (a riskAccount) MarginUsed() float64 { return a.g.ledger.MarginUsed(a.g) }

func (a riskAccount) Exposures() []risk.Exposure {
	positions := a.g.ledger.Positions()
	out := make([]risk.Exposure, 0, len(positions))
	for _, p := range positions {
		out = append(out, risk.Exposure{
			Symbol:    p.Symbol,
			Direction: p.Direction,
			Qty:       p.Qty,
			Margin:    inventory.LiveMargin(p, a.g),
		})
	}
	return out
}

func (a riskAccount) CancelOpenOrders() int {
	n := a.g.book.CancelAll()
	if n > 0 {
		a.g.rec.OrdersCancelled(n)
		a.g.appendLog("强平撤单", fmt.Sprintf("强平前撤销 %d 笔未成交委托", n))
	}
	return n
}

func (a riskAccount) ForceClose(e risk.Exposure) bool {
	return a.g.forceClose(e.Symbol, e.Direction)
}

// forceClose 以最新价强平 1 手，成交后立即重新评估风险
func (g *Game) forceClose(symbol string, dir inventory.Direction) bool {
	last, spec, ok := g.Mark(symbol)
	if !ok {
		return false
	}
	tr, ok := g.ledger.ClosePosition(symbol, dir, 1, last, spec, inventory.CloseForced, g.now())
	if !ok {
		return false
	}
	g.appendLog("强制平仓", fmt.Sprintf("%s %s 强平 1手 @ %.2f", symbol, dir, last))
	g.logger.LogTrade("forced_close", tr.ID,
		zap.String("symbol", symbol),
		zap.String("direction", string(dir)),
		zap.Float64("price", last))
	g.rec.OrderFilled(tr)
	g.risk.Evaluate(g.account())
	return true
}

// checkRisk 评估风险，必要时强平并记录结果
func (g *Game) checkRisk() risk.Assessment {
	a, rep := g.risk.Check(g.account())
	if rep == nil {
		return a
	}
	g.rec.Liquidation(rep.Lots, rep.Aborted)
	if rep.Aborted {
		g.appendLog("强平中止", fmt.Sprintf("已达迭代上限 %d 次，维持担保比例仍低于追保线", rep.Cap))
		g.logger.LogRisk("liquidation_aborted",
			zap.Int("cap", rep.Cap),
			zap.Int("lots", rep.Lots),
			zap.String("level", a.Level.String()))
		return a
	}
	g.appendLog("强平结束", fmt.Sprintf("撤单 %d 笔，强平 %d 手，当前等级 %s", rep.Cancelled, rep.Lots, a.Level))
	g.logger.LogRisk("liquidation_done",
		zap.Int("cancelled", rep.Cancelled),
		zap.Int("lots", rep.Lots),
		zap.String("level", a.Level.String()))
	return a
}
