package engine

import (
	"go.uber.org/zap"

	"futures-sim-go/risk"
)

// ResetPlayer 账户回到开局资金，清空持仓、委托、成交与回合日志，行情不变
func (g *Game) ResetPlayer() {
	g.ledger.Reset(g.cfg.InitialCash)
	_ = g.book.Reset(nil)
	g.log.Reset(nil)
	g.lastOrderID = orderIDBase
	g.risk.Restore(risk.LevelNormal)
	g.appendLog("重置", "已重置玩家账户、持仓、委托与成交")
	g.logger.Info("Player reset", zap.Float64("cash", g.cfg.InitialCash))
}

// ResetMarket 按原规格重新生成行情，时钟归零，清空委托、成交、日K与回合日志。
// 持仓保留，按新行情重新评估风险。
func (g *Game) ResetMarket() {
	g.initMarket()
	g.clock = NewClock(g.cfg.TicksPerDay)
	_ = g.book.Reset(nil)
	g.ledger.ClearTrades()
	g.log.Reset(nil)
	g.appendLog("重置", "已重置市场行情并清空委托与成交")
	g.logger.Info("Market reset")
	g.checkRisk()
}

// ResetAll 行情与玩家都回到开局：规格不变，随机源继续沿用
func (g *Game) ResetAll() {
	g.initMarket()
	g.clock = NewClock(g.cfg.TicksPerDay)
	g.ledger.Reset(g.cfg.InitialCash)
	_ = g.book.Reset(nil)
	g.log.Reset(nil)
	g.lastOrderID = orderIDBase
	g.risk.Restore(risk.LevelNormal)
	g.appendLog("重置", "已重置市场行情与玩家账户")
	g.logger.Info("Game reset")
}
