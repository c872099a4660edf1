package engine

import (
	"fmt"

	"go.uber.org/zap"

	"futures-sim-go/order"
	"futures-sim-go/risk"
)

// TickResult 一次推进的结果
type TickResult struct {
	Tick      int        `json:"tick"`
	Day       int        `json:"day"`
	Filled    int        `json:"filled"`
	DayRolled bool       `json:"day_rolled"`
	RiskLevel risk.Level `json:"risk_level"`
}

// AdvanceTick 推进一个 tick：主力合约行情推进，按提交顺序撮合未成交委托，
// 评估风险（可能强平），走完一个交易日时收日K并换日。
func (g *Game) AdvanceTick() TickResult {
	for _, p := range g.cfg.Catalog.Products {
		q := g.quotes[g.cfg.Catalog.MainContract(p.Code)]
		g.sim.AdvanceTick(q, g.specs[p.Code])
	}

	filled := g.sweep()
	g.appendLog("行情推进", fmt.Sprintf("第 %d 个 tick，主力合约报价已更新", g.clock.Tick+1))
	a := g.checkRisk()

	rolled := g.clock.Advance()
	if rolled {
		g.rollDay()
	}
	g.rec.TickAdvanced()

	g.logger.Debug("Tick advanced",
		zap.Int("tick", g.clock.Tick),
		zap.Int("filled", filled),
		zap.Bool("day_rolled", rolled),
		zap.String("risk_level", a.Level.String()))

	return TickResult{
		Tick:      g.clock.Tick,
		Day:       g.clock.Day(),
		Filled:    filled,
		DayRolled: rolled,
		RiskLevel: a.Level,
	}
}

// sweep 按提交顺序检查全部 new 委托，可成交的按最新价成交
func (g *Game) sweep() int {
	n := 0
	for _, id := range g.book.Active() {
		o, ok := g.book.Get(id)
		if !ok || o.Status != order.StatusNew {
			continue
		}
		q := g.quotes[o.Symbol]
		if order.IsMarketable(o, q.Last) && g.fill(o, q.Last) {
			n++
		}
	}
	return n
}

// rollDay 主力合约收日K，按收盘价换日
func (g *Game) rollDay() {
	day := g.clock.CompletedDays()
	for _, p := range g.cfg.Catalog.Products {
		sym := g.cfg.Catalog.MainContract(p.Code)
		q := g.quotes[sym]
		g.klines[sym] = append(g.klines[sym], q.DailyKline(day))
		g.sim.RollDay(q, g.specs[p.Code])
	}
	g.appendLog("换日", fmt.Sprintf("进入第 %d 天，已按收盘价重算涨跌停", day+1))
	g.logger.Info("Trading day rolled", zap.Int("day", day+1), zap.Int("tick", g.clock.Tick))
}
