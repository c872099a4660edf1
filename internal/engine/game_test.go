package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-sim-go/inventory"
	"futures-sim-go/market"
	"futures-sim-go/order"
	"futures-sim-go/risk"
)

type countingRecorder struct {
	ticks       int
	placed      map[string]int
	rejected    map[string]int
	filled      []order.Trade
	cancelled   int
	liquidated  int
	aborted     int
	levelChange []risk.Level
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{placed: map[string]int{}, rejected: map[string]int{}}
}

func (r *countingRecorder) TickAdvanced()               { r.ticks++ }
func (r *countingRecorder) OrderPlaced(symbol string)   { r.placed[symbol]++ }
func (r *countingRecorder) OrderRejected(reason string) { r.rejected[reason]++ }
func (r *countingRecorder) OrderFilled(t order.Trade)   { r.filled = append(r.filled, t) }
func (r *countingRecorder) OrdersCancelled(n int)       { r.cancelled += n }
func (r *countingRecorder) Liquidation(lots int, aborted bool) {
	r.liquidated += lots
	if aborted {
		r.aborted++
	}
}
func (r *countingRecorder) RiskLevelChanged(l risk.Level) { r.levelChange = append(r.levelChange, l) }

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.InitialCash = 0
	cfg.TicksPerDay = -1
	cfg.FeePerLot = -2
	cfg.Catalog = market.Catalog{}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"initial cash", "ticks per day", "fee per lot", "no products", "no contract months"} {
		assert.Contains(t, err.Error(), want)
	}

	_, err = New(cfg)
	assert.Error(t, err)
}

func TestNewGameBuildsEveryContract(t *testing.T) {
	g, err := New(DefaultConfig(), WithSeed(3, 4), WithNow(fixedNow))
	require.NoError(t, err)

	cat := market.DefaultCatalog()
	for _, sym := range cat.Symbols() {
		q, ok := g.Quote(sym)
		require.True(t, ok, sym)
		spec, ok := g.Spec(q.Code)
		require.True(t, ok)
		assert.True(t, q.InBand(q.Last), sym)
		assert.Equal(t, q.Last, spec.Round(q.Last), sym)
		assert.Len(t, q.History, market.HistorySeed)
	}

	b := g.Bootstrap()
	assert.Len(t, b.Products, len(cat.Products))
	assert.Len(t, b.Specs, len(cat.Products))
	assert.Equal(t, cat.MainContract(cat.Products[0].Code), b.Products[0].MainContract)

	snap := g.Snapshot()
	assert.Len(t, snap.Market, len(cat.Products))
	assert.Equal(t, 0, snap.Tick)
	assert.Equal(t, 1, snap.Day)
	assert.Equal(t, risk.LevelNormal, snap.Account.RiskLevel)
	assert.Nil(t, snap.Account.MarginRatio)
	assert.Equal(t, DefaultInitialCash, snap.Account.Equity)
}

func TestSameSeedSameMarket(t *testing.T) {
	g1, err := New(DefaultConfig(), WithSeed(9, 9), WithNow(fixedNow))
	require.NoError(t, err)
	g2, err := New(DefaultConfig(), WithSeed(9, 9), WithNow(fixedNow))
	require.NoError(t, err)

	for i := 0; i < 45; i++ {
		g1.AdvanceTick()
		g2.AdvanceTick()
	}
	assert.Equal(t, g1.Snapshot(), g2.Snapshot())
}

// 价格下跌 10%：浮亏 -10000，权益 190000，保证金 9000，比例约 21.1，仍为正常
func TestPriceDropValuation(t *testing.T) {
	g := newTestGame(t, func(c *Config) { c.FeePerLot = 0 })
	res := g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 1000, Qty: 10})
	require.True(t, res.OK)

	setLast(g, "AKT2603", 900)
	snap := g.Snapshot()

	acct := snap.Account
	assert.Equal(t, 200000.0, acct.Cash)
	assert.Equal(t, -10000.0, acct.Unrealized)
	assert.Equal(t, 190000.0, acct.Equity)
	assert.Equal(t, 9000.0, acct.MarginUsed)
	assert.Equal(t, 181000.0, acct.Available)
	require.NotNil(t, acct.MarginRatio)
	assert.InDelta(t, 21.11, *acct.MarginRatio, 0.01)
	assert.Equal(t, risk.LevelNormal, acct.RiskLevel)

	require.Len(t, snap.Positions, 1)
	pv := snap.Positions[0]
	assert.Equal(t, 900.0, pv.Last)
	assert.Equal(t, -10000.0, pv.Unrealized)
	assert.Equal(t, 9000.0, pv.LiveMargin)
	// 入账保证金停留在成交时
	assert.Equal(t, 10000.0, pv.Margin)
}

func TestPriceDropWithFees(t *testing.T) {
	g := newTestGame(t, nil)
	require.True(t, g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 1000, Qty: 10}).OK)
	setLast(g, "AKT2603", 900)

	acct := g.Account()
	assert.Equal(t, 199980.0, acct.Cash)
	assert.Equal(t, 189980.0, acct.Equity)
	assert.Equal(t, 20.0, acct.Fees)
	assert.Equal(t, risk.LevelNormal, g.RiskLevel())
}

// 固定价格路径把比例打到 1.00 以下，触发强平
func TestForcedLiquidationOnPricePath(t *testing.T) {
	rec := newCountingRecorder()
	g := newTestGame(t, func(c *Config) { c.InitialCash = 12000 })
	g.rec = rec
	pinMarket(g, market.Spec{Base: 1000, Tick: 10, LimitPct: 0.1, Margin: 0.1, Mult: 10})
	// 每个 tick 下跌 3 个最小变动价位：970, 940, 910, 900(跌停)
	scriptPrices(g, 0.1, 0.99, 0.0)

	require.True(t, g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 1000, Qty: 10}).OK)
	// 权益 11980 / 保证金 10000
	assert.Equal(t, risk.LevelWarn, g.risk.Level())

	pending := g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 900, Qty: 1})
	require.True(t, pending.OK)

	res := g.AdvanceTick()
	q, _ := g.Quote("AKT2603")
	assert.Equal(t, 970.0, q.Last)
	assert.Zero(t, res.Filled)

	// 撤单在先
	o, _ := g.book.Get(pending.OrderID)
	assert.Equal(t, order.StatusCancelled, o.Status)
	assert.Equal(t, 1, rec.cancelled)

	// 平两手后比例 8976/7760 回到追保线以上
	p, ok := g.ledger.Position("AKT2603", inventory.Long)
	require.True(t, ok)
	assert.Equal(t, 8, p.Qty)
	assert.Equal(t, 2, rec.liquidated)
	assert.Zero(t, rec.aborted)

	trades := g.Trades()
	require.Len(t, trades, 3)
	assert.Equal(t, "L2", trades[1].ID)
	assert.Equal(t, "L3", trades[2].ID)
	for _, tr := range trades[1:] {
		assert.Equal(t, order.SideSell, tr.Side)
		assert.Equal(t, order.EffectClose, tr.Effect)
		assert.Equal(t, 1, tr.Qty)
		assert.Equal(t, 970.0, tr.Price)
	}
	assert.InDelta(t, 11376.0, g.ledger.Cash, 1e-9)

	assert.Equal(t, risk.LevelWarn, res.RiskLevel)
	assert.Equal(t, risk.LevelWarn, g.risk.Level())
	assert.Equal(t, []risk.Level{risk.LevelWarn, risk.LevelLiq, risk.LevelCall, risk.LevelWarn}, rec.levelChange)

	for _, title := range []string{"强平撤单", "强制平仓", "强平结束", "风险等级"} {
		assert.True(t, hasLog(g, title), title)
	}
}

func TestLiquidationDisabled(t *testing.T) {
	g := newTestGame(t, func(c *Config) {
		c.InitialCash = 12000
		c.Risk.AutoLiquidate = false
	})
	pinMarket(g, market.Spec{Base: 1000, Tick: 10, LimitPct: 0.1, Margin: 0.1, Mult: 10})
	scriptPrices(g, 0.1, 0.99, 0.0)

	require.True(t, g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 1000, Qty: 10}).OK)
	res := g.AdvanceTick()

	assert.Equal(t, risk.LevelLiq, res.RiskLevel)
	p, _ := g.ledger.Position("AKT2603", inventory.Long)
	assert.Equal(t, 10, p.Qty)
	assert.Len(t, g.Trades(), 1)
}

func TestSetRiskConfig(t *testing.T) {
	g := newTestGame(t, nil)
	bad := risk.DefaultConfig()
	bad.Thresholds.Warn = 0.5
	assert.Error(t, g.SetRiskConfig(bad))

	cfg := risk.Config{Thresholds: risk.Thresholds{Warn: 30, Call: 25, Liq: 22}, AutoLiquidate: false}
	require.NoError(t, g.SetRiskConfig(cfg))

	require.True(t, g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 1000, Qty: 10}).OK)
	setLast(g, "AKT2603", 900)
	// 21.1 低于新的强平线，自动强平已关闭，持仓不动
	assert.Equal(t, risk.LevelLiq, g.RiskLevel())
	assert.Len(t, g.Positions(), 1)
	assert.Equal(t, cfg, g.Config().Risk)
}

func TestSetFeePerLot(t *testing.T) {
	g := newTestGame(t, nil)
	assert.Error(t, g.SetFeePerLot(-1))
	require.NoError(t, g.SetFeePerLot(5))
	require.True(t, g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 1000, Qty: 3}).OK)
	assert.Equal(t, 15.0, g.Trades()[0].Fee)
}

func TestAdvanceTickOnlyMovesMainContracts(t *testing.T) {
	g := newTestGame(t, nil)
	scriptPrices(g, 0.9, 0.0, 0.5)

	res := g.AdvanceTick()
	assert.Equal(t, 1, res.Tick)
	assert.Equal(t, 1, res.Day)
	assert.False(t, res.DayRolled)

	main, _ := g.Quote("AKT2603")
	other, _ := g.Quote("AKT2604")
	assert.Equal(t, 1001.0, main.Last)
	assert.Equal(t, int64(4), main.Volume)
	assert.Len(t, main.History, market.HistorySeed+1)
	assert.Equal(t, 1000.0, other.Last)
	assert.Len(t, other.History, market.HistorySeed)
	assert.True(t, hasLog(g, "行情推进"))
}

func TestDayRollProducesKline(t *testing.T) {
	g := newTestGame(t, func(c *Config) { c.TicksPerDay = 3 })
	scriptPrices(g, 0.9, 0.0, 0.5)

	var last TickResult
	for i := 0; i < 3; i++ {
		last = g.AdvanceTick()
	}
	assert.True(t, last.DayRolled)
	assert.Equal(t, 3, last.Tick)
	assert.Equal(t, 2, last.Day)

	snap := g.Snapshot()
	ks := snap.DayKlines["AKT2603"]
	require.Len(t, ks, 1)
	assert.Equal(t, 1, ks[0].Day)
	assert.Equal(t, 1000.0, ks[0].Open)
	assert.Equal(t, 1003.0, ks[0].Close)
	assert.Equal(t, 1003.0, ks[0].High)
	assert.Equal(t, int64(12), ks[0].Volume)
	_, hasOther := snap.DayKlines["AKT2604"]
	assert.False(t, hasOther)

	q, _ := g.Quote("AKT2603")
	assert.Equal(t, 1003.0, q.PrevSettle)
	assert.Equal(t, 1003.0, q.Open)
	assert.Equal(t, int64(0), q.Volume)
	assert.Equal(t, q.Last, q.PrevSettle)
	assert.True(t, hasLog(g, "换日"))
}

func TestSnapshotLimits(t *testing.T) {
	g := newTestGame(t, nil)
	for i := 0; i < 100; i++ {
		g.AdvanceTick()
	}
	snap := g.Snapshot()
	assert.Len(t, snap.RoundLog, RoundLogView)
	assert.Equal(t, RoundLogCapacity, g.log.Len())

	qv := snap.Market["AKT2603"]
	require.NotNil(t, qv.SMA)
	assert.Greater(t, *qv.SMA, 0.0)
	_, listed := snap.Market["AKT2604"]
	assert.False(t, listed)
}

func TestResetPlayer(t *testing.T) {
	g := newTestGame(t, nil)
	require.True(t, g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 1000, Qty: 5}).OK)
	g.AdvanceTick()
	q, _ := g.Quote("AKT2603")

	g.ResetPlayer()
	assert.Empty(t, g.Positions())
	assert.Empty(t, g.Orders())
	assert.Empty(t, g.Trades())
	assert.Equal(t, DefaultInitialCash, g.Account().Cash)
	require.Len(t, g.RoundLog(), 1)
	assert.Equal(t, "重置", g.RoundLog()[0].Title)

	after, _ := g.Quote("AKT2603")
	assert.Equal(t, q.Last, after.Last)
	assert.Equal(t, 1, g.Clock().Tick)

	res := g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 1, Qty: 1})
	assert.Equal(t, int64(1001), res.OrderID)
}

func TestResetMarketKeepsPositions(t *testing.T) {
	g := newTestGame(t, nil)
	require.True(t, g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 1000, Qty: 2}).OK)
	g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 950, Qty: 1})
	g.AdvanceTick()
	spec, _ := g.Spec("AKT")

	g.ResetMarket()
	assert.Equal(t, 0, g.Clock().Tick)
	assert.Empty(t, g.Orders())
	assert.Empty(t, g.Trades())
	assert.Len(t, g.Positions(), 1)
	assert.Empty(t, g.Snapshot().DayKlines["AKT2603"])

	after, _ := g.Spec("AKT")
	assert.Equal(t, spec, after)
	q, _ := g.Quote("AKT2603")
	assert.Equal(t, spec.Round(spec.Base), q.PrevSettle)
	assert.Len(t, q.History, market.HistorySeed)
}

func TestResetAll(t *testing.T) {
	g, err := New(DefaultConfig(), WithSeed(5, 6), WithNow(fixedNow))
	require.NoError(t, err)
	sym := g.Config().Catalog.MainContract("AKT")
	q, _ := g.Quote(sym)
	specs := g.Bootstrap().Specs
	g.PlaceOrder(PlaceOrderRequest{Symbol: sym, Side: order.SideBuy, Effect: order.EffectOpen, Price: q.Last, Qty: 1})
	g.AdvanceTick()

	g.ResetAll()
	// 规格保持不变，只重建行情
	assert.Equal(t, specs, g.Bootstrap().Specs)
	assert.Equal(t, 0, g.Clock().Tick)
	assert.Empty(t, g.Positions())
	assert.Empty(t, g.Orders())
	assert.Empty(t, g.Trades())
	assert.Equal(t, DefaultInitialCash, g.Account().Equity)
	assert.Equal(t, risk.LevelNormal, g.risk.Level())
	assert.Len(t, g.Bootstrap().Specs, len(g.Config().Catalog.Products))
}

func TestRecorderReceivesEvents(t *testing.T) {
	rec := newCountingRecorder()
	g := newTestGame(t, nil)
	g.rec = rec

	g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 1000, Qty: 1})
	g.PlaceOrder(PlaceOrderRequest{Symbol: "AKT2603", Side: order.SideBuy, Effect: order.EffectOpen, Price: 1000, Qty: 0})
	g.AdvanceTick()

	assert.Equal(t, 1, rec.placed["AKT2603"])
	assert.Equal(t, 1, rec.rejected[risk.Reason(risk.ErrInvalidQty)])
	assert.Len(t, rec.filled, 1)
	assert.Equal(t, 1, rec.ticks)
}
