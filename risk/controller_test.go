package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-sim-go/inventory"
)

type fakePos struct {
	symbol       string
	qty          int
	marginPerLot float64
	pnlPerLot    float64
}

// fakeAccount 简化账户：每手保证金与浮盈固定，平仓时浮盈转入现金。
type fakeAccount struct {
	cash      float64
	positions []*fakePos
	open      int
	stuck     bool
	closed    []string
}

func (f *fakeAccount) Equity() float64 {
	eq := f.cash
	for _, p := range f.positions {
		eq += p.pnlPerLot * float64(p.qty)
	}
	return eq
}

func (f *fakeAccount) MarginUsed() float64 {
	m := 0.0
	for _, p := range f.positions {
		m += p.marginPerLot * float64(p.qty)
	}
	return m
}

func (f *fakeAccount) Exposures() []Exposure {
	out := make([]Exposure, 0, len(f.positions))
	for _, p := range f.positions {
		out = append(out, Exposure{Symbol: p.symbol, Direction: inventory.Long, Qty: p.qty, Margin: p.marginPerLot * float64(p.qty)})
	}
	return out
}

func (f *fakeAccount) CancelOpenOrders() int {
	n := f.open
	f.open = 0
	return n
}

func (f *fakeAccount) ForceClose(e Exposure) bool {
	if f.stuck {
		return false
	}
	for i, p := range f.positions {
		if p.symbol != e.Symbol {
			continue
		}
		f.cash += p.pnlPerLot
		p.qty--
		if p.qty == 0 {
			f.positions = append(f.positions[:i], f.positions[i+1:]...)
		}
		f.closed = append(f.closed, e.Symbol)
		return true
	}
	return false
}

func TestClassifyBoundaries(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		name   string
		equity float64
		margin float64
		want   Level
	}{
		{"无保证金占用", 1000, 0, LevelNormal},
		{"恰好预警线", 1200, 1000, LevelNormal},
		{"预警线以下", 1199, 1000, LevelWarn},
		{"恰好追保线", 1100, 1000, LevelWarn},
		{"追保线以下", 1099, 1000, LevelCall},
		{"恰好强平线", 1000, 1000, LevelCall},
		{"强平线以下", 999, 1000, LevelLiq},
		{"权益为负", -10, 1000, LevelLiq},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, th.Classify(MarginRatio(tc.equity, tc.margin)))
		})
	}
}

func TestMarginRatioInfinite(t *testing.T) {
	assert.True(t, math.IsInf(MarginRatio(100, 0), 1))
	assert.Equal(t, "无保证金占用", DefaultThresholds().Message(LevelNormal, math.Inf(1)))
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.NoError(t, Thresholds{Warn: 1.1, Call: 1.1, Liq: 1.1}.Validate())
	assert.Error(t, Thresholds{Warn: 1.2, Call: 1.3, Liq: 1.0}.Validate())
	assert.Error(t, Thresholds{Warn: 1.2, Call: 1.1, Liq: 1.15}.Validate())
	assert.Error(t, Thresholds{Warn: 1.2, Call: 1.1, Liq: 0}.Validate())
}

func TestLevelText(t *testing.T) {
	for _, l := range []Level{LevelNormal, LevelWarn, LevelCall, LevelLiq} {
		b, err := l.MarshalText()
		require.NoError(t, err)
		var got Level
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, l, got)
	}
	var l Level
	assert.Error(t, l.UnmarshalText([]byte("PANIC")))
}

func TestEvaluateFiresOnlyOnChange(t *testing.T) {
	c := NewController(DefaultConfig())
	var changes []Assessment
	c.OnChange(func(a Assessment) { changes = append(changes, a) })

	acct := &fakeAccount{cash: 1150, positions: []*fakePos{{symbol: "A", qty: 1, marginPerLot: 1000}}}
	a := c.Evaluate(acct)
	assert.Equal(t, LevelWarn, a.Level)
	assert.True(t, a.Changed)
	c.Evaluate(acct)
	require.Len(t, changes, 1)
	assert.Equal(t, LevelNormal, changes[0].Prev)

	acct.cash = 1300
	c.Evaluate(acct)
	require.Len(t, changes, 2)
	assert.Equal(t, LevelNormal, changes[1].Level)
	assert.Equal(t, LevelWarn, changes[1].Prev)
}

func TestLiquidateClosesLargestFirst(t *testing.T) {
	acct := &fakeAccount{
		cash: 9000,
		open: 3,
		positions: []*fakePos{
			{symbol: "A", qty: 5, marginPerLot: 1000, pnlPerLot: -1000},
			{symbol: "B", qty: 2, marginPerLot: 1500},
		},
	}
	c := NewController(DefaultConfig())
	a, rep := c.Check(acct)
	require.NotNil(t, rep)

	assert.Equal(t, 3, rep.Cancelled)
	assert.Equal(t, 0, acct.open)
	// A 5000, A 4000, 平手时取靠前的 A, 然后 B
	assert.Equal(t, []string{"A", "A", "A", "B"}, acct.closed)
	assert.Equal(t, 4, rep.Lots)
	assert.Equal(t, 17, rep.Cap)
	assert.True(t, rep.Recovered)
	assert.False(t, rep.Aborted)
	assert.Equal(t, LevelWarn, a.Level)
	assert.Equal(t, LevelWarn, c.Level())
}

func TestLiquidateStopsWhenFlat(t *testing.T) {
	acct := &fakeAccount{
		cash:      100,
		positions: []*fakePos{{symbol: "A", qty: 2, marginPerLot: 1000, pnlPerLot: -50}},
	}
	c := NewController(DefaultConfig())
	a, rep := c.Check(acct)
	require.NotNil(t, rep)
	assert.Equal(t, 2, rep.Lots)
	assert.Empty(t, acct.positions)
	assert.Equal(t, LevelNormal, a.Level)
}

func TestLiquidateAbortsAtCap(t *testing.T) {
	acct := &fakeAccount{
		cash:      0,
		stuck:     true,
		positions: []*fakePos{{symbol: "A", qty: 3, marginPerLot: 1000}},
	}
	c := NewController(DefaultConfig())
	a, rep := c.Check(acct)
	require.NotNil(t, rep)
	assert.True(t, rep.Aborted)
	assert.Equal(t, 13, rep.Cap)
	assert.Equal(t, 13, rep.Iterations)
	assert.Zero(t, rep.Lots)
	assert.Equal(t, LevelLiq, a.Level)
}

func TestCheckWithoutAutoLiquidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoLiquidate = false
	c := NewController(cfg)
	acct := &fakeAccount{open: 2, positions: []*fakePos{{symbol: "A", qty: 1, marginPerLot: 1000, pnlPerLot: -10}}}
	a, rep := c.Check(acct)
	assert.Nil(t, rep)
	assert.Equal(t, LevelLiq, a.Level)
	assert.Equal(t, 2, acct.open)
}

func TestLargestTieBreak(t *testing.T) {
	e := Largest([]Exposure{{Symbol: "A", Margin: 10}, {Symbol: "B", Margin: 30}, {Symbol: "C", Margin: 30}})
	assert.Equal(t, "B", e.Symbol)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "margin_not_enough", Reason(ErrMarginNotEnough))
	assert.Equal(t, "position_not_enough", Reason(ErrPositionNotEnough))
	assert.Equal(t, "other", Reason(nil))
}
