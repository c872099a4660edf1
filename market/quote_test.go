package market

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqRand 按脚本依次返回随机数，用完后循环。
type seqRand struct {
	vals []float64
	i    int
}

func (s *seqRand) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func testSpec() Spec {
	return Spec{Base: 1000.4, Tick: 1, LimitPct: 0.10, Margin: 0.10, Mult: 10}
}

func TestSimulatorInitialize(t *testing.T) {
	sim := NewSimulator(&seqRand{vals: []float64{0.5, 0.5}})
	q := sim.Initialize("AKT2603", "AKT", testSpec())

	assert.Equal(t, "AKT2603", q.Symbol)
	assert.Equal(t, "AKT", q.Code)
	assert.Equal(t, 1000.0, q.PrevSettle)
	assert.Equal(t, 1100.0, q.LimitUp)
	assert.Equal(t, 900.0, q.LimitDown)
	assert.Equal(t, 1000.0, q.Open)
	assert.Equal(t, q.Open, q.High)
	assert.Equal(t, q.Open, q.Low)
	assert.Equal(t, q.Open, q.Last)
	assert.Equal(t, int64(5000), q.OpenInterest)
	assert.Zero(t, q.Volume)
	require.Len(t, q.History, HistorySeed)
	for _, px := range q.History {
		assert.Equal(t, q.Open, px)
	}
}

func TestSimulatorAdvanceTickScripted(t *testing.T) {
	spec := testSpec()
	q := Quote{Symbol: "AKT2603", PrevSettle: 1000, LimitUp: 1100, LimitDown: 900,
		Open: 1000, High: 1000, Low: 1000, Last: 1000, History: []float64{1000}}

	// 上涨、3 个 tick、成交量 4 手
	sim := NewSimulator(&seqRand{vals: []float64{0.9, 0.7, 0.5}})
	sim.AdvanceTick(&q, spec)

	// 1003 回归 1% 后为 1002.97，取整回到 1003
	assert.Equal(t, 1003.0, q.Last)
	assert.Equal(t, 1003.0, q.High)
	assert.Equal(t, 1000.0, q.Low)
	assert.Equal(t, int64(4), q.Volume)
	assert.Equal(t, []float64{1000, 1003}, q.History)

	// 下跌、1 个 tick、成交量 1 手
	sim = NewSimulator(&seqRand{vals: []float64{0.1, 0.0, 0.0}})
	sim.AdvanceTick(&q, spec)
	assert.Equal(t, 1002.0, q.Last)
	assert.Equal(t, int64(5), q.Volume)
}

func TestSimulatorClampsAtLimit(t *testing.T) {
	spec := Spec{Base: 1000, Tick: 1, LimitPct: 0.01, Margin: 0.1, Mult: 10}
	q := Quote{PrevSettle: 1000, LimitUp: 1010, LimitDown: 990, Open: 1010, High: 1010, Low: 1010, Last: 1010}
	sim := NewSimulator(&seqRand{vals: []float64{0.99, 0.99, 0.1}})
	for i := 0; i < 5; i++ {
		sim.AdvanceTick(&q, spec)
		assert.Equal(t, 1010.0, q.Last)
	}
}

func TestSimulatorBandAndTickInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	sim := NewSimulator(rng)
	for n := 0; n < 40; n++ {
		spec := NewSpec(rng)
		q := sim.Initialize("X", "X", spec)
		for i := 1; i <= 600; i++ {
			sim.AdvanceTick(&q, spec)
			require.True(t, q.InBand(q.Last), "tick %d: %v outside [%v,%v]", i, q.Last, q.LimitDown, q.LimitUp)
			require.Zero(t, math.Mod(q.Last, spec.Tick), "tick %d: %v not a multiple of %v", i, q.Last, spec.Tick)
			if i%30 == 0 {
				sim.RollDay(&q, spec)
				require.True(t, q.InBand(q.Last))
			}
		}
		assert.Len(t, q.History, HistoryCap)
	}
}

func TestSimulatorHistoryWindow(t *testing.T) {
	spec := testSpec()
	sim := NewSimulator(rand.New(rand.NewPCG(1, 2)))
	q := sim.Initialize("AKT2603", "AKT", spec)
	for i := 0; i < 100; i++ {
		sim.AdvanceTick(&q, spec)
	}
	require.Len(t, q.History, HistoryCap)
	assert.Equal(t, q.Last, q.History[len(q.History)-1])
}

func TestSimulatorRollDay(t *testing.T) {
	spec := testSpec()
	q := Quote{PrevSettle: 1000, LimitUp: 1100, LimitDown: 900, Open: 998, High: 1010, Low: 990,
		Last: 1003, Volume: 42, History: []float64{1000, 1003}}
	NewSimulator(nil).RollDay(&q, spec)

	assert.Equal(t, 1003.0, q.PrevSettle)
	assert.Equal(t, 1103.0, q.LimitUp)
	assert.Equal(t, 903.0, q.LimitDown)
	assert.Equal(t, 1003.0, q.Open)
	assert.Equal(t, 1003.0, q.High)
	assert.Equal(t, 1003.0, q.Low)
	assert.Zero(t, q.Volume)
	assert.Equal(t, []float64{1000, 1003}, q.History)
}

func TestQuoteCloneDoesNotShareHistory(t *testing.T) {
	q := Quote{History: []float64{1, 2}}
	c := q.Clone()
	c.History[0] = 9
	assert.Equal(t, 1.0, q.History[0])
}
