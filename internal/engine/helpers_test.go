package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"futures-sim-go/market"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

// seqRand 脚本化随机源，按顺序循环返回
type seqRand struct {
	vals []float64
	i    int
}

func (s *seqRand) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func testCatalog() market.Catalog {
	return market.Catalog{
		Products: []market.Product{{Code: "AKT", Name: "Anchor Cookware"}},
		Months:   []string{"2603", "2604"},
	}
}

// newTestGame 单品种对局，规格与行情固定：tick=1，保证金 10%，乘数 10，最新价 1000。
func newTestGame(t *testing.T, mutate func(*Config)) *Game {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Catalog = testCatalog()
	if mutate != nil {
		mutate(&cfg)
	}
	g, err := New(cfg, WithSeed(1, 2), WithNow(fixedNow))
	require.NoError(t, err)
	pinMarket(g, market.Spec{Base: 1000, Tick: 1, LimitPct: 0.1, Margin: 0.1, Mult: 10})
	return g
}

func pinMarket(g *Game, spec market.Spec) {
	g.specs["AKT"] = spec
	for _, sym := range []string{"AKT2603", "AKT2604"} {
		hist := make([]float64, market.HistorySeed)
		for i := range hist {
			hist[i] = 1000
		}
		g.quotes[sym] = &market.Quote{
			Symbol: sym, Code: "AKT",
			PrevSettle: 1000, LimitUp: spec.Round(1000 * (1 + spec.LimitPct)), LimitDown: spec.Round(1000 * (1 - spec.LimitPct)),
			Open: 1000, High: 1000, Low: 1000, Last: 1000,
			History: hist,
		}
	}
}

func setLast(g *Game, sym string, px float64) {
	g.quotes[sym].Last = px
}

func scriptPrices(g *Game, vals ...float64) {
	g.sim = market.NewSimulator(&seqRand{vals: vals})
}

func hasLog(g *Game, title string) bool {
	for _, e := range g.log.Entries() {
		if e.Title == title {
			return true
		}
	}
	return false
}
