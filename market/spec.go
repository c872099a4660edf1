package market

import "math"

// Rand 行情模拟使用的随机源，返回 [0,1) 均匀分布。
// *rand.Rand（math/rand/v2）直接满足该接口，测试中可注入脚本化序列。
type Rand interface {
	Float64() float64
}

var (
	tickChoices   = []float64{1, 2, 5, 10}
	limitChoices  = []float64{0.08, 0.10, 0.12}
	marginChoices = []float64{0.10, 0.12, 0.14}
	multChoices   = []int{5, 10, 20}
)

// Spec 品种规格，开局生成后不再变化。
type Spec struct {
	Base     float64 `json:"base"`
	Tick     float64 `json:"tick"`
	LimitPct float64 `json:"limit_pct"`
	Margin   float64 `json:"margin"`
	Mult     int     `json:"mult"`
}

// NewSpec 按固定抽样顺序（基准价、最小变动价位、涨跌停幅度、保证金率、乘数）随机生成规格。
func NewSpec(rng Rand) Spec {
	base := 1000 + rng.Float64()*3000
	tick := tickChoices[pick(rng, len(tickChoices))]
	limit := limitChoices[pick(rng, len(limitChoices))]
	margin := marginChoices[pick(rng, len(marginChoices))]
	mult := multChoices[pick(rng, len(multChoices))]
	return Spec{
		Base:     base,
		Tick:     tick,
		LimitPct: limit,
		Margin:   margin,
		Mult:     mult,
	}
}

func pick(rng Rand, n int) int {
	i := int(rng.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// MarginFor 按价格计算 qty 手所需保证金。
func (s Spec) MarginFor(price float64, qty int) float64 {
	return price * float64(s.Mult) * float64(qty) * s.Margin
}

// Round 按本品种最小变动价位取整。
func (s Spec) Round(x float64) float64 {
	return RoundToTick(x, s.Tick)
}

// RoundToTick 取整到 tick 的整数倍，x.5 个 tick 时取偶数倍。
func RoundToTick(x, tick float64) float64 {
	if tick <= 0 {
		return x
	}
	return math.RoundToEven(x/tick) * tick
}

// Clamp 把 x 限制在 [lo, hi]。
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
