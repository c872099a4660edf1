package market

const (
	// HistorySeed 开局时价格序列的填充长度。
	HistorySeed = 120
	// HistoryCap 价格序列窗口上限，超出后淘汰最旧的价格。
	HistoryCap = 180
)

// Quote 单个合约的行情。
type Quote struct {
	Symbol       string    `json:"symbol"`
	Code         string    `json:"code"`
	PrevSettle   float64   `json:"prev_settle"`
	LimitUp      float64   `json:"limit_up"`
	LimitDown    float64   `json:"limit_down"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Last         float64   `json:"last"`
	Volume       int64     `json:"vol"`
	OpenInterest int64     `json:"oi"`
	History      []float64 `json:"series"`
}

// InBand 价格是否落在当日涨跌停区间内。
func (q *Quote) InBand(px float64) bool {
	return px >= q.LimitDown && px <= q.LimitUp
}

// ClampToBand 把价格压进涨跌停区间。
func (q *Quote) ClampToBand(px float64) float64 {
	return Clamp(px, q.LimitDown, q.LimitUp)
}

// Clone 深拷贝，价格序列不与原行情共享底层数组。
func (q Quote) Clone() Quote {
	q.History = append([]float64(nil), q.History...)
	return q
}

func (q *Quote) setBand(spec Spec) {
	q.LimitUp = spec.Round(q.PrevSettle * (1 + spec.LimitPct))
	q.LimitDown = spec.Round(q.PrevSettle * (1 - spec.LimitPct))
}

// Simulator 随机游走行情发生器。所有随机数都取自注入的 Rand，
// 同一随机源状态下的推进结果完全一致。
type Simulator struct {
	rng Rand
}

// NewSimulator 创建行情发生器。
func NewSimulator(rng Rand) *Simulator {
	return &Simulator{rng: rng}
}

// Initialize 按规格生成开局行情：昨结取整，开盘价在昨结附近 ±0.5% 内随机。
func (s *Simulator) Initialize(symbol, code string, spec Spec) Quote {
	q := Quote{
		Symbol:     symbol,
		Code:       code,
		PrevSettle: spec.Round(spec.Base),
	}
	q.setBand(spec)

	open := spec.Round(q.PrevSettle * (1 + (s.rng.Float64()-0.5)*0.01))
	open = q.ClampToBand(open)
	q.Open, q.High, q.Low, q.Last = open, open, open, open
	q.OpenInterest = int64(2000 + s.rng.Float64()*6000)

	q.History = make([]float64, HistorySeed, HistoryCap+1)
	for i := range q.History {
		q.History[i] = open
	}
	return q
}

// AdvanceTick 推进一个 tick。
// 抽样顺序固定：方向、步长（1~3 个 tick）、成交量（1~6 手）。
func (s *Simulator) AdvanceTick(q *Quote, spec Spec) {
	sign := 1.0
	if s.rng.Float64() < 0.5 {
		sign = -1
	}
	step := spec.Tick * sign * float64(1+int(s.rng.Float64()*3))
	next := spec.Round(q.Last + step)

	// 向昨结轻微回归
	pull := (q.PrevSettle - next) * 0.01
	next = spec.Round(next + pull)
	next = q.ClampToBand(next)

	q.Last = next
	if next > q.High {
		q.High = next
	}
	if next < q.Low {
		q.Low = next
	}
	q.Volume += int64(1 + s.rng.Float64()*6)

	q.History = append(q.History, next)
	if n := len(q.History); n > HistoryCap {
		q.History = append(q.History[:0], q.History[n-HistoryCap:]...)
	}
}

// RollDay 换日：最新价作为新昨结，重算涨跌停，开高低重置为昨结，成交量清零。
// 价格序列跨日保留。
func (s *Simulator) RollDay(q *Quote, spec Spec) {
	settle := spec.Round(q.Last)
	q.PrevSettle = settle
	q.setBand(spec)
	q.Open, q.High, q.Low = settle, settle, settle
	q.Volume = 0
}
