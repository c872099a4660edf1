package market

// Kline 日K线，换日时由当日行情收出。
type Kline struct {
	Day    int     `json:"day"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"vol"`
}

// DailyKline 用当前行情生成第 day 天的日K，收盘取最新价。
func (q *Quote) DailyKline(day int) Kline {
	return Kline{
		Day:    day,
		Open:   q.Open,
		High:   q.High,
		Low:    q.Low,
		Close:  q.Last,
		Volume: q.Volume,
	}
}
