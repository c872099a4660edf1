package engine

// DefaultTicksPerDay 每个交易日的 tick 数。
const DefaultTicksPerDay = 30

// Clock 游戏时钟，按 tick 计数，每 TicksPerDay 个 tick 换一天。
type Clock struct {
	Tick        int `json:"tick"`
	TicksPerDay int `json:"ticks_per_day"`
}

// NewClock 创建时钟，ticksPerDay 非正时取默认值。
func NewClock(ticksPerDay int) Clock {
	if ticksPerDay <= 0 {
		ticksPerDay = DefaultTicksPerDay
	}
	return Clock{TicksPerDay: ticksPerDay}
}

// Advance 前进一个 tick，返回是否刚好走完一个交易日。
func (c *Clock) Advance() bool {
	c.Tick++
	return c.Tick%c.TicksPerDay == 0
}

// Day 当前交易日，从 1 开始。
func (c Clock) Day() int {
	return c.Tick/c.TicksPerDay + 1
}

// CompletedDays 已走完的交易日数。
func (c Clock) CompletedDays() int {
	return c.Tick / c.TicksPerDay
}
