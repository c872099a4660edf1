package order

// DefaultFeePerLot 每手手续费。
const DefaultFeePerLot = 2.0

// IsMarketable 买单限价 >= 最新价、卖单限价 <= 最新价即可成交。
// 成交一律按最新价，不按委托价。
func IsMarketable(o Order, last float64) bool {
	if o.Side == SideBuy {
		return o.Price >= last
	}
	return o.Price <= last
}

// FeeSchedule 按手数收取固定手续费。
type FeeSchedule struct {
	PerLot float64
}

// DefaultFees 默认费率。
func DefaultFees() FeeSchedule {
	return FeeSchedule{PerLot: DefaultFeePerLot}
}

// FeeFor 计算 qty 手的手续费。
func (f FeeSchedule) FeeFor(qty int) float64 {
	return f.PerLot * float64(qty)
}

// FeeFor 默认费率下 qty 手的手续费。
func FeeFor(qty int) float64 {
	return DefaultFees().FeeFor(qty)
}
