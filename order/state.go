package order

import (
	"fmt"
	"time"
)

// Side 买卖方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid 是否合法的买卖方向。
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Effect 开平标志。
type Effect string

const (
	EffectOpen  Effect = "open"
	EffectClose Effect = "close"
)

// Valid 是否合法的开平标志。
func (e Effect) Valid() bool {
	return e == EffectOpen || e == EffectClose
}

// Status represents order lifecycle.
type Status string

const (
	StatusNew       Status = "new"
	StatusFilled    Status = "filled"
	StatusCancelled Status = "cancelled"
)

// Order 限价委托。价格在提交时已按 tick 取整并压进涨跌停区间。
type Order struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Effect    Effect    `json:"effect"`
	Price     float64   `json:"price"`
	Qty       int       `json:"qty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"ts"`
}

// Trade 成交记录，只追加不修改。
type Trade struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Side   Side      `json:"side"`
	Effect Effect    `json:"effect"`
	Price  float64   `json:"price"`
	Qty    int       `json:"qty"`
	Fee    float64   `json:"fee"`
	Time   time.Time `json:"ts"`
}

// FillTradeID 委托成交的成交号。
func FillTradeID(orderID int64) string {
	return fmt.Sprintf("T%d", orderID)
}
