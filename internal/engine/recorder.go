package engine

import (
	"futures-sim-go/order"
	"futures-sim-go/risk"
)

// Recorder 接收引擎事件用于指标统计，避免核心直接依赖 Prometheus。
type Recorder interface {
	TickAdvanced()
	OrderPlaced(symbol string)
	OrderRejected(reason string)
	OrderFilled(t order.Trade)
	OrdersCancelled(n int)
	Liquidation(lots int, aborted bool)
	RiskLevelChanged(level risk.Level)
}

// NopRecorder 丢弃所有事件。
type NopRecorder struct{}

func (NopRecorder) TickAdvanced()               {}
func (NopRecorder) OrderPlaced(string)          {}
func (NopRecorder) OrderRejected(string)        {}
func (NopRecorder) OrderFilled(order.Trade)     {}
func (NopRecorder) OrdersCancelled(int)         {}
func (NopRecorder) Liquidation(int, bool)       {}
func (NopRecorder) RiskLevelChanged(risk.Level) {}
