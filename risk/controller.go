package risk

import (
	"futures-sim-go/inventory"
)

// Config 风控参数。
type Config struct {
	Thresholds    Thresholds
	AutoLiquidate bool
}

// DefaultConfig 默认阈值，开启自动强平。
func DefaultConfig() Config {
	return Config{Thresholds: DefaultThresholds(), AutoLiquidate: true}
}

// Exposure 单个持仓的实时保证金占用。
type Exposure struct {
	Symbol    string
	Direction inventory.Direction
	Qty       int
	Margin    float64
}

// Account 风控所需的账户视图，数值均按最新价实时计算。
type Account interface {
	Equity() float64
	MarginUsed() float64
	// Exposures 按建仓顺序返回持仓。
	Exposures() []Exposure
	// CancelOpenOrders 撤销全部未成交委托，返回撤单数。
	CancelOpenOrders() int
	// ForceClose 以最新价平掉该持仓 1 手。
	ForceClose(e Exposure) bool
}

// Assessment 一次风险评估的结果。
type Assessment struct {
	Level   Level
	Prev    Level
	Ratio   float64
	Message string
	Changed bool
}

// LiquidationReport 强平过程汇总。
type LiquidationReport struct {
	Cancelled  int
	Lots       int
	Iterations int
	Cap        int
	Recovered  bool
	// Aborted 达到迭代上限仍未恢复到追保线以上。
	Aborted bool
	Final   Assessment
}

// Controller 风险状态机。等级只是缓存，用于识别状态变化，
// 每次评估都按账户当前数据重新计算。非并发安全。
type Controller struct {
	cfg      Config
	level    Level
	onChange func(a Assessment)
}

// NewController 创建风控。
func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// OnChange 注册等级变化回调。
func (c *Controller) OnChange(fn func(a Assessment)) {
	c.onChange = fn
}

func (c *Controller) Config() Config { return c.cfg }

// SetConfig 更新阈值与强平开关，对下一次评估生效。
func (c *Controller) SetConfig(cfg Config) { c.cfg = cfg }

// Level 最近一次评估的等级。
func (c *Controller) Level() Level { return c.level }

// Restore 恢复缓存等级，不触发回调。
func (c *Controller) Restore(l Level) { c.level = l }

// Assess 只计算不更新缓存。
func (c *Controller) Assess(acct Account) Assessment {
	ratio := MarginRatio(acct.Equity(), acct.MarginUsed())
	level := c.cfg.Thresholds.Classify(ratio)
	return Assessment{
		Level:   level,
		Prev:    c.level,
		Ratio:   ratio,
		Message: c.cfg.Thresholds.Message(level, ratio),
		Changed: level != c.level,
	}
}

// Evaluate 重新评估并更新缓存，等级变化时触发回调。
func (c *Controller) Evaluate(acct Account) Assessment {
	a := c.Assess(acct)
	c.level = a.Level
	if a.Changed && c.onChange != nil {
		c.onChange(a)
	}
	return a
}

// Check 评估；处于强平档且开启自动强平时执行强平。
func (c *Controller) Check(acct Account) (Assessment, *LiquidationReport) {
	a := c.Evaluate(acct)
	if a.Level != LevelLiq || !c.cfg.AutoLiquidate {
		return a, nil
	}
	rep := c.Liquidate(acct)
	return rep.Final, &rep
}

// Liquidate 强制平仓：先撤全部未成交委托，再逐手平掉实时保证金最大的持仓，
// 直到比例回到追保线以上或无持仓。循环次数上限为开始时总手数 + 10。
func (c *Controller) Liquidate(acct Account) LiquidationReport {
	rep := LiquidationReport{Cancelled: acct.CancelOpenOrders()}

	for _, e := range acct.Exposures() {
		rep.Cap += e.Qty
	}
	rep.Cap += 10

	for {
		ratio := MarginRatio(acct.Equity(), acct.MarginUsed())
		if ratio >= c.cfg.Thresholds.Call {
			rep.Recovered = true
			break
		}
		exps := acct.Exposures()
		if len(exps) == 0 {
			break
		}
		if rep.Iterations >= rep.Cap {
			rep.Aborted = true
			break
		}
		rep.Iterations++
		if acct.ForceClose(Largest(exps)) {
			rep.Lots++
		}
	}

	rep.Final = c.Evaluate(acct)
	return rep
}

// Largest 返回保证金最大的持仓，相同时取靠前的。exps 不能为空。
func Largest(exps []Exposure) Exposure {
	best := exps[0]
	for _, e := range exps[1:] {
		if e.Margin > best.Margin {
			best = e
		}
	}
	return best
}
