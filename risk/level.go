package risk

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// Level 账户风险等级
type Level int

const (
	// LevelNormal 正常
	LevelNormal Level = iota
	// LevelWarn 预警
	LevelWarn
	// LevelCall 追加保证金
	LevelCall
	// LevelLiq 强平
	LevelLiq
)

// String 返回等级名称
func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "NORMAL"
	case LevelWarn:
		return "WARN"
	case LevelCall:
		return "CALL"
	case LevelLiq:
		return "LIQ"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel 解析等级名称。
func ParseLevel(s string) (Level, error) {
	switch s {
	case "NORMAL":
		return LevelNormal, nil
	case "WARN":
		return LevelWarn, nil
	case "CALL":
		return LevelCall, nil
	case "LIQ":
		return LevelLiq, nil
	}
	return LevelNormal, fmt.Errorf("unknown risk level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Thresholds 维持担保比例分界线。
type Thresholds struct {
	Warn float64 `yaml:"warnRatio" json:"warn_ratio"`
	Call float64 `yaml:"callRatio" json:"call_ratio"`
	Liq  float64 `yaml:"liqRatio" json:"liq_ratio"`
}

// DefaultThresholds 1.20 / 1.10 / 1.00
func DefaultThresholds() Thresholds {
	return Thresholds{Warn: 1.20, Call: 1.10, Liq: 1.00}
}

// Validate 要求 0 < liq <= call <= warn。
func (t Thresholds) Validate() error {
	var err error
	if t.Liq <= 0 {
		err = multierr.Append(err, fmt.Errorf("liqRatio must be > 0, got %v", t.Liq))
	}
	if t.Call < t.Liq {
		err = multierr.Append(err, fmt.Errorf("callRatio %v must be >= liqRatio %v", t.Call, t.Liq))
	}
	if t.Warn < t.Call {
		err = multierr.Append(err, fmt.Errorf("warnRatio %v must be >= callRatio %v", t.Warn, t.Call))
	}
	return err
}

// Classify 按比例落档，分界点归入较安全的一档。
func (t Thresholds) Classify(ratio float64) Level {
	switch {
	case ratio >= t.Warn:
		return LevelNormal
	case ratio >= t.Call:
		return LevelWarn
	case ratio >= t.Liq:
		return LevelCall
	default:
		return LevelLiq
	}
}

// MarginRatio 权益 / 占用保证金；无保证金占用时为 +Inf。
func MarginRatio(equity, marginUsed float64) float64 {
	if marginUsed <= 0 {
		return math.Inf(1)
	}
	return equity / marginUsed
}

// Message 给玩家看的风险提示。
func (t Thresholds) Message(level Level, ratio float64) string {
	if math.IsInf(ratio, 1) {
		return "无保证金占用"
	}
	switch level {
	case LevelNormal:
		return fmt.Sprintf("维持担保比例 %.2f，风险正常", ratio)
	case LevelWarn:
		return fmt.Sprintf("维持担保比例 %.2f 低于预警线 %.2f", ratio, t.Warn)
	case LevelCall:
		return fmt.Sprintf("维持担保比例 %.2f 低于追保线 %.2f，请追加保证金或减仓", ratio, t.Call)
	default:
		return fmt.Sprintf("维持担保比例 %.2f 低于强平线 %.2f，触发强制平仓", ratio, t.Liq)
	}
}
