package risk

import "errors"

// 委托校验拒单原因，错误文本即返回给玩家的 reason。
var (
	ErrUnknownSymbol     = errors.New("unknown symbol")
	ErrInvalidQty        = errors.New("qty must be > 0")
	ErrInvalidSide       = errors.New("side must be buy or sell")
	ErrInvalidEffect     = errors.New("effect must be open or close")
	ErrInvalidPrice      = errors.New("price must be > 0")
	ErrPositionNotEnough = errors.New("position not enough")
	ErrMarginNotEnough   = errors.New("margin not enough")
)

// Reason 拒单原因的短标签，用于指标。
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownSymbol):
		return "unknown_symbol"
	case errors.Is(err, ErrInvalidQty):
		return "invalid_qty"
	case errors.Is(err, ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, ErrInvalidEffect):
		return "invalid_effect"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, ErrPositionNotEnough):
		return "position_not_enough"
	case errors.Is(err, ErrMarginNotEnough):
		return "margin_not_enough"
	default:
		return "other"
	}
}
