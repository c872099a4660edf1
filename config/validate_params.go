package config

import (
	"fmt"

	"go.uber.org/multierr"
)

// ValidateParams 校验对局与风控参数，热更新前也会调用。
func ValidateParams(cfg AppConfig) error {
	var err error
	if cfg.Game.InitialCash <= 0 {
		err = multierr.Append(err, ErrInvalid("game.initialCash must be > 0"))
	}
	if cfg.Game.TicksPerDay <= 0 {
		err = multierr.Append(err, ErrInvalid("game.ticksPerDay must be > 0"))
	}
	if cfg.Game.FeePerLot < 0 {
		err = multierr.Append(err, ErrInvalid("game.feePerLot must be >= 0"))
	}
	if e := cfg.Risk.Thresholds.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("risk: %w", e))
	}
	return err
}

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }
