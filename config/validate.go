package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

var structValidator = validator.New()

// Validate 汇总各段配置的全部错误
func Validate(cfg AppConfig) error {
	var err error
	if cfg.Env == "" {
		err = multierr.Append(err, ErrInvalid("env is required"))
	}
	if e := structValidator.Struct(cfg.Server); e != nil {
		err = multierr.Append(err, fmt.Errorf("server: %w", e))
	}
	if cfg.Server.AutoTickInterval < 0 {
		err = multierr.Append(err, ErrInvalid("server.autoTickInterval must be >= 0"))
	}
	err = multierr.Append(err, ValidateParams(cfg))
	if e := cfg.Store.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("store: %w", e))
	}
	if _, e := zapcore.ParseLevel(cfg.Log.Level); e != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", e))
	}
	return err
}
