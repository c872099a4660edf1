package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"futures-sim-go/infrastructure/logger"
	"futures-sim-go/infrastructure/monitor"
	"futures-sim-go/internal/engine"
	"futures-sim-go/internal/server"
	"futures-sim-go/internal/store"
	"futures-sim-go/order"
	"futures-sim-go/risk"
)

// EnvPrefix 环境变量前缀，例如 FUTSIM_ADDR
const EnvPrefix = "FUTSIM"

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string         `yaml:"env"`
	Server  server.Config  `yaml:"server"`
	Game    GameConfig     `yaml:"game"`
	Risk    RiskConfig     `yaml:"risk"`
	Store   store.Config   `yaml:"store"`
	NATS    NATSConfig     `yaml:"nats"`
	Log     logger.Config  `yaml:"log"`
	Monitor monitor.Config `yaml:"monitor"`
}

// GameConfig 对局参数，品种表固定
type GameConfig struct {
	InitialCash float64 `yaml:"initialCash"`
	TicksPerDay int     `yaml:"ticksPerDay"`
	FeePerLot   float64 `yaml:"feePerLot"`
}

// RiskConfig 风控阈值，可热更新
type RiskConfig struct {
	risk.Thresholds `yaml:",inline"`
	AutoLiquidate   bool `yaml:"autoLiquidate"`
}

// NATSConfig 状态变更推送，留空不启用
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

func (c NATSConfig) Enabled() bool { return c.URL != "" }

// Default 默认配置，YAML 中缺省的字段保持默认值
func Default() AppConfig {
	def := engine.DefaultConfig()
	return AppConfig{
		Env:    "dev",
		Server: server.DefaultConfig(),
		Game: GameConfig{
			InitialCash: def.InitialCash,
			TicksPerDay: def.TicksPerDay,
			FeePerLot:   order.DefaultFeePerLot,
		},
		Risk: RiskConfig{
			Thresholds:    risk.DefaultThresholds(),
			AutoLiquidate: true,
		},
		Store:   store.Config{Driver: store.DriverMemory},
		NATS:    NATSConfig{SubjectPrefix: "futsim.state"},
		Log:     logger.DefaultConfig(),
		Monitor: monitor.DefaultConfig(),
	}
}

// RiskConfig 转成风控模块参数
func (c RiskConfig) Config() risk.Config {
	return risk.Config{Thresholds: c.Thresholds, AutoLiquidate: c.AutoLiquidate}
}

// EngineConfig 组装对局配置
func (c AppConfig) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.InitialCash = c.Game.InitialCash
	cfg.TicksPerDay = c.Game.TicksPerDay
	cfg.FeePerLot = c.Game.FeePerLot
	cfg.Risk = c.Risk.Config()
	return cfg
}

// Load reads YAML config from path on top of defaults and validates it.
func Load(path string) (AppConfig, error) {
	cfg, err := parse(path)
	if err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parse(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// envOverrides 可由环境变量覆盖的字段，多为部署相关与敏感信息
type envOverrides struct {
	Env              string        `envconfig:"ENV"`
	Addr             string        `envconfig:"ADDR"`
	MetricsAddr      *string       `envconfig:"METRICS_ADDR"`
	AutoTickInterval time.Duration `envconfig:"AUTO_TICK_INTERVAL"`
	StoreDriver      string        `envconfig:"STORE_DRIVER"`
	MySQLHost        string        `envconfig:"MYSQL_HOST"`
	MySQLUser        string        `envconfig:"MYSQL_USER"`
	MySQLPassword    string        `envconfig:"MYSQL_PASSWORD"`
	MySQLDB          string        `envconfig:"MYSQL_DB"`
	PostgresURL      string        `envconfig:"POSTGRES_URL"`
	NATSURL          string        `envconfig:"NATS_URL"`
	LogLevel         string        `envconfig:"LOG_LEVEL"`
}

func (o envOverrides) apply(cfg *AppConfig) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Env, o.Env)
	set(&cfg.Server.Addr, o.Addr)
	if o.MetricsAddr != nil {
		cfg.Server.MetricsAddr = *o.MetricsAddr
	}
	if o.AutoTickInterval > 0 {
		cfg.Server.AutoTickInterval = o.AutoTickInterval
	}
	set(&cfg.Store.Driver, o.StoreDriver)
	set(&cfg.Store.MySQL.Host, o.MySQLHost)
	set(&cfg.Store.MySQL.User, o.MySQLUser)
	set(&cfg.Store.MySQL.Password, o.MySQLPassword)
	set(&cfg.Store.MySQL.DBName, o.MySQLDB)
	set(&cfg.Store.PostgresURL, o.PostgresURL)
	set(&cfg.NATS.URL, o.NATSURL)
	set(&cfg.Log.Level, o.LogLevel)
}

// LoadWithEnvOverrides loads config, then .env files (default ./.env, missing is fine),
// then FUTSIM_* env vars override deployment and secret fields.
func LoadWithEnvOverrides(path string, envFiles ...string) (AppConfig, error) {
	cfg, err := parse(path)
	if err != nil {
		return cfg, err
	}
	if err := loadDotEnv(envFiles...); err != nil {
		return cfg, err
	}
	var o envOverrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	o.apply(&cfg)
	return cfg, Validate(cfg)
}

// loadDotEnv 已存在的环境变量优先，文件不存在时跳过
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
