package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"futures-sim-go/infrastructure/logger"
)

// MySQLConfig MySQL 连接参数
type MySQLConfig struct {
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Host      string `yaml:"host"`
	DBName    string `yaml:"dbName"`
	Charset   string `yaml:"charset"`
	Loc       string `yaml:"loc"`
	ParseTime bool   `yaml:"parseTime"`

	MaxIdleConns    int           `yaml:"maxIdleConns"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN 拼接 go-sql-driver 格式的连接串
func (c MySQLConfig) DSN() string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	loc := c.Loc
	if loc == "" {
		loc = "Local"
	}
	return fmt.Sprintf(
		"%s:%s@tcp(%s)/%s?charset=%s&parseTime=%t&loc=%s",
		c.User, c.Password, c.Host, c.DBName, charset, c.ParseTime, loc,
	)
}

// sessionRow sessions 表
type sessionRow struct {
	SessionID string         `gorm:"column:session_id;primaryKey;size:64"`
	StateJSON datatypes.JSON `gorm:"column:state_json;type:json;not null"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (sessionRow) TableName() string { return "sessions" }

// MySQL 基于 gorm 的会话存储
type MySQL struct {
	db     *gorm.DB
	logger *logger.Logger
}

// OpenMySQL 连接并建表
func OpenMySQL(cfg MySQLConfig, log *logger.Logger) (*MySQL, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	s, err := NewMySQL(db, log)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 10))
	sqlDB.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 100))
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	sqlDB.SetConnMaxLifetime(lifetime)

	s.logger.Info("MySQL session store ready", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
	return s, nil
}

// NewMySQL 使用已有连接，自动迁移 sessions 表
func NewMySQL(db *gorm.DB, log *logger.Logger) (*MySQL, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}
	return &MySQL{db: db, logger: log}, nil
}

func (s *MySQL) Load(ctx context.Context, sessionID string) ([]byte, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return []byte(row.StateJSON), nil
}

func (s *MySQL) Save(ctx context.Context, sessionID string, state []byte) error {
	now := time.Now()
	row := sessionRow{
		SessionID: sessionID,
		StateJSON: datatypes.JSON(state),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state_json", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return nil
}

func (s *MySQL) Delete(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&sessionRow{}).Error
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

func (s *MySQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
