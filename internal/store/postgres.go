package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"futures-sim-go/infrastructure/logger"
)

const createSessionsSQL = `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id  TEXT PRIMARY KEY,
		state_json  JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)
`

const upsertSessionSQL = `
	INSERT INTO sessions (session_id, state_json, created_at, updated_at)
	VALUES ($1, $2, $3, $3)
	ON CONFLICT (session_id) DO UPDATE SET
		state_json = EXCLUDED.state_json,
		updated_at = EXCLUDED.updated_at
`

// Postgres 基于 pgx 连接池的会话存储
type Postgres struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

// OpenPostgres 建立连接池并建表
func OpenPostgres(ctx context.Context, url string, log *logger.Logger) (*Postgres, error) {
	db, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewPostgres(ctx, db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("Postgres session store ready")
	return s, nil
}

// NewPostgres 使用已有连接池
func NewPostgres(ctx context.Context, db *pgxpool.Pool, log *logger.Logger) (*Postgres, error) {
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.Exec(ctx, createSessionsSQL); err != nil {
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &Postgres{db: db, logger: log}, nil
}

func (s *Postgres) Load(ctx context.Context, sessionID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var state []byte
	err := s.db.QueryRow(ctx, `SELECT state_json FROM sessions WHERE session_id = $1`, sessionID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return state, nil
}

func (s *Postgres) Save(ctx context.Context, sessionID string, state []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	if _, err := s.db.Exec(ctx, upsertSessionSQL, sessionID, string(state), time.Now()); err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Postgres) Close() error {
	s.db.Close()
	return nil
}
