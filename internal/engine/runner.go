package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"futures-sim-go/infrastructure/logger"
)

// RunnerState 自动推进状态
type RunnerState int

const (
	// StateIdle 空闲状态
	StateIdle RunnerState = iota
	// StateRunning 运行状态
	StateRunning
	// StatePaused 暂停状态
	StatePaused
	// StateStopped 停止状态
	StateStopped
)

// String 返回状态名称
func (s RunnerState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Ticker 被定时推进的对象，通常是会话管理器
type Ticker interface {
	TickAll(ctx context.Context) (int, error)
}

// RunnerStats 运行统计
type RunnerStats struct {
	StartTime    time.Time
	TotalRounds  int64
	TotalTicks   int64
	TotalErrors  int64
	LastTickTime time.Time
}

// Runner 按固定间隔自动推进全部会话
type Runner struct {
	target   Ticker
	interval time.Duration
	logger   *logger.Logger

	state RunnerState
	mu    sync.RWMutex

	stopChan chan struct{}
	doneChan chan struct{}

	stats   RunnerStats
	statsMu sync.RWMutex
}

// NewRunner 创建自动推进器
func NewRunner(target Ticker, interval time.Duration, log *logger.Logger) (*Runner, error) {
	if target == nil {
		return nil, fmt.Errorf("runner target is nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid tick interval %v", interval)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{
		target:   target,
		interval: interval,
		logger:   log,
		state:    StateIdle,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 启动
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle && r.state != StateStopped {
		r.mu.Unlock()
		return fmt.Errorf("runner already started (state: %s)", r.state)
	}
	// 如果从 StateStopped 复启，需要重建通道
	if r.state == StateStopped {
		r.stopChan = make(chan struct{})
		r.doneChan = make(chan struct{})
	}
	r.state = StateRunning
	stop, done := r.stopChan, r.doneChan
	r.mu.Unlock()

	r.statsMu.Lock()
	r.stats.StartTime = time.Now()
	r.statsMu.Unlock()

	r.logger.Info("Auto ticker starting", zap.Duration("interval", r.interval))
	go r.run(ctx, stop, done)
	return nil
}

// Stop 停止，重复调用直接返回
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.state == StateStopped || r.state == StateIdle {
		r.mu.Unlock()
		return nil
	}
	stop, done := r.stopChan, r.doneChan
	r.mu.Unlock()

	select {
	case <-stop:
	default:
		close(stop)
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		r.logger.Warn("Timeout waiting for auto ticker to stop")
	}

	r.mu.Lock()
	r.state = StateStopped
	r.mu.Unlock()

	r.logger.Info("Auto ticker stopped")
	return nil
}

// Pause 暂停
func (r *Runner) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRunning {
		return fmt.Errorf("runner not running (state: %s)", r.state)
	}
	r.state = StatePaused
	r.logger.Info("Auto ticker paused")
	return nil
}

// Resume 恢复
func (r *Runner) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePaused {
		return fmt.Errorf("runner not paused (state: %s)", r.state)
	}
	r.state = StateRunning
	r.logger.Info("Auto ticker resumed")
	return nil
}

// run 主循环。无论因 Stop 还是 ctx 结束退出，状态都回到 StateStopped，之后可再次 Start。
func (r *Runner) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		r.mu.Lock()
		r.state = StateStopped
		r.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Context done, stopping auto ticker")
			return
		case <-stop:
			return
		case <-ticker.C:
			r.onTick(ctx)
		}
	}
}

func (r *Runner) onTick(ctx context.Context) {
	if r.State() == StatePaused {
		return
	}
	n, err := r.target.TickAll(ctx)

	r.statsMu.Lock()
	r.stats.TotalRounds++
	r.stats.TotalTicks += int64(n)
	r.stats.LastTickTime = time.Now()
	if err != nil {
		r.stats.TotalErrors++
	}
	r.statsMu.Unlock()

	if err != nil {
		r.logger.Error("Auto tick failed", zap.Int("ticked", n), zap.Error(err))
	}
}

// State 当前状态
func (r *Runner) State() RunnerState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Stats 统计信息
func (r *Runner) Stats() RunnerStats {
	r.statsMu.RLock()
	defer r.statsMu.RUnlock()
	return r.stats
}
