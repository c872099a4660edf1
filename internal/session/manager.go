package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"futures-sim-go/infrastructure/logger"
	"futures-sim-go/internal/engine"
	"futures-sim-go/internal/notify"
	"futures-sim-go/internal/store"
	"futures-sim-go/risk"
)

// ErrInvalidSession 会话 ID 为空
var ErrInvalidSession = errors.New("invalid session id")

// Manager 管理全部会话。每个会话一把锁，所有修改都按
// 加载 → 修改 → 保存 的顺序在锁内完成，锁释放后再通知观察者。
type Manager struct {
	store    store.Store
	notifier notify.Notifier
	logger   *logger.Logger
	rec      engine.Recorder

	mu       sync.Mutex
	cfg      engine.Config
	sessions map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	game *engine.Game
	dead bool // 已从 sessions 移除，持有者须重新获取
}

// Option 可选参数
type Option func(*Manager)

func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithRecorder(r engine.Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.rec = r
		}
	}
}

// NewManager 创建会话管理器
func NewManager(cfg engine.Config, st store.Store, opts ...Option) (*Manager, error) {
	if st == nil {
		return nil, errors.New("session store is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid game config: %w", err)
	}
	m := &Manager{
		store:    st,
		notifier: notify.Nop{},
		logger:   logger.NewNop(),
		rec:      engine.NopRecorder{},
		cfg:      cfg,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewID 生成新的会话 ID
func NewID() string {
	return uuid.NewString()
}

func (m *Manager) entry(sid string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sid]
	if !ok {
		e = &entry{}
		m.sessions[sid] = e
	}
	return e
}

// acquire 取得并锁住会话。排队期间 entry 被移除的话换新的重试，
// 保证同一会话任何时刻只有一个持有者。
func (m *Manager) acquire(sid string) *entry {
	for {
		e := m.entry(sid)
		e.mu.Lock()
		if !e.dead {
			return e
		}
		e.mu.Unlock()
	}
}

// retire 须持有会话锁。加锁顺序与其他路径一致：先会话锁后全局锁。
func (m *Manager) retire(sid string, e *entry) {
	e.dead = true
	e.game = nil
	m.mu.Lock()
	if m.sessions[sid] == e {
		delete(m.sessions, sid)
	}
	m.mu.Unlock()
}

func (m *Manager) gameOptions(sid string) []engine.Option {
	return []engine.Option{
		engine.WithLogger(m.logger.With(zap.String("session", sid))),
		engine.WithRecorder(m.rec),
	}
}

func (m *Manager) config() engine.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// ensure 在会话锁内调用：内存没有时从存储加载，存储也没有则开新局。
// 返回 created 表示新开局，需要落盘。
func (m *Manager) ensure(ctx context.Context, sid string, e *entry) (created bool, err error) {
	if e.game != nil {
		return false, nil
	}
	cfg := m.config()
	data, err := m.store.Load(ctx, sid)
	switch {
	case errors.Is(err, store.ErrNotFound):
		g, err := engine.New(cfg, m.gameOptions(sid)...)
		if err != nil {
			return false, err
		}
		e.game = g
		m.logger.Info("Session created", zap.String("session", sid))
		return true, nil
	case err != nil:
		return false, fmt.Errorf("load session: %w", err)
	}

	var st engine.State
	if err := json.Unmarshal(data, &st); err != nil {
		return false, fmt.Errorf("decode session %s: %w", sid, err)
	}
	g, err := engine.Restore(cfg, st, m.gameOptions(sid)...)
	if err != nil {
		return false, fmt.Errorf("restore session %s: %w", sid, err)
	}
	e.game = g
	m.logger.Info("Session loaded", zap.String("session", sid), zap.Int("tick", st.Clock.Tick))
	return false, nil
}

func (m *Manager) save(ctx context.Context, sid string, g *engine.Game) error {
	st, err := g.Export()
	if err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sid, err)
	}
	if err := m.store.Save(ctx, sid, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Do 在会话锁内执行修改并保存，解锁后推送最新快照。
// 保存失败时内存中的修改保留，错误返回给调用方。
func (m *Manager) Do(ctx context.Context, sid string, fn func(g *engine.Game) error) (engine.Snapshot, error) {
	if sid == "" {
		return engine.Snapshot{}, ErrInvalidSession
	}
	e := m.acquire(sid)
	if _, err := m.ensure(ctx, sid, e); err != nil {
		// 加载失败的空会话不留在内存里
		m.retire(sid, e)
		e.mu.Unlock()
		m.logger.LogError(err, zap.String("session", sid))
		return engine.Snapshot{}, err
	}
	fnErr := fn(e.game)
	snap := e.game.Snapshot()
	saveErr := m.save(ctx, sid, e.game)
	e.mu.Unlock()

	if saveErr != nil {
		m.logger.LogError(saveErr, zap.String("session", sid))
	}
	m.notifier.Notify(sid, snap)
	return snap, multierr.Append(fnErr, saveErr)
}

// View 在会话锁内只读访问。新开的会话会先落盘。
func (m *Manager) View(ctx context.Context, sid string, fn func(g *engine.Game)) error {
	if sid == "" {
		return ErrInvalidSession
	}
	e := m.acquire(sid)
	created, err := m.ensure(ctx, sid, e)
	if err != nil {
		m.retire(sid, e)
		e.mu.Unlock()
		m.logger.LogError(err, zap.String("session", sid))
		return err
	}
	defer e.mu.Unlock()
	if created {
		if err := m.save(ctx, sid, e.game); err != nil {
			return err
		}
	}
	fn(e.game)
	return nil
}

// Bootstrap 品种表与规格
func (m *Manager) Bootstrap(ctx context.Context, sid string) (engine.Bootstrap, error) {
	var b engine.Bootstrap
	err := m.View(ctx, sid, func(g *engine.Game) { b = g.Bootstrap() })
	return b, err
}

// State 当前快照
func (m *Manager) State(ctx context.Context, sid string) (engine.Snapshot, error) {
	var s engine.Snapshot
	err := m.View(ctx, sid, func(g *engine.Game) { s = g.Snapshot() })
	return s, err
}

// Tick 推进一个 tick
func (m *Manager) Tick(ctx context.Context, sid string) (engine.TickResult, error) {
	var res engine.TickResult
	_, err := m.Do(ctx, sid, func(g *engine.Game) error {
		res = g.AdvanceTick()
		return nil
	})
	return res, err
}

// PlaceOrder 下单；被拒的委托同样返回 nil error，原因在结果里
func (m *Manager) PlaceOrder(ctx context.Context, sid string, req engine.PlaceOrderRequest) (engine.OrderResult, error) {
	var res engine.OrderResult
	_, err := m.Do(ctx, sid, func(g *engine.Game) error {
		res = g.PlaceOrder(req)
		return nil
	})
	return res, err
}

// CancelAll 撤销全部未成交委托
func (m *Manager) CancelAll(ctx context.Context, sid string) (int, error) {
	var n int
	_, err := m.Do(ctx, sid, func(g *engine.Game) error {
		n = g.CancelAllOrders()
		return nil
	})
	return n, err
}

// Close 手动平仓
func (m *Manager) Close(ctx context.Context, sid string, req engine.CloseRequest) (bool, error) {
	var ok bool
	_, err := m.Do(ctx, sid, func(g *engine.Game) error {
		ok = g.ClosePosition(req)
		return nil
	})
	return ok, err
}

func (m *Manager) ResetPlayer(ctx context.Context, sid string) error {
	_, err := m.Do(ctx, sid, func(g *engine.Game) error {
		g.ResetPlayer()
		return nil
	})
	return err
}

func (m *Manager) ResetMarket(ctx context.Context, sid string) error {
	_, err := m.Do(ctx, sid, func(g *engine.Game) error {
		g.ResetMarket()
		return nil
	})
	return err
}

func (m *Manager) ResetAll(ctx context.Context, sid string) error {
	_, err := m.Do(ctx, sid, func(g *engine.Game) error {
		g.ResetAll()
		return nil
	})
	return err
}

// Export 导出会话完整状态
func (m *Manager) Export(ctx context.Context, sid string) (engine.State, error) {
	var (
		st     engine.State
		expErr error
	)
	err := m.View(ctx, sid, func(g *engine.Game) { st, expErr = g.Export() })
	if err != nil {
		return engine.State{}, err
	}
	return st, expErr
}

// Import 用导出数据替换会话，失败时原会话不变
func (m *Manager) Import(ctx context.Context, sid string, st engine.State) (engine.Snapshot, error) {
	if sid == "" {
		return engine.Snapshot{}, ErrInvalidSession
	}
	g, err := engine.Restore(m.config(), st, m.gameOptions(sid)...)
	if err != nil {
		return engine.Snapshot{}, err
	}
	e := m.acquire(sid)
	e.game = g
	snap := g.Snapshot()
	saveErr := m.save(ctx, sid, g)
	e.mu.Unlock()

	m.logger.Info("Session imported", zap.String("session", sid), zap.Int("tick", snap.Tick))
	m.notifier.Notify(sid, snap)
	return snap, saveErr
}

// Delete 删除会话，内存与存储都清掉。存储删除在会话锁内完成，
// 排队中的调用拿到锁后只会看到一个全新的会话。
func (m *Manager) Delete(ctx context.Context, sid string) error {
	e := m.acquire(sid)
	defer e.mu.Unlock()
	err := m.store.Delete(ctx, sid)
	m.retire(sid, e)
	return err
}

// IDs 内存中的会话，按 ID 排序
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len 内存中的会话数
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// TickAll 推进内存中的全部会话，供自动推进使用
func (m *Manager) TickAll(ctx context.Context) (int, error) {
	var (
		n   int
		err error
	)
	for _, sid := range m.IDs() {
		if ctx.Err() != nil {
			return n, multierr.Append(err, ctx.Err())
		}
		if _, e := m.Tick(ctx, sid); e != nil {
			err = multierr.Append(err, fmt.Errorf("session %s: %w", sid, e))
			continue
		}
		n++
	}
	return n, err
}

// ApplyRisk 更新风控参数：之后新建或加载的会话使用新参数，内存中的会话立即生效
func (m *Manager) ApplyRisk(cfg risk.Config) error {
	if err := cfg.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid risk thresholds: %w", err)
	}
	m.mu.Lock()
	m.cfg.Risk = cfg
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	var err error
	for _, e := range entries {
		e.mu.Lock()
		if e.game != nil {
			err = multierr.Append(err, e.game.SetRiskConfig(cfg))
		}
		e.mu.Unlock()
	}
	m.logger.Info("Risk config applied",
		zap.Float64("warn", cfg.Thresholds.Warn),
		zap.Float64("call", cfg.Thresholds.Call),
		zap.Float64("liq", cfg.Thresholds.Liq),
		zap.Bool("auto_liquidate", cfg.AutoLiquidate),
		zap.Int("sessions", len(entries)))
	return err
}

// Shutdown 关闭底层存储
func (m *Manager) Shutdown() error {
	return m.store.Close()
}
