package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	appconfig "futures-sim-go/config"
	"futures-sim-go/infrastructure/logger"
)

// HotReloadConfig 热更新配置
type HotReloadConfig struct {
	Enabled      bool          // 是否启用热更新
	CooldownTime time.Duration // 冷却时间，避免频繁更新
}

// DefaultHotReloadConfig 默认热更新配置
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:      true,
		CooldownTime: 2 * time.Second,
	}
}

// Applier 配置应用器
type Applier interface {
	Apply(cfg appconfig.AppConfig) error
}

// ApplierFunc 函数适配
type ApplierFunc func(cfg appconfig.AppConfig) error

func (f ApplierFunc) Apply(cfg appconfig.AppConfig) error { return f(cfg) }

type namedApplier struct {
	name    string
	applier Applier
}

// HotReloader 配置热更新器。监听配置文件所在目录，
// 编辑器先写临时文件再改名的保存方式也能收到。
type HotReloader struct {
	config     HotReloadConfig
	configPath string
	watcher    *fsnotify.Watcher
	logger     *logger.Logger
	load       func(path string) (appconfig.AppConfig, error)

	mu         sync.RWMutex
	appliers   []namedApplier
	lastReload time.Time
	current    appconfig.AppConfig
	running    bool

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewHotReloader 创建热更新器
func NewHotReloader(configPath string, cfg HotReloadConfig, log *logger.Logger) (*HotReloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		abs = configPath
	}

	return &HotReloader{
		config:     cfg,
		configPath: filepath.Clean(abs),
		watcher:    watcher,
		logger:     log,
		load:       func(path string) (appconfig.AppConfig, error) { return appconfig.LoadWithEnvOverrides(path) },
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}, nil
}

// RegisterApplier 注册配置应用器，按注册顺序执行
func (h *HotReloader) RegisterApplier(name string, applier Applier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appliers = append(h.appliers, namedApplier{name: name, applier: applier})
}

// Start 启动热更新监听
func (h *HotReloader) Start(ctx context.Context) error {
	if !h.config.Enabled {
		return nil
	}

	// 添加配置文件所在目录到监听
	if err := h.watcher.Add(filepath.Dir(h.configPath)); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	h.mu.Lock()
	h.running = true
	h.mu.Unlock()
	go h.watch(ctx)

	h.logger.Info("Config hot reload started", zap.String("path", h.configPath))
	return nil
}

// Stop 停止热更新，可重复调用
func (h *HotReloader) Stop() error {
	var err error
	h.stopOnce.Do(func() {
		close(h.stopChan)

		h.mu.RLock()
		running := h.running
		h.mu.RUnlock()
		if running {
			// 等待 goroutine 结束（带超时）
			select {
			case <-h.doneChan:
			case <-time.After(1 * time.Second):
			}
		}
		err = h.watcher.Close()
	})
	return err
}

// watch 监听文件变化
func (h *HotReloader) watch(ctx context.Context) {
	defer close(h.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopChan:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != h.configPath {
				continue
			}
			// 只处理写入和创建事件
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				h.handleConfigChange()
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			// 记录错误但继续监听
			h.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

// handleConfigChange 处理配置变化。新配置不合法时保持现有参数。
func (h *HotReloader) handleConfigChange() {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 检查冷却时间
	if !h.lastReload.IsZero() && time.Since(h.lastReload) < h.config.CooldownTime {
		return
	}

	cfg, err := h.load(h.configPath)
	if err != nil {
		h.logger.Warn("Config reload rejected", zap.String("path", h.configPath), zap.Error(err))
		return
	}

	var applyErr error
	for _, a := range h.appliers {
		if err := a.applier.Apply(cfg); err != nil {
			applyErr = multierr.Append(applyErr, fmt.Errorf("%s: %w", a.name, err))
		}
	}
	if applyErr != nil {
		h.logger.LogError(applyErr, zap.String("path", h.configPath))
	}

	h.current = cfg
	h.lastReload = time.Now()
	h.logger.Info("Config reloaded", zap.String("path", h.configPath), zap.Int("appliers", len(h.appliers)))
}

// GetLastReloadTime 获取最后重载时间
func (h *HotReloader) GetLastReloadTime() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastReload
}

// Current 最近一次成功加载的配置，尚未重载时为零值
func (h *HotReloader) Current() appconfig.AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// RiskApplier 把风控阈值应用到会话管理器
func RiskApplier(apply func(cfg appconfig.RiskConfig) error) Applier {
	return ApplierFunc(func(cfg appconfig.AppConfig) error {
		return apply(cfg.Risk)
	})
}
