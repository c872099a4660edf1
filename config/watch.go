package config

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"futures-sim-go/infrastructure/logger"
)

// Watcher 轮询文件修改时间，用于 fsnotify 不可用的环境（如网络文件系统）。
type Watcher struct {
	Path     string
	Interval time.Duration
	Logger   *logger.Logger
}

// Start begins polling; callback receives latest valid config on change.
func (w Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if w.Interval <= 0 {
		w.Interval = 2 * time.Second
	}
	log := w.Logger
	if log == nil {
		log = logger.NewNop()
	}

	var lastMod time.Time
	if info, err := readFileInfo(w.Path); err == nil {
		lastMod = info.ModTime()
	}
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := readFileInfo(w.Path)
			if err != nil {
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()
			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				log.Warn("Config reload rejected", zap.String("path", w.Path), zap.Error(err))
				continue
			}
			if onUpdate != nil {
				onUpdate(cfg)
			}
		}
	}
}

// readFileInfo is extracted for testing/mocking.
var readFileInfo = func(path string) (info interface{ ModTime() time.Time }, err error) {
	return os.Stat(path)
}
