package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"futures-sim-go/config"
	"futures-sim-go/infrastructure/logger"
	"futures-sim-go/infrastructure/monitor"
	hotreload "futures-sim-go/internal/config"
	"futures-sim-go/internal/engine"
	"futures-sim-go/internal/notify"
	"futures-sim-go/internal/server"
	"futures-sim-go/internal/session"
	"futures-sim-go/internal/store"
	"futures-sim-go/metrics"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	envFile := flag.String("env", ".env", "环境变量文件，不存在则忽略")
	hotReload := flag.Bool("hotReload", true, "监听配置文件，热更新风控阈值")
	flag.Parse()

	if err := run(*cfgPath, *envFile, *hotReload); err != nil {
		fmt.Fprintf(os.Stderr, "futsim: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, envFile string, hotReload bool) (err error) {
	cfg, err := config.LoadWithEnvOverrides(cfgPath, envFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = log.Close() }()
	log = log.With(zap.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := monitor.New(cfg.Monitor)

	st, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return fmt.Errorf("打开会话存储失败: %w", err)
	}

	hub := server.NewHub(cfg.Server.WSSendBuffer, log, mon)
	notifiers := notify.Multi{hub}
	var publisher *notify.NATSPublisher
	if cfg.NATS.Enabled() {
		publisher, err = notify.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log)
		if err != nil {
			return multierr.Append(fmt.Errorf("连接 NATS 失败: %w", err), st.Close())
		}
		notifiers = append(notifiers, publisher)
	}

	mgr, err := session.NewManager(cfg.EngineConfig(), st,
		session.WithNotifier(notifiers),
		session.WithLogger(log),
		session.WithRecorder(mon),
	)
	if err != nil {
		return multierr.Append(err, st.Close())
	}
	mon.RegisterSessions(mgr.Len)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(cfg.Server, mgr,
		server.WithMonitor(mon),
		server.WithLogger(log),
		server.WithHub(hub),
	)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var metricsServer *metrics.Server
	if cfg.Server.MetricsAddr != "" {
		metricsServer, err = metrics.StartMetricsServer(cfg.Server.MetricsAddr, mon.Handler(), log)
		if err != nil {
			log.Warn("Metrics server disabled", zap.Error(err))
		}
	}

	var runner *engine.Runner
	if cfg.Server.AutoTickInterval > 0 {
		runner, err = engine.NewRunner(mgr, cfg.Server.AutoTickInterval, log)
		if err != nil {
			return err
		}
		if err := runner.Start(ctx); err != nil {
			return err
		}
	}

	applyRisk := func(rc config.RiskConfig) error { return mgr.ApplyRisk(rc.Config()) }
	var reloader *hotreload.HotReloader
	if hotReload {
		reloader = startHotReload(ctx, cfgPath, log, applyRisk)
	}

	// 通知 systemd 服务已就绪，非 systemd 环境下为空操作
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify READY failed", zap.Error(err))
	}
	log.Info("Futures simulator started",
		zap.String("store", cfg.Store.Driver),
		zap.Bool("nats", publisher != nil),
		zap.Duration("auto_tick", cfg.Server.AutoTickInterval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		log.LogError(err)
		return err
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var errs error
	if runner != nil {
		errs = multierr.Append(errs, runner.Stop())
	}
	if reloader != nil {
		errs = multierr.Append(errs, reloader.Stop())
	}
	errs = multierr.Append(errs, httpServer.Shutdown(shutdownCtx))
	srv.Close()
	if metricsServer != nil {
		errs = multierr.Append(errs, metricsServer.Shutdown(shutdownCtx))
	}
	if publisher != nil {
		errs = multierr.Append(errs, publisher.Close())
	}
	errs = multierr.Append(errs, mgr.Shutdown())
	cancel()

	if errs != nil {
		log.LogError(errs)
		return errs
	}
	log.Info("Shutdown complete")
	return nil
}

// startHotReload 优先使用 fsnotify，创建失败时退回轮询
func startHotReload(ctx context.Context, path string, log *logger.Logger, applyRisk func(config.RiskConfig) error) *hotreload.HotReloader {
	reloader, err := hotreload.NewHotReloader(path, hotreload.DefaultHotReloadConfig(), log)
	if err == nil {
		reloader.RegisterApplier("risk", hotreload.RiskApplier(applyRisk))
		if err = reloader.Start(ctx); err == nil {
			return reloader
		}
		_ = reloader.Stop()
	}
	log.Warn("fsnotify unavailable, polling config file", zap.Error(err))

	w := config.Watcher{Path: path, Interval: 2 * time.Second, Logger: log}
	go func() {
		_ = w.Start(ctx, func(cfg config.AppConfig) {
			if err := applyRisk(cfg.Risk); err != nil {
				log.LogError(err)
			}
		})
	}()
	return nil
}
