// Package metrics exposes Prometheus metrics over a dedicated HTTP listener.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"futures-sim-go/infrastructure/logger"
)

// Server 独立的指标监听
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *logger.Logger
}

// StartMetricsServer 启动Prometheus指标服务器，h 通常是 monitor.Handler()
func StartMetricsServer(addr string, h http.Handler, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: log,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("Metrics server listening", zap.String("addr", ln.Addr().String()))
	return s, nil
}

// Addr 实际监听地址，addr 传 :0 时有用
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
