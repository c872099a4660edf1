package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"futures-sim-go/internal/engine"
)

// 导入数据上限
const maxImportBytes = 8 << 20

func (s *Server) handleBootstrap(c *gin.Context) {
	b, err := s.mgr.Bootstrap(c.Request.Context(), s.session(c))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (s *Server) handleState(c *gin.Context) {
	snap, err := s.mgr.State(c.Request.Context(), s.session(c))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	writeJSON(c, http.StatusOK, snap)
}

func (s *Server) handleTick(c *gin.Context) {
	res, err := s.mgr.Tick(c.Request.Context(), s.session(c))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "result": res})
}

// handlePlaceOrder 业务上被拒的委托返回 200，ok=false
func (s *Server) handlePlaceOrder(c *gin.Context) {
	sid := s.session(c)
	var req engine.PlaceOrderRequest
	if err := decodeBody(c, &req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	res, err := s.mgr.PlaceOrder(c.Request.Context(), sid, req)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (s *Server) handleCancelAll(c *gin.Context) {
	n, err := s.mgr.CancelAll(c.Request.Context(), s.session(c))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "cancelled": n})
}

func (s *Server) handleClose(c *gin.Context) {
	sid := s.session(c)
	var req engine.CloseRequest
	if err := decodeBody(c, &req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	closed, err := s.mgr.Close(c.Request.Context(), sid, req)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "closed": closed})
}

func (s *Server) handleResetPlayer(c *gin.Context) {
	s.reset(c, s.mgr.ResetPlayer)
}

func (s *Server) handleResetMarket(c *gin.Context) {
	s.reset(c, s.mgr.ResetMarket)
}

func (s *Server) handleResetAll(c *gin.Context) {
	s.reset(c, s.mgr.ResetAll)
}

func (s *Server) reset(c *gin.Context, fn func(ctx context.Context, sid string) error) {
	if err := fn(c.Request.Context(), s.session(c)); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleExport(c *gin.Context) {
	st, err := s.mgr.Export(c.Request.Context(), s.session(c))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="futures-sim-state.json"`)
	writeJSON(c, http.StatusOK, st)
}

// handleImport 数据非法时返回 400，原会话不变
func (s *Server) handleImport(c *gin.Context) {
	sid := s.session(c)
	var st engine.State
	if err := decodeBody(c, &st); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if err := st.Validate(); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	snap, err := s.mgr.Import(c.Request.Context(), sid, st)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "state": snap})
}

func decodeBody(c *gin.Context, v any) error {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes+1))
	if err != nil {
		return err
	}
	if len(body) > maxImportBytes {
		return errors.New("request body too large")
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}
	return json.Unmarshal(body, v)
}
