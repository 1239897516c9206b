package api

import (
	"errors"
	"net/http"

	"homehub/internal/device"
	"homehub/internal/logging"

	"github.com/gin-gonic/gin"
)

type ModeRequest struct {
	Mode string `json:"mode" form:"mode" binding:"required"`
}

type LockRequest struct {
	Lock string `json:"lock" form:"lock" binding:"required"`
}

// deviceErrorStatus maps controller errors to HTTP codes. Anything that is
// not a validation or configuration problem is the device's fault.
func deviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, device.ErrUnknownTarget):
		return http.StatusNotFound
	case errors.Is(err, device.ErrInvalidMode),
		errors.Is(err, device.ErrInvalidLock),
		errors.Is(err, device.ErrInvalidHistory):
		return http.StatusBadRequest
	case errors.Is(err, device.ErrModuleDisabled),
		errors.Is(err, device.ErrEmptyEndpoint):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// runCommand runs fn and reports {ok}.
func (s *Server) runCommand(c *gin.Context, name string, fn func() error) {
	log := logging.Ctx(c.Request.Context())
	if err := fn(); err != nil {
		log.Warn("command failed", "command", name, "error", err)
		respondError(c, deviceErrorStatus(err), err)
		return
	}
	log.Info("command sent", "command", name)
	respond(c, http.StatusOK, gin.H{"ok": true})
}

func (s *Server) modeHandler(c *gin.Context) {
	var req ModeRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	cfg, err := s.monitor.LoadConfig()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	target := c.Param("target")
	s.runCommand(c, target+" mode", func() error {
		return s.controller.SetMode(c.Request.Context(), cfg, target, req.Mode)
	})
}

func (s *Server) lockHandler(c *gin.Context) {
	var req LockRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	cfg, err := s.monitor.LoadConfig()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	target := c.Param("target")
	s.runCommand(c, target+" lock", func() error {
		return s.controller.SetLock(c.Request.Context(), cfg, target, req.Lock)
	})
}

func (s *Server) gateHandler(c *gin.Context) {
	cfg, err := s.monitor.LoadConfig()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	s.runCommand(c, "gate", func() error {
		return s.controller.TriggerGate(c.Request.Context(), cfg)
	})
}
