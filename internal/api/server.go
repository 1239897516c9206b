package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"homehub/config"
	"homehub/internal/device"
	"homehub/internal/logging"
	"homehub/internal/metrics"
	"homehub/internal/monitor"
	"homehub/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the caller supplied request id.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

type Server struct {
	router     *gin.Engine
	server     *http.Server
	port       int
	baseCtx    context.Context
	logger     *slog.Logger
	monitor    *monitor.Monitor
	dashboard  *monitor.Dashboard
	worker     *monitor.Worker
	realtime   *monitor.Realtime
	controller *device.Controller
	configs    *config.Store
	db         *storage.Database
	metrics    *metrics.Metrics
	hub        *Hub
}

type ServerConfig struct {
	Port       int
	Monitor    *monitor.Monitor
	Dashboard  *monitor.Dashboard
	Worker     *monitor.Worker
	Realtime   *monitor.Realtime
	Controller *device.Controller
	Configs    *config.Store
	Database   *storage.Database
	Metrics    *metrics.Metrics
	Hub        *Hub
	// BaseContext outlives single requests. Background loops started from a
	// handler, such as the realtime poller, are bound to it.
	BaseContext context.Context
	Logger      *slog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Ctx(context.Background())
	}
	baseCtx := cfg.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	s := &Server{
		router:     router,
		port:       cfg.Port,
		baseCtx:    baseCtx,
		logger:     logger.With("component", "api"),
		monitor:    cfg.Monitor,
		dashboard:  cfg.Dashboard,
		worker:     cfg.Worker,
		realtime:   cfg.Realtime,
		controller: cfg.Controller,
		configs:    cfg.Configs,
		db:         cfg.Database,
		metrics:    cfg.Metrics,
		hub:        cfg.Hub,
	}

	router.Use(s.requestID(), s.accessLog())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api/v1")
	{
		api.GET("/status", s.statusHandler)
		api.GET("/probe", s.probeHandler)
		api.GET("/history/:kind", s.historyHandler)

		api.POST("/commands/gate", s.gateHandler)
		api.POST("/commands/:target/mode", s.modeHandler)
		api.POST("/commands/:target/lock", s.lockHandler)

		api.GET("/config", s.getConfigHandler)
		api.PUT("/config", s.updateConfigHandler)

		api.GET("/events", s.eventsHandler)
		api.DELETE("/events", s.clearEventsHandler)

		api.GET("/readings", s.readingsHandler)
		api.GET("/readings/latest", s.latestReadingHandler)
		api.GET("/stats/daily", s.dailyStatsHandler)

		if s.hub != nil {
			api.GET("/ws", s.hub.ServeWS)
		}
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return s.baseCtx },
	}

	s.logger.Info("API server starting", "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requestID tags every request with the caller's X-Request-ID or a fresh
// uuid and echoes it back in the response header.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		l := s.logger.With("request_id", id)
		c.Request = c.Request.WithContext(logging.With(c.Request.Context(), l))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Ctx(c.Request.Context()).Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func requestIDOf(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// respond writes body with the request id added.
func respond(c *gin.Context, code int, body gin.H) {
	body[requestIDKey] = requestIDOf(c)
	c.JSON(code, body)
}

func respondError(c *gin.Context, code int, err error) {
	respond(c, code, gin.H{"ok": false, "error": err.Error()})
}
