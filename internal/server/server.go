// Package server is the vizweb host: it turns JSON requests into grid and
// engine commands and serves snapshots for a browser renderer.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	astar "github.com/pdrpinto/gridastar"
	"github.com/pdrpinto/gridastar/internal/config"
)

// maxDelay bounds the pause accepted by PUT /config/delay.
const maxDelay = time.Hour

// Options carries the host's collaborators. Zero values fall back to
// slog.Default and the global otel providers.
type Options struct {
	Logger         *slog.Logger
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler
}

// Server holds the router and the single session it serves.
type Server struct {
	cfg     config.Config
	session *Session
	logger  *slog.Logger
	router  *gin.Engine
}

// New builds the initial grid from cfg.Grid and wires the routes.
func New(cfg config.Config, options Options) (*Server, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	grid, err := buildGrid(cfg.Grid)
	if err != nil {
		return nil, err
	}

	engineOptions := []astar.Option{
		astar.WithLogger(logger),
		astar.WithIterationCap(cfg.Search.IterationCap),
	}
	if options.MeterProvider != nil {
		engineOptions = append(engineOptions, astar.WithMeterProvider(options.MeterProvider))
	}
	if options.TracerProvider != nil {
		engineOptions = append(engineOptions, astar.WithTracerProvider(options.TracerProvider))
	}

	s := &Server{
		cfg:     cfg,
		session: NewSession(grid, cfg.DriverConfig(), engineOptions...),
		logger:  logger,
	}
	s.router = s.routes(options)
	return s, nil
}

func buildGrid(cfg config.GridConfig) (*astar.Grid, error) {
	grid, err := astar.NewGrid(cfg.Cols, cfg.Rows)
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}
	start, goal := cfg.Markers()
	if !grid.SetStart(start.X, start.Y) {
		return nil, fmt.Errorf("build grid: start %s rejected", start)
	}
	if !grid.SetGoal(goal.X, goal.Y) {
		return nil, fmt.Errorf("build grid: goal %s rejected", goal)
	}
	for _, p := range cfg.Obstacles {
		grid.SetObstacle(p.X, p.Y, true)
	}
	return grid, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Session exposes the served session.
func (s *Server) Session() *Session { return s.session }

// Close releases the session.
func (s *Server) Close() { s.session.Close() }

func (s *Server) routes(options Options) *gin.Engine {
	router := gin.New()
	otelOptions := []otelgin.Option{}
	if options.TracerProvider != nil {
		otelOptions = append(otelOptions, otelgin.WithTracerProvider(options.TracerProvider))
	}
	router.Use(gin.Recovery(), otelgin.Middleware(s.cfg.Telemetry.ServiceName, otelOptions...), s.requestLogger())

	router.GET("/state", s.handleState)

	grid := router.Group("/grid")
	grid.POST("/resize", s.handleResize)
	grid.POST("/obstacle", s.handleObstacle)
	grid.POST("/toggle", s.handleToggle)
	grid.POST("/start", s.handleMarker(s.session.SetStart))
	grid.POST("/goal", s.handleMarker(s.session.SetGoal))

	run := router.Group("/run")
	run.POST("/start", s.handleRunStart)
	run.POST("/step", s.handleRunStep)
	run.POST("/complete", s.handleRunComplete)
	run.POST("/cancel", s.handleRunCancel)

	router.PUT("/config/delay", s.handleDelay)
	router.GET("/ws", s.handleWebSocket)

	if options.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(options.MetricsHandler))
	}
	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(began))
	}
}

// --- Requests ---

type pointRequest struct {
	X *int `json:"x" binding:"required"`
	Y *int `json:"y" binding:"required"`
}

type obstacleRequest struct {
	X     *int  `json:"x" binding:"required"`
	Y     *int  `json:"y" binding:"required"`
	Value *bool `json:"value" binding:"required"`
}

type resizeRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

type delayRequest struct {
	Enabled *bool `json:"enabled"`
	// DelayMS wins over Delay when both are set.
	DelayMS *int64  `json:"delayMs"`
	Delay   *string `json:"delay"`
}

type commandResponse struct {
	Accepted bool   `json:"accepted"`
	State    string `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// --- Handlers ---

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, newSnapshotView(s.session.Snapshot(), s.session.DriverConfig()))
}

func (s *Server) handleResize(c *gin.Context) {
	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.session.Resize(req.Cols, req.Rows); err != nil {
		s.writeError(c, err)
		return
	}
	s.accepted(c, true)
}

func (s *Server) handleObstacle(c *gin.Context) {
	var req obstacleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	s.accepted(c, s.session.SetObstacle(*req.X, *req.Y, *req.Value))
}

func (s *Server) handleToggle(c *gin.Context) {
	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	s.accepted(c, s.session.ToggleObstacle(*req.X, *req.Y))
}

func (s *Server) handleMarker(set func(x, y int) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pointRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}
		s.accepted(c, set(*req.X, *req.Y))
	}
}

func (s *Server) handleRunStart(c *gin.Context) {
	if err := s.session.Start(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	s.accepted(c, true)
}

func (s *Server) handleRunStep(c *gin.Context) {
	if _, err := s.session.Step(); err != nil {
		s.writeError(c, err)
		return
	}
	s.handleState(c)
}

func (s *Server) handleRunComplete(c *gin.Context) {
	if _, err := s.session.RunToCompletion(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	s.handleState(c)
}

func (s *Server) handleRunCancel(c *gin.Context) {
	if err := s.session.Cancel(); err != nil {
		s.writeError(c, err)
		return
	}
	s.accepted(c, true)
}

func (s *Server) handleDelay(c *gin.Context) {
	var req delayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	var delay *time.Duration
	switch {
	case req.DelayMS != nil:
		if *req.DelayMS < 0 || *req.DelayMS > maxDelay.Milliseconds() {
			s.badRequest(c, fmt.Errorf("delayMs must be between 0 and %d", maxDelay.Milliseconds()))
			return
		}
		d := time.Duration(*req.DelayMS) * time.Millisecond
		delay = &d
	case req.Delay != nil:
		d, err := time.ParseDuration(*req.Delay)
		if err != nil {
			s.badRequest(c, err)
			return
		}
		delay = &d
	}
	if delay != nil && (*delay < 0 || *delay > maxDelay) {
		s.badRequest(c, fmt.Errorf("delay must be between 0 and %s", maxDelay))
		return
	}

	c.JSON(http.StatusOK, newDelayView(s.session.SetDelay(req.Enabled, delay)))
}

// --- Responses ---

func (s *Server) accepted(c *gin.Context, accepted bool) {
	if !accepted {
		s.logger.Warn("command rejected", "path", c.Request.URL.Path)
	}
	c.JSON(http.StatusOK, commandResponse{
		Accepted: accepted,
		State:    s.session.Snapshot().State.String(),
	})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "bad_request"})
}

// writeError maps core sentinel errors to HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, astar.ErrInvalidDimension):
		status, kind = http.StatusBadRequest, "invalid_dimension"
	case errors.Is(err, astar.ErrMissingEndpoint):
		status, kind = http.StatusConflict, "missing_endpoint"
	case errors.Is(err, astar.ErrNoOp):
		status, kind = http.StatusConflict, "no_op"
	case errors.Is(err, astar.ErrInternalInvariant):
		status, kind = http.StatusInternalServerError, "internal_invariant"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("command failed", "path", c.Request.URL.Path, "error", err)
	} else {
		s.logger.Warn("command refused", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, errorResponse{Error: err.Error(), Kind: kind})
}
