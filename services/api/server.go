// Package api exposes the pipeline over REST (gin) and gRPC.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/arrowpipeline"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/engine"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/monitoring"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/pipeline"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
)

const Version = "1.0.0"

// Defaults fill in whatever a request leaves out.
type Defaults struct {
	Backtest       engine.BacktestConfig
	Regularization signals.Regularization
	Model          string
	// SnapshotStepMs is the expected feed interval used for gap detection.
	SnapshotStepMs int64
}

func DefaultDefaults() Defaults {
	return Defaults{
		Backtest:       engine.DefaultConfig(),
		Regularization: signals.DefaultRegularization(),
		Model:          "default",
		SnapshotStepMs: 100,
	}
}

type Server struct {
	svc      *pipeline.Service
	arrow    *arrowpipeline.Pipeline
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	defaults Defaults
	started  time.Time
}

type Option func(*Server)

func WithDefaults(d Defaults) Option { return func(s *Server) { s.defaults = d } }

func WithArrow(p *arrowpipeline.Pipeline) Option { return func(s *Server) { s.arrow = p } }

func WithMetrics(m *monitoring.Metrics) Option { return func(s *Server) { s.metrics = m } }

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewServer(svc *pipeline.Service, opts ...Option) *Server {
	s := &Server{
		svc:      svc,
		logger:   zap.NewNop(),
		defaults: DefaultDefaults(),
		started:  time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.arrow == nil {
		s.arrow = arrowpipeline.NewPipeline(arrowpipeline.DefaultConfig(), arrowpipeline.WithLogger(s.logger))
	}
	return s
}

// Router builds the gin engine with every REST route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))
	s.setupHTTPRoutes(r)
	return r
}

func (s *Server) setupHTTPRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/snapshots", s.handleUploadSnapshots)
		api.GET("/symbols", s.handleSymbols)
		api.GET("/symbols/:symbol/summary", s.handleSummary)

		api.POST("/signals", s.handleGenerateSignals)
		api.GET("/signals/:symbol", s.handleListSignals)
		api.GET("/signals/:symbol/arrow", s.handleSignalsArrow)
		api.GET("/signals/:symbol/importance", s.handleImportance)

		api.POST("/backtests", s.handleRunBacktest)
		api.POST("/backtests/walkforward", s.handleWalkForward)
		api.GET("/backtests", s.handleListBacktests)
		api.GET("/backtests/:id", s.handleGetBacktest)
		api.GET("/backtests/:id/trades.csv", s.handleTradesCSV)
		api.GET("/backtests/:id/equity.csv", s.handleEquityCSV)

		api.GET("/stats", s.handleStats)
		api.DELETE("/data", s.handleClear)
		api.GET("/health", s.handleHealthCheck)
	}
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// statusFor maps domain error codes to HTTP statuses.
func statusFor(code string) int {
	switch code {
	case engine.CodeMissingSelection, engine.CodeInvalidConfig:
		return http.StatusBadRequest
	case engine.CodeNotFound:
		return http.StatusNotFound
	case engine.CodeInsufficientData:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(c *gin.Context, err error) {
	if apiErr, ok := engine.AsAPIError(err); ok {
		c.JSON(statusFor(apiErr.Code), gin.H{"error": apiErr})
		return
	}
	s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "INTERNAL", "message": err.Error()}})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "BAD_REQUEST", "message": err.Error()}})
}
